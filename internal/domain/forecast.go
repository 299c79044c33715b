package domain

import (
	"fmt"
	"slices"
	"time"
)

// ForecastStationID marks records that come from the seasonal outlook
// rather than a station or the observed state summary.
const ForecastStationID = "PRONOSTICO"

// MonthlyForecast is the outlook's expected precipitation per state for one
// calendar month.
type MonthlyForecast struct {
	Year   int
	Month  time.Month
	Values map[State]Value
}

// Date is the first day of the forecast month.
func (f MonthlyForecast) Date() time.Time {
	return time.Date(f.Year, f.Month, 1, 0, 0, 0, 0, time.UTC)
}

var spanishMonths = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// SpanishMonthName returns the capitalized Spanish name, e.g. "Septiembre".
func SpanishMonthName(m time.Month) string {
	name := spanishMonths[m-1]
	return string(name[0]-'a'+'A') + name[1:]
}

// ForecastIssueName is the portal's zip name for the outlook issued in month
// of year, e.g. "05-MJJ-Pronostico-de-Mayo-2025-Lluvia.zip". The second part
// holds the initials of the three months the issue covers.
func ForecastIssueName(year int, month time.Month) string {
	const initials = "EFMAMJJASOND"
	season := make([]byte, 3)
	for i := range season {
		season[i] = initials[(int(month)-1+i)%12]
	}
	return fmt.Sprintf("%02d-%s-Pronostico-de-%s-%d-Lluvia.zip", int(month), season, SpanishMonthName(month), year)
}

// ParseSpanishMonth accepts full Spanish month names in any case, with or
// without accents, plus the "setiembre" spelling.
func ParseSpanishMonth(s string) (time.Month, error) {
	folded := FoldName(s)
	if folded == "setiembre" {
		return time.September, nil
	}
	if i := slices.Index(spanishMonths, folded); i >= 0 {
		return time.Month(i + 1), nil
	}
	return 0, fmt.Errorf("unknown month %q", s)
}

// MergeForecast adds state-level forecast records for ds's state to ds. A
// month is filled only when the dataset has no observed state-level value
// for it; an earlier forecast record for the same month is replaced. Only
// forecasts for year are used. ds is not modified.
func MergeForecast(ds Dataset, year int, forecasts []MonthlyForecast) Dataset {
	out := ds
	out.Records = slices.Clone(ds.Records)
	for _, f := range forecasts {
		if f.Year != year {
			continue
		}
		v, ok := f.Values[ds.State]
		if !ok {
			continue
		}
		date := f.Date()
		rec := MeasurementRecord{Date: date, State: ds.State, StationID: ForecastStationID, Kind: ds.Kind, Value: v}

		observed := slices.ContainsFunc(out.Records, func(r MeasurementRecord) bool {
			return r.StationID == "" && r.Date.Equal(date) && !r.Value.IsMissing()
		})
		if observed {
			continue
		}
		i := slices.IndexFunc(out.Records, func(r MeasurementRecord) bool {
			return r.StationID == ForecastStationID && r.Date.Equal(date)
		})
		if i >= 0 {
			out.Records[i] = rec
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out
}
