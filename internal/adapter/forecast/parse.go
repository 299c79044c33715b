package forecast

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// statsDirs name the folder holding the state tables. The portal has
// shipped both spellings.
var statsDirs = []string{"ESTADISTICAS", "ESTADISITCAS"}

// IsStateTable reports whether a member is a per-state CSV of an issue, e.g.
// "ESTADISTICAS/Pronostico_Estados_Mayo_2025_Lluvia.csv".
func IsStateTable(name string) bool {
	dirs := strings.Split(path.Dir(name), "/")
	if !slices.ContainsFunc(dirs, func(d string) bool { return slices.Contains(statsDirs, d) }) {
		return false
	}
	base := path.Base(name)
	if !strings.EqualFold(path.Ext(base), ".csv") {
		return false
	}
	return slices.Contains(strings.Split(strings.TrimSuffix(base, path.Ext(base)), "_"), "Estados")
}

// Parse reads every state table among members, one forecast month each.
func Parse(members []domain.Member) ([]domain.MonthlyForecast, error) {
	var out []domain.MonthlyForecast
	for _, m := range members {
		if !IsStateTable(m.Name) {
			continue
		}
		f, err := ParseTable(m.Name, m.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New("issue has no state forecast tables")
	}
	slices.SortFunc(out, func(a, b domain.MonthlyForecast) int {
		return a.Date().Compare(b.Date())
	})
	return out, nil
}

// ParseTable reads one state table. The month and year come from the file
// name (third and fourth "_" parts); the state column has an empty or
// "estado" header and the value column's header starts with "pronostico".
// Rows that do not name a state, such as the national total, are skipped.
func ParseTable(name string, data []byte) (domain.MonthlyForecast, error) {
	base := path.Base(name)
	parts := strings.Split(strings.TrimSuffix(base, path.Ext(base)), "_")
	if len(parts) < 4 {
		return domain.MonthlyForecast{}, fmt.Errorf("table %s: name lacks month and year", name)
	}
	month, err := domain.ParseSpanishMonth(parts[2])
	if err != nil {
		return domain.MonthlyForecast{}, fmt.Errorf("table %s: %w", name, err)
	}
	year, err := strconv.Atoi(parts[3])
	if err != nil {
		return domain.MonthlyForecast{}, fmt.Errorf("table %s: invalid year %q", name, parts[3])
	}

	if !utf8.Valid(data) {
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return domain.MonthlyForecast{}, fmt.Errorf("table %s: decode: %w", name, err)
		}
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return domain.MonthlyForecast{}, fmt.Errorf("table %s: %w", name, err)
	}
	if len(rows) == 0 {
		return domain.MonthlyForecast{}, fmt.Errorf("table %s: empty", name)
	}

	stateCol, valueCol := -1, -1
	for i, h := range rows[0] {
		switch folded := domain.FoldName(h); {
		case stateCol < 0 && (folded == "" || folded == "estado" || folded == "unnamed: 0"):
			stateCol = i
		case valueCol < 0 && strings.HasPrefix(folded, "pronostico"):
			valueCol = i
		}
	}
	if stateCol < 0 || valueCol < 0 {
		return domain.MonthlyForecast{}, fmt.Errorf("table %s: missing state or forecast column in %q", name, rows[0])
	}

	f := domain.MonthlyForecast{Year: year, Month: month, Values: map[domain.State]domain.Value{}}
	for _, row := range rows[1:] {
		if len(row) <= max(stateCol, valueCol) {
			continue
		}
		state, err := domain.ParseState(row[stateCol])
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(row[valueCol])
		v, err := domain.NewValue(raw)
		if raw == "" || err != nil {
			v = domain.Missing()
		}
		f.Values[state] = v
	}
	return f, nil
}
