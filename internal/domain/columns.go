package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field is a semantic output column.
type Field string

const (
	FieldDate      Field = "date"
	FieldYear      Field = "year"
	FieldMonth     Field = "month"
	FieldState     Field = "state"
	FieldStateName Field = "state_name"
	FieldStationID Field = "station_id"
	FieldKind      Field = "kind"
	FieldUnit      Field = "unit"
	FieldValue     Field = "value"
)

var knownFields = map[Field]bool{
	FieldDate: true, FieldYear: true, FieldMonth: true, FieldState: true,
	FieldStateName: true, FieldStationID: true, FieldKind: true, FieldUnit: true,
	FieldValue: true,
}

// ColumnOrder is a validated, ordered list of output fields.
type ColumnOrder []Field

// DefaultColumnOrder is used when no column order is configured.
var DefaultColumnOrder = ColumnOrder{FieldDate, FieldState, FieldStationID, FieldKind, FieldValue}

// ParseColumnOrder validates field names: the list must be non-empty, every
// name known, and no name repeated. Names are matched case-insensitively.
func ParseColumnOrder(names []string) (ColumnOrder, error) {
	if len(names) == 0 {
		return nil, errors.New("column order is empty")
	}
	seen := make(map[Field]bool, len(names))
	order := make(ColumnOrder, 0, len(names))
	for _, n := range names {
		f := Field(strings.ToLower(strings.TrimSpace(n)))
		if !knownFields[f] {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		if seen[f] {
			return nil, fmt.Errorf("duplicate column %q", n)
		}
		seen[f] = true
		order = append(order, f)
	}
	return order, nil
}

// Names returns the column names as strings.
func (o ColumnOrder) Names() []string {
	out := make([]string, len(o))
	for i, f := range o {
		out[i] = string(f)
	}
	return out
}

// Cell renders one field of a record. Missing values render as missingText.
func (f Field) Cell(r MeasurementRecord, missingText string) string {
	switch f {
	case FieldDate:
		return r.Date.Format(DateLayout)
	case FieldYear:
		return strconv.Itoa(r.Date.Year())
	case FieldMonth:
		return strconv.Itoa(int(r.Date.Month()))
	case FieldState:
		return r.State.Code()
	case FieldStateName:
		return r.State.Name()
	case FieldStationID:
		return r.StationID
	case FieldKind:
		return r.Kind.String()
	case FieldUnit:
		return r.Kind.Unit()
	case FieldValue:
		return r.Value.Text(missingText)
	default:
		return ""
	}
}
