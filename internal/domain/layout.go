package domain

import (
	"errors"
	"fmt"
)

// Shape selects how rows of a tabular member map to records.
type Shape string

const (
	// ShapePositional rows hold one reading each: date, optional station, value.
	ShapePositional Shape = "positional"
	// ShapeMonthly rows hold one entity each with twelve month columns
	// (ene..dic), as in the portal's yearly state summaries.
	ShapeMonthly Shape = "monthly"
)

// Encoding names the character set of a tabular member.
type Encoding string

const (
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingLatin1      Encoding = "latin-1"
	EncodingWindows1252 Encoding = "windows-1252"
)

// ColumnMap holds zero-based field positions. StationID may be -1 when the
// source has no station column.
type ColumnMap struct {
	Date       int
	StationID  int
	Value      int
	State      int
	FirstMonth int
}

// Layout describes how to read a tabular member. Build one with
// DefaultLayout and override fields, then call Validate.
type Layout struct {
	Shape Shape

	// RowSkipCount is the number of leading physical lines (sheet rows for
	// spreadsheets) to skip, blank lines included.
	RowSkipCount     int
	Delimiter        rune
	DecimalSeparator rune
	Encoding         Encoding
	DateFormats      []string
	Columns          ColumnMap
	MissingMarkers   []string
	ColumnOrder      ColumnOrder
}

// DefaultMissingMarkers are the portal's "no data" tokens.
var DefaultMissingMarkers = []string{"NULO", "ND", "S/D", "-99999"}

// DefaultDateFormats are tried in order when parsing a date cell.
var DefaultDateFormats = []string{DateLayout, "02/01/2006", "2006/01/02", "20060102"}

// DefaultLayout returns the positional layout with a single header row.
func DefaultLayout() Layout {
	return Layout{
		Shape:            ShapePositional,
		RowSkipCount:     1,
		Delimiter:        ',',
		DecimalSeparator: '.',
		Encoding:         EncodingAuto,
		DateFormats:      append([]string(nil), DefaultDateFormats...),
		Columns:          ColumnMap{Date: 0, StationID: 1, Value: 2, State: 0, FirstMonth: 1},
		MissingMarkers:   append([]string(nil), DefaultMissingMarkers...),
		ColumnOrder:      append(ColumnOrder(nil), DefaultColumnOrder...),
	}
}

// Validate rejects layouts the parser cannot apply.
func (l Layout) Validate() error {
	switch l.Shape {
	case ShapePositional:
		if l.Columns.Date < 0 || l.Columns.Value < 0 {
			return errors.New("layout: date and value columns are required")
		}
		if l.Columns.StationID < -1 {
			return errors.New("layout: station_id column must be -1 or a position")
		}
		if l.Columns.Date == l.Columns.Value || l.Columns.Date == l.Columns.StationID || l.Columns.Value == l.Columns.StationID {
			return errors.New("layout: date, station_id and value columns must differ")
		}
	case ShapeMonthly:
		if l.Columns.State < 0 || l.Columns.FirstMonth < 0 {
			return errors.New("layout: state and first_month columns are required")
		}
		if l.Columns.State >= l.Columns.FirstMonth && l.Columns.State < l.Columns.FirstMonth+12 {
			return errors.New("layout: state column overlaps the month columns")
		}
	default:
		return fmt.Errorf("layout: unknown shape %q", l.Shape)
	}
	if l.RowSkipCount < 0 {
		return errors.New("layout: row_skip_count must not be negative")
	}
	if l.Delimiter == 0 || l.Delimiter == '"' || l.Delimiter == '\n' || l.Delimiter == '\r' {
		return fmt.Errorf("layout: invalid delimiter %q", l.Delimiter)
	}
	if l.DecimalSeparator != '.' && l.DecimalSeparator != ',' {
		return fmt.Errorf("layout: decimal separator must be '.' or ',', got %q", l.DecimalSeparator)
	}
	if l.DecimalSeparator == l.Delimiter {
		return errors.New("layout: decimal separator equals the delimiter")
	}
	switch l.Encoding {
	case EncodingAuto, EncodingUTF8, EncodingLatin1, EncodingWindows1252:
	default:
		return fmt.Errorf("layout: unknown encoding %q", l.Encoding)
	}
	if l.Shape == ShapePositional && len(l.DateFormats) == 0 {
		return errors.New("layout: at least one date format is required")
	}
	if len(l.ColumnOrder) == 0 {
		return errors.New("layout: column order is empty")
	}
	if _, err := ParseColumnOrder(l.ColumnOrder.Names()); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	return nil
}
