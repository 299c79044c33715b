package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// yearInNameRe finds a 19xx/20xx year not embedded in a longer digit run,
// e.g. "Precip_2019.xlsx" -> 2019.
var yearInNameRe = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source describes where a tabular member came from. Name is used in
// warnings and, for monthly layouts, to infer the year. Year is the archive
// year; zero disables the out-of-year check.
type Source struct {
	Name string
	Year int
}

// year returns the year embedded in the member name, falling back to Year.
func (s Source) year() int {
	base := s.Name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if m := yearInNameRe.FindStringSubmatch(base); len(m) == 2 {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	return s.Year
}

// Parser turns raw tabular members into measurement records according to a
// Layout. A Parser is safe for concurrent use.
type Parser struct {
	layout         Layout
	markers        map[string]bool
	numericMarkers []Value
}

// NewParser validates the layout and prepares the missing-marker tables.
func NewParser(layout Layout) (*Parser, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	p := &Parser{
		layout:  layout,
		markers: make(map[string]bool, len(layout.MissingMarkers)),
	}
	for _, m := range layout.MissingMarkers {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		p.markers[strings.ToUpper(m)] = true
		if v, err := NewValue(m); err == nil {
			p.numericMarkers = append(p.numericMarkers, v)
		}
	}
	return p, nil
}

// Layout returns the parser's layout.
func (p *Parser) Layout() Layout {
	return p.layout
}

// RecordStream is a lazy, single-use sequence of records. Warnings
// accumulate while the stream is consumed.
type RecordStream struct {
	run      func(yield func(MeasurementRecord) bool)
	warnings []ParseWarning
	consumed bool
}

// All yields the parsed records. Ranging a second time yields nothing.
func (s *RecordStream) All() iter.Seq[MeasurementRecord] {
	return func(yield func(MeasurementRecord) bool) {
		if s.consumed {
			return
		}
		s.consumed = true
		s.run(yield)
	}
}

// Collect drains the stream into a slice.
func (s *RecordStream) Collect() []MeasurementRecord {
	var out []MeasurementRecord
	for r := range s.All() {
		out = append(out, r)
	}
	return out
}

// Warnings returns the warnings recorded so far.
func (s *RecordStream) Warnings() []ParseWarning {
	return s.warnings
}

// tableRow is one row of a member. num is the 1-based physical line for text
// members and the sheet row for spreadsheets; a non-nil err marks a row the
// reader could not split.
type tableRow struct {
	num    int
	fields []string
	err    error
}

// Parse reads delimited text with no source metadata.
func (p *Parser) Parse(data []byte, kind Kind, state State) *RecordStream {
	return p.ParseSource(Source{}, data, kind, state)
}

// ParseSource reads delimited text (CSV or similar) from a member.
func (p *Parser) ParseSource(src Source, data []byte, kind Kind, state State) *RecordStream {
	text := decodeText(data, p.layout.Encoding)
	delim := p.layout.Delimiter
	rows := func(yield func(tableRow) bool) {
		r := csv.NewReader(bytes.NewReader(text))
		r.Comma = delim
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		r.ReuseRecord = false
		// Rows are numbered by physical line, so blank lines count toward
		// RowSkipCount even though the reader never returns them.
		line := 0
		for {
			fields, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					line = perr.StartLine
					if !yield(tableRow{num: line, err: err}) {
						return
					}
					continue
				}
				yield(tableRow{num: line + 1, err: err})
				return
			}
			line, _ = r.FieldPos(0)
			if !yield(tableRow{num: line, fields: fields}) {
				return
			}
		}
	}
	return p.stream(src, rows, kind, state)
}

// ParseRows reads rows already split into cells, e.g. from a spreadsheet.
func (p *Parser) ParseRows(src Source, rows [][]string, kind Kind, state State) *RecordStream {
	source := func(yield func(tableRow) bool) {
		for i, fields := range rows {
			if !yield(tableRow{num: i + 1, fields: fields}) {
				return
			}
		}
	}
	return p.stream(src, source, kind, state)
}

func (p *Parser) stream(src Source, rows iter.Seq[tableRow], kind Kind, state State) *RecordStream {
	s := &RecordStream{}
	warn := func(row int, field, value, reason string) {
		s.warnings = append(s.warnings, ParseWarning{Member: src.Name, Row: row, Field: field, Value: value, Reason: reason})
	}
	s.run = func(yield func(MeasurementRecord) bool) {
		if !state.Valid() || !kind.Valid() {
			warn(0, "", "", fmt.Sprintf("unrecognized state %s or kind %s, member skipped", state, kind))
			return
		}
		switch p.layout.Shape {
		case ShapeMonthly:
			p.runMonthly(src, rows, kind, state, warn, yield)
		default:
			p.runPositional(src, rows, kind, state, warn, yield)
		}
	}
	return s
}

type warnFunc func(row int, field, value, reason string)

func (p *Parser) runPositional(src Source, rows iter.Seq[tableRow], kind Kind, state State, warn warnFunc, yield func(MeasurementRecord) bool) {
	cols := p.layout.Columns
	need := max(cols.Date, cols.Value, cols.StationID) + 1

	for tr := range rows {
		row := tr.num
		if row <= p.layout.RowSkipCount {
			continue
		}
		if tr.err != nil {
			warn(row, "", "", fmt.Sprintf("unreadable row: %v", tr.err))
			continue
		}
		fields := trimFields(tr.fields)
		if blank(fields) {
			continue
		}
		if len(fields) < need {
			warn(row, "", "", fmt.Sprintf("row has %d fields, need %d", len(fields), need))
			continue
		}

		rawDate := fields[cols.Date]
		date, ok := p.parseDate(rawDate)
		if !ok {
			warn(row, string(FieldDate), rawDate, "unparsable date, row dropped")
			continue
		}

		station := ""
		if cols.StationID >= 0 {
			station = fields[cols.StationID]
		}

		value := p.parseValue(row, fields[cols.Value], warn)
		p.checkDate(src, row, date, value, warn)

		rec := MeasurementRecord{Date: date, State: state, StationID: station, Kind: kind, Value: value}
		if !yield(rec) {
			return
		}
	}
}

func (p *Parser) runMonthly(src Source, rows iter.Seq[tableRow], kind Kind, state State, warn warnFunc, yield func(MeasurementRecord) bool) {
	year := src.year()
	if year == 0 {
		warn(0, "", src.Name, "no year in member name, member skipped")
		return
	}
	cols := p.layout.Columns

	for tr := range rows {
		row := tr.num
		if row <= p.layout.RowSkipCount {
			continue
		}
		if tr.err != nil {
			warn(row, "", "", fmt.Sprintf("unreadable row: %v", tr.err))
			continue
		}
		fields := trimFields(tr.fields)
		if len(fields) <= cols.State {
			continue
		}
		// Title rows, the header, "nacional" and other entities are skipped.
		rowState, err := ParseState(fields[cols.State])
		if err != nil || rowState != state {
			continue
		}
		if short := cols.FirstMonth + 12; len(fields) < short {
			warn(row, "", "", fmt.Sprintf("row has %d fields, need %d; absent months are missing", len(fields), short))
		}

		for m := range 12 {
			raw := ""
			if idx := cols.FirstMonth + m; idx < len(fields) {
				raw = fields[idx]
			}
			date := time.Date(year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
			value := p.parseValue(row, raw, warn)
			p.checkDate(Source{Name: src.Name, Year: year}, row, date, value, warn)
			if !yield(MeasurementRecord{Date: date, State: state, Kind: kind, Value: value}) {
				return
			}
		}
	}
}

// parseDate tries each configured format and returns the calendar date.
func (p *Parser) parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range p.layout.DateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return civilDay(t), true
		}
	}
	return time.Time{}, false
}

// parseValue maps blanks and missing markers to the sentinel silently and
// other unparsable text to the sentinel with a warning.
func (p *Parser) parseValue(row int, raw string, warn warnFunc) Value {
	if raw == "" || p.markers[strings.ToUpper(raw)] {
		return Missing()
	}
	v, err := NewValue(p.normalizeDecimal(raw))
	if err != nil {
		warn(row, string(FieldValue), raw, "unparsable value, recorded as missing")
		return Missing()
	}
	for _, m := range p.numericMarkers {
		if v.Equal(m) {
			return Missing()
		}
	}
	return v
}

// normalizeDecimal rewrites a locale decimal into "." form. With a comma
// separator, dots are thousands separators: "1.234,5" -> "1234.5".
func (p *Parser) normalizeDecimal(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	if p.layout.DecimalSeparator == ',' {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

// checkDate warns about dates that parse but look out of place. Such records
// are kept.
func (p *Parser) checkDate(src Source, row int, date time.Time, value Value, warn warnFunc) {
	if src.Year != 0 && date.Year() != src.Year {
		warn(row, string(FieldDate), date.Format(DateLayout), fmt.Sprintf("date outside archive year %d, kept", src.Year))
	}
	if !value.IsMissing() && date.After(civilDay(clock.Now())) {
		warn(row, string(FieldDate), date.Format(DateLayout), "date is in the future, kept")
	}
}

// decodeText strips a UTF-8 BOM and converts single-byte encodings to UTF-8.
// In auto mode, text that is not valid UTF-8 is read as Windows-1252, a
// superset of Latin-1 used by the portal's older exports.
func decodeText(data []byte, enc Encoding) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	var dec *charmap.Charmap
	switch enc {
	case EncodingLatin1:
		dec = charmap.ISO8859_1
	case EncodingWindows1252:
		dec = charmap.Windows1252
	case EncodingAuto:
		if !utf8.Valid(data) {
			dec = charmap.Windows1252
		}
	}
	if dec == nil {
		return data
	}
	out, err := dec.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

func trimFields(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func blank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
