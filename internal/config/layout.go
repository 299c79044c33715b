package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// layoutFile is the YAML form of a domain.Layout. Pointer fields distinguish
// "unset" from zero so omitted keys keep their defaults.
type layoutFile struct {
	Layout              string       `yaml:"layout"`
	RowSkipCount        *int         `yaml:"row_skip_count"`
	Delimiter           string       `yaml:"delimiter"`
	DecimalSeparator    string       `yaml:"decimal_separator"`
	Encoding            string       `yaml:"encoding"`
	DateFormats         []string     `yaml:"date_formats"`
	Columns             *columnsFile `yaml:"columns"`
	MissingValueMarkers []string     `yaml:"missing_value_markers"`
	ColumnOrder         []string     `yaml:"column_order"`
}

type columnsFile struct {
	Date       *int `yaml:"date"`
	StationID  *int `yaml:"station_id"`
	Value      *int `yaml:"value"`
	State      *int `yaml:"state"`
	FirstMonth *int `yaml:"first_month"`
}

// LoadLayout reads a layout YAML file.
func LoadLayout(path string) (domain.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("read layout config: %w", err)
	}
	l, err := ParseLayout(data)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("layout config %s: %w", path, err)
	}
	return l, nil
}

// ParseLayout decodes layout YAML over DefaultLayout. Unknown keys, bad
// column names and inconsistent positions are rejected.
func ParseLayout(data []byte) (domain.Layout, error) {
	var f layoutFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return domain.Layout{}, fmt.Errorf("decode: %w", err)
	}

	l := domain.DefaultLayout()
	if f.Layout != "" {
		l.Shape = domain.Shape(f.Layout)
	}
	if f.RowSkipCount != nil {
		l.RowSkipCount = *f.RowSkipCount
	}
	if f.Delimiter != "" {
		r, err := singleRune("delimiter", f.Delimiter)
		if err != nil {
			return domain.Layout{}, err
		}
		l.Delimiter = r
	}
	if f.DecimalSeparator != "" {
		r, err := singleRune("decimal_separator", f.DecimalSeparator)
		if err != nil {
			return domain.Layout{}, err
		}
		l.DecimalSeparator = r
	}
	if f.Encoding != "" {
		l.Encoding = domain.Encoding(f.Encoding)
	}
	if len(f.DateFormats) > 0 {
		l.DateFormats = f.DateFormats
	}
	if f.MissingValueMarkers != nil {
		l.MissingMarkers = f.MissingValueMarkers
	}
	if f.Columns != nil {
		applyColumns(&l.Columns, f.Columns)
	}
	if f.ColumnOrder != nil {
		order, err := domain.ParseColumnOrder(f.ColumnOrder)
		if err != nil {
			return domain.Layout{}, err
		}
		l.ColumnOrder = order
	}

	if err := l.Validate(); err != nil {
		return domain.Layout{}, err
	}
	return l, nil
}

func applyColumns(dst *domain.ColumnMap, src *columnsFile) {
	set := func(p *int, v *int) {
		if v != nil {
			*p = *v
		}
	}
	set(&dst.Date, src.Date)
	set(&dst.StationID, src.StationID)
	set(&dst.Value, src.Value)
	set(&dst.State, src.State)
	set(&dst.FirstMonth, src.FirstMonth)
}

func singleRune(key, s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("%s must be a single character, got %q", key, s)
	}
	return r, nil
}
