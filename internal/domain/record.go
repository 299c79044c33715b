package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date format used for output.
const DateLayout = "2006-01-02"

// MeasurementRecord is one parsed reading. It is a value type; stages copy
// records rather than mutate them.
type MeasurementRecord struct {
	Date      time.Time `json:"date"`
	State     State     `json:"-"`
	StationID string    `json:"station_id,omitempty"`
	Kind      Kind      `json:"-"`
	Value     Value     `json:"value"`
}

// ArchiveKey identifies one remote archive.
type ArchiveKey struct {
	State State
	Kind  Kind
	Year  int
}

// Validate checks that the key names a real state, a known kind and a
// plausible year.
func (k ArchiveKey) Validate() error {
	if !k.State.Valid() {
		return fmt.Errorf("archive key: invalid state %d", uint8(k.State))
	}
	if !k.Kind.Valid() {
		return fmt.Errorf("archive key: invalid kind %d", uint8(k.Kind))
	}
	if k.Year < 1900 || k.Year > 2099 {
		return fmt.Errorf("archive key: year %d out of range", k.Year)
	}
	return nil
}

// String renders the key as STATE/KIND/YEAR, e.g. "JAL/PRECIPITATION/1999".
func (k ArchiveKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.State, k.Kind, k.Year)
}

// CacheName is a stable file name for the key's cached archive.
func (k ArchiveKey) CacheName() string {
	return fmt.Sprintf("%s_%s_%d.zip", strings.ToLower(k.State.Code()), strings.ToLower(k.Kind.PortalCode()), k.Year)
}

// DateRange is an inclusive calendar-date range. A zero Start or End leaves
// that side unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range and validates it.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// ParseDateRange parses YYYY-MM-DD bounds; empty strings leave a side open.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if start != "" {
		if r.Start, err = time.Parse(DateLayout, start); err != nil {
			return DateRange{}, fmt.Errorf("parse start date: %w", err)
		}
	}
	if end != "" {
		if r.End, err = time.Parse(DateLayout, end); err != nil {
			return DateRange{}, fmt.Errorf("parse end date: %w", err)
		}
	}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate returns an InvalidRangeError when both bounds are set and the
// start falls after the end.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return nil
	}
	if civilDay(r.Start).After(civilDay(r.End)) {
		return &InvalidRangeError{Start: r.Start, End: r.End}
	}
	return nil
}

// IsZero reports whether the range has no bounds at all.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether d falls within the range, comparing calendar days.
func (r DateRange) Contains(d time.Time) bool {
	day := civilDay(d)
	if !r.Start.IsZero() && day.Before(civilDay(r.Start)) {
		return false
	}
	if !r.End.IsZero() && day.After(civilDay(r.End)) {
		return false
	}
	return true
}

// civilDay drops the time of day, keeping the calendar date as UTC midnight.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Member is one file extracted from an archive.
type Member struct {
	Name string
	Data []byte
}
