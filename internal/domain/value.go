package domain

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Value is a measurement that is either present or missing. A present zero
// is a real reading; use IsMissing to tell the two apart.
type Value struct {
	dec     apd.Decimal
	present bool
}

// Missing returns the sentinel for "no data reported".
func Missing() Value {
	return Value{}
}

// NewValue parses a decimal string using "." as the decimal separator.
// NaN and infinities are rejected.
func NewValue(s string) (Value, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Value{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Value{}, fmt.Errorf("invalid decimal %q: not finite", s)
	}
	return Value{dec: d, present: true}, nil
}

// MustValue is NewValue for literals known to be valid.
func MustValue(s string) Value {
	v, err := NewValue(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsMissing reports whether v is the missing sentinel.
func (v Value) IsMissing() bool {
	return !v.present
}

// Float64 returns the value as a float. ok is false for missing values.
func (v Value) Float64() (f float64, ok bool) {
	if !v.present {
		return 0, false
	}
	f, err := v.dec.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal compares two values numerically; two missing values are equal.
func (v Value) Equal(other Value) bool {
	if v.present != other.present {
		return false
	}
	if !v.present {
		return true
	}
	return v.dec.Cmp(&other.dec) == 0
}

// String renders the decimal exactly as parsed. Missing values render as "".
func (v Value) String() string {
	if !v.present {
		return ""
	}
	return v.dec.Text('f')
}

// Text renders v, substituting missingText for the sentinel.
func (v Value) Text(missingText string) string {
	if !v.present {
		return missingText
	}
	return v.String()
}

// MarshalJSON encodes present values as JSON numbers and missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	return []byte(v.String()), nil
}

// UnmarshalJSON accepts a JSON number, a quoted decimal or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = Missing()
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	parsed, err := NewValue(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
