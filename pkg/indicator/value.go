package indicator

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is an observation that is either a finite number or missing.
// The zero Value is missing.
type Value struct {
	v     float64
	valid bool
}

// Some returns a present value. NaN and ±Inf are treated as missing so
// that a Value never holds a non-finite number.
func Some(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{v: f, valid: true}
}

// Missing returns the missing marker
func Missing() Value {
	return Value{}
}

// IsMissing reports whether the value is absent
func (v Value) IsMissing() bool {
	return !v.valid
}

// Float returns the number and whether it is present
func (v Value) Float() (float64, bool) {
	return v.v, v.valid
}

// String renders the value the way exported files do: shortest
// round-trippable decimal, or the empty string when missing.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// MarshalJSON encodes missing values as null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON accepts a number or null
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Missing()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// ParseValue converts a raw cell to a Value. Anything that is empty or not a
// finite number becomes missing; this never fails.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing()
	}
	return Some(f)
}
