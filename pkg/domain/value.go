package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Range is a min/max interval reported by a lab instead of a single scalar.
// A range with neither bound set is considered empty.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsEmpty reports whether neither bound is present.
func (r Range) IsEmpty() bool { return r.Min == nil && r.Max == nil }

// IsComplete reports whether both bounds are present.
func (r Range) IsComplete() bool { return r.Min != nil && r.Max != nil }

// Value holds a biomarker measurement: a scalar, a range, or nothing (null).
// At most one of Scalar and Range is set.
type Value struct {
	Scalar *float64
	Range  *Range
}

// ScalarValue builds a scalar Value.
func ScalarValue(v float64) Value { return Value{Scalar: &v} }

// RangeValue builds a Value carrying a complete min/max range.
func RangeValue(minV, maxV float64) Value {
	return Value{Range: &Range{Min: &minV, Max: &maxV}}
}

// EmptyRangeValue builds a Value carrying an empty range object.
func EmptyRangeValue() Value { return Value{Range: &Range{}} }

// IsNull reports whether the value carries no measurement at all.
func (v Value) IsNull() bool { return v.Scalar == nil && v.Range == nil }

// IsRange reports whether the value is shaped as a range object.
func (v Value) IsRange() bool { return v.Range != nil }

// MarshalJSON renders null, a number, or a {min,max} object.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Range != nil:
		return json.Marshal(v.Range)
	case v.Scalar != nil:
		return json.Marshal(*v.Scalar)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, numbers, numeric strings, the empty string
// (treated as null), and {min,max} objects.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = Value{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '{':
		var r Range
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return fmt.Errorf("decode range value: %w", err)
		}
		v.Range = &r
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("value %q is not numeric", s)
		}
		v.Scalar = &f
		return nil
	default:
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return fmt.Errorf("decode scalar value: %w", err)
		}
		v.Scalar = &f
		return nil
	}
}

// Clone returns a deep copy so callers never share bound pointers.
func (v Value) Clone() Value {
	var out Value
	if v.Scalar != nil {
		s := *v.Scalar
		out.Scalar = &s
	}
	if v.Range != nil {
		r := Range{}
		if v.Range.Min != nil {
			m := *v.Range.Min
			r.Min = &m
		}
		if v.Range.Max != nil {
			m := *v.Range.Max
			r.Max = &m
		}
		out.Range = &r
	}
	return out
}
