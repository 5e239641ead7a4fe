// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical layouts for date and time values in serialized output.
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
)

// Accepted input layouts, tried in order.
var (
	DateTimeInputLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006 15:04",
		"01/02/2006",
		"01/02/06 15:04:05",
		"01/02/06 15:04",
		"01/02/06",
	}
	DateInputLayouts = []string{
		"2006-01-02",
		"01/02/2006",
		"01/02/06",
		"Jan 2 2006",
		"Jan 2, 2006",
		"2 Jan 2006",
		"2 Jan, 2006",
		"January 2 2006",
		"January 2, 2006",
		"2 January 2006",
		"2 January, 2006",
	}
	TimeInputLayouts = []string{
		"15:04:05",
		"15:04",
		"15:04:05.999999999",
	}
)

// ParseTime parses s as a value of a date, datetime or time field.
func ParseTime(kind Kind, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var layouts []string
	switch kind {
	case DateKind:
		// A full timestamp is an acceptable date too
		layouts = append(append([]string{}, DateInputLayouts...), DateTimeInputLayouts...)
	case TimeKind:
		layouts = TimeInputLayouts
	default:
		layouts = DateTimeInputLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a %v", s, kind)
}

// FormatTime renders t in the canonical layout for kind.
func FormatTime(kind Kind, t time.Time) string {
	switch kind {
	case DateKind:
		return t.Format(DateLayout)
	case TimeKind:
		return t.Format(TimeLayout)
	default:
		return t.Format(DateTimeLayout)
	}
}

// ToInt64 converts numeric values and numeric strings to int64.
// Floating-point values must be integral.
func ToInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return ToInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case []byte:
		return ToInt64(string(n))
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// ToFloat converts numeric values and numeric strings to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case []byte:
		return ToFloat(string(n))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// ToBool converts booleans, integers, and the usual truthy and falsy
// strings to bool.
func ToBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case []byte:
		return ToBool(string(b))
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "t", "true", "on", "y", "yes":
			return true, true
		case "", "0", "f", "false", "off", "n", "no":
			return false, true
		}
		return false, false
	}
	if i, ok := ToInt64(v); ok {
		return i != 0, true
	}
	return false, false
}

// ToString renders scalar values as strings.  nil becomes "".
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(DateTimeLayout)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Coerce converts a value read back from storage, or decoded from a
// request, into the canonical Go type for the field's kind: string,
// int64, float64, bool, time.Time, []byte, or []interface{}.  nil
// stays nil.
func (f *Field) Coerce(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	kind := f.Kind()
	bad := func() (interface{}, error) {
		return nil, fmt.Errorf("field %q: cannot convert %T %v to %v", f.Name, v, v, kind)
	}
	switch kind {
	case StringKind, TextKind, UserKind:
		return ToString(v), nil
	case IntegerKind:
		if i, ok := ToInt64(v); ok {
			return i, nil
		}
		return bad()
	case FloatKind, DecimalKind:
		if x, ok := ToFloat(v); ok {
			return x, nil
		}
		return bad()
	case BooleanKind:
		if b, ok := ToBool(v); ok {
			return b, nil
		}
		return bad()
	case DateKind, DateTimeKind, TimeKind:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case []byte:
			return ParseTime(kind, string(t))
		case string:
			return ParseTime(kind, t)
		}
		return bad()
	case ToOneKind:
		return coerceKey(v), nil
	case ToManyKind, ListKind:
		switch l := v.(type) {
		case []interface{}:
			out := make([]interface{}, len(l))
			for i, item := range l {
				if kind == ToManyKind {
					out[i] = coerceKey(item)
				} else {
					out[i] = item
				}
			}
			return out, nil
		case []string:
			out := make([]interface{}, len(l))
			for i, item := range l {
				out[i] = item
			}
			return out, nil
		case []int64:
			out := make([]interface{}, len(l))
			for i, item := range l {
				out[i] = item
			}
			return out, nil
		}
		return []interface{}{v}, nil
	case BytesKind:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return bad()
	}
	return v, nil
}

// coerceKey normalizes a related primary key: numbers become int64 and
// byte slices become strings.
func coerceKey(v interface{}) interface{} {
	switch k := v.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	}
	if i, ok := ToInt64(v); ok {
		return i
	}
	return v
}
