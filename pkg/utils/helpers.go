package utils

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m", falling back to def.
func ParseDuration(d string, def time.Duration) time.Duration {
	if d == "" {
		return def
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return def
	}
	return duration
}

// ParseValue turns a raw text cell (CSV, XML) into an int, float or string.
func ParseValue(s string) interface{} {
	s = strings.TrimSpace(s)

	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// toNumber reports the numeric value of v. Strings only count when
// allowStrings is set and the trimmed text parses as a number.
func toNumber(v interface{}, allowStrings bool) (float64, bool) {
	switch val := v.(type) {
	case nil, bool:
		return 0, false
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case string:
		if !allowStrings {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Float64 {
			return rv.Convert(reflect.TypeOf(float64(0))).Float(), true
		}
		return 0, false
	}
}

// toInteger reports v as an int64 when it is an integer kind or a string
// holding a base-10 integer.
func toInteger(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return i, err == nil
	case bool, nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Int64:
		return rv.Int(), true
	case rv.Kind() >= reflect.Uint && rv.Kind() <= reflect.Uint32:
		return int64(rv.Uint()), true
	}
	return 0, false
}

// LooseEqual compares two scalar values the way migration definitions expect
// configured values to match row data:
//
//   - nil equals nil and the empty string;
//   - a number equals another number of any Go numeric type with the same value;
//   - a numeric string equals a number with the same value ("86" == 86);
//   - two strings are equal when identical, or when both are numeric and equal
//     as numbers ("1.0" == "1");
//   - a bool equals a bool, or a string/number that parses to the same truth
//     value ("1", "true", 1);
//   - anything else compares by its fmt representation.
func LooseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return isNilOrEmptyString(a) && isNilOrEmptyString(b)
	}

	if ab, ok := a.(bool); ok {
		return boolEquals(ab, b)
	}
	if bb, ok := b.(bool); ok {
		return boolEquals(bb, a)
	}

	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	if aIsString && bIsString && as == bs {
		return true
	}

	if ai, ok := toInteger(a); ok {
		if bi, ok := toInteger(b); ok {
			return ai == bi
		}
	}
	af, aNum := toNumber(a, true)
	bf, bNum := toNumber(b, true)
	if aNum && bNum {
		return af == bf
	}
	if aIsString || bIsString {
		// A non-numeric string never equals a number.
		if (aIsString && bNum && !bIsString) || (bIsString && aNum && !aIsString) {
			return false
		}
	}

	return ToString(a) == ToString(b)
}

func isNilOrEmptyString(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func boolEquals(b bool, other interface{}) bool {
	switch o := other.(type) {
	case bool:
		return b == o
	case string:
		switch strings.ToLower(strings.TrimSpace(o)) {
		case "1", "true":
			return b
		case "0", "false", "":
			return !b
		}
		return false
	}
	if f, ok := toNumber(other, false); ok {
		return b == (f != 0)
	}
	return false
}

// ToString renders a scalar in its natural text form. Used for identifier
// keys and text destinations.
func ToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// IsScalar reports whether v is nil, a bool, a string or a number.
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case nil, bool, string:
		return true
	}
	_, ok := toNumber(v, false)
	return ok
}

// IsEmpty reports nil, "", and zero-length slices or maps.
func IsEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// ToSlice returns v as []interface{} when it is any slice or array kind.
func ToSlice(v interface{}) ([]interface{}, bool) {
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
