// Package params resolves loosely-typed, multi-alias parameters.
//
// Inbound requests and remote payloads name the same logical field in several
// ways (elemId / ELEM_ID, productId / PRODUCT_ID). Every such field is described
// by an ordered list of candidate names and resolved through First.
package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// First returns the value of the first candidate name that is present in m
// and accepted by present, together with the name that matched.
func First[V any](m map[string]V, names []string, present func(V) bool) (V, string, bool) {
	for _, name := range names {
		v, ok := m[name]
		if !ok || !present(v) {
			continue
		}
		return v, name, true
	}
	var zero V
	return zero, "", false
}

// Values is a flat, single-valued parameter set.
type Values map[string]string

// Lookup returns the first non-blank value among names, trimmed.
func (v Values) Lookup(names ...string) (string, bool) {
	val, _, ok := First(v, names, func(s string) bool { return strings.TrimSpace(s) != "" })
	if !ok {
		return "", false
	}
	return strings.TrimSpace(val), true
}

// Get is Lookup without the presence flag.
func (v Values) Get(names ...string) string {
	val, _ := v.Lookup(names...)
	return val
}

// Field returns the first set value among names in a decoded JSON object.
// nil and blank strings count as unset.
func Field(m map[string]any, names ...string) (any, bool) {
	v, _, ok := First(m, names, isSet)
	return v, ok
}

func isSet(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	}
	return true
}

// ParseBool parses a caller-supplied flag. Blank input yields def.
func ParseBool(raw string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def, nil
	case "1", "true", "y", "yes", "on":
		return true, nil
	case "0", "false", "n", "no", "off":
		return false, nil
	}
	return def, fmt.Errorf("invalid boolean %q", raw)
}

// ParsePositiveInt parses a strictly positive integer. Integral floats ("7.0") are accepted.
func ParsePositiveInt(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%q is not positive", raw)
		}
		return n, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%q is not positive", raw)
	}
	if f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	return int64(f), nil
}

// ToInt64 converts a decoded JSON scalar (number or numeric string) to int64.
func ToInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		return ToInt64(t.String())
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return ToInt64(f)
	}
	return 0, false
}

// ToPositiveInt64 is ToInt64 restricted to values greater than zero.
func ToPositiveInt64(v any) (int64, bool) {
	n, ok := ToInt64(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// ToDecimal converts a decoded JSON scalar to a decimal.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}
