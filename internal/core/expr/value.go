package expr

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Object is an ordered string-keyed map. Lookups fall back to a
// case-insensitive match, like pipeline variable and parameter names.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set adds or replaces key.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value for key.
func (o *Object) Get(key string) (any, bool) {
	if v, ok := o.values[key]; ok {
		return v, true
	}
	for _, k := range o.keys {
		if strings.EqualFold(k, key) {
			return o.values[k], true
		}
	}
	return nil, false
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Value returns the value for key or nil.
func (o *Object) Value(key string) any {
	v, _ := o.Get(key)
	return v
}

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// MarshalJSON keeps insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Truthy reports the boolean interpretation of v: true, a non-zero number,
// a non-empty string and any collection are truthy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case json.Number:
		f, ok := ToNumber(x)
		return ok && f != 0 && !math.IsNaN(f)
	case int:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// ToString converts v to its string form. Collections render as compact JSON.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return FormatNumber(x)
	case json.Number:
		return canonicalNumber(string(x))
	case int:
		return strconv.Itoa(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// FormatNumber renders f without exponent or trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// canonicalNumber trims insignificant fractional zeros from a decimal
// literal without going through float64, so long integers keep every digit.
func canonicalNumber(text string) string {
	if !strings.Contains(text, ".") || strings.ContainsAny(text, "eE") {
		return text
	}
	trimmed := strings.TrimSuffix(strings.TrimRight(text, "0"), ".")
	switch trimmed {
	case "", "-":
		return "0"
	}
	return trimmed
}

// ToNumber converts numbers and numeric strings.
func ToNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case int:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isCollection(v any) bool {
	switch v.(type) {
	case []any, *Object:
		return true
	default:
		return false
	}
}

// Equal implements eq: numeric when both operands are numeric, boolean text
// comparison when either is a boolean, structural for collections and
// case-sensitive string comparison otherwise.
func Equal(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if isCollection(a) || isCollection(b) {
		if !isCollection(a) || !isCollection(b) {
			return false
		}
		return ToString(a) == ToString(b)
	}
	if ab, ok := a.(bool); ok {
		return boolEqual(ab, b)
	}
	if bb, ok := b.(bool); ok {
		return boolEqual(bb, a)
	}
	if na, ok := a.(json.Number); ok {
		if nb, ok := b.(json.Number); ok && ToString(na) == ToString(nb) {
			return true
		}
	}
	if fa, ok := ToNumber(a); ok {
		if fb, ok := ToNumber(b); ok {
			return fa == fb
		}
	}
	return ToString(a) == ToString(b)
}

func boolEqual(b bool, other any) bool {
	if ob, ok := other.(bool); ok {
		return b == ob
	}
	return strings.EqualFold(strconv.FormatBool(b), strings.TrimSpace(ToString(other)))
}

// Compare orders a and b numerically when both are numeric and by string
// otherwise.
func Compare(a, b any) int {
	if fa, ok := ToNumber(a); ok {
		if fb, ok := ToNumber(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(ToString(a), ToString(b))
}

// Normalize converts Go values into evaluator values: ints become float64,
// string-keyed maps become Objects with sorted keys.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Normalize(item)
		}
		return out
	case map[string]any:
		return objectFromMap(x)
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return objectFromMap(m)
	default:
		return v
	}
}

func objectFromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	o := NewObject()
	for _, k := range keys {
		o.Set(k, Normalize(m[k]))
	}
	return o
}
