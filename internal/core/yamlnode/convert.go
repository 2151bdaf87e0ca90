package yamlnode

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Ordered is implemented by ordered maps that FromValue converts to a
// Mapping without sorting keys.
type Ordered interface {
	Keys() []string
	Value(key string) any
}

// ToValue converts n into plain Go values: map[string]any, []any, string,
// bool, nil and int or float64 for numbers.
func ToValue(n Node) any {
	switch v := n.(type) {
	case *Mapping:
		out := make(map[string]any, len(v.Entries))
		for _, e := range v.Entries {
			out[e.Key] = ToValue(e.Value)
		}
		return out
	case *Sequence:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = ToValue(item)
		}
		return out
	case *Scalar:
		switch v.Kind {
		case NumberKind:
			f, err := v.Float()
			if err != nil {
				return v.Text
			}
			if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
				return int(f)
			}
			return f
		case BoolKind:
			return v.Bool
		case NullKind:
			return nil
		default:
			return v.Text
		}
	default:
		return nil
	}
}

// FromValue converts a Go value into a node. Plain maps are emitted with
// sorted keys; Ordered maps keep their order. Nodes are deep-copied.
func FromValue(v any) (Node, error) {
	switch x := v.(type) {
	case nil:
		return NewNull(), nil
	case Node:
		return Clone(x), nil
	case Ordered:
		m := NewMapping()
		for _, k := range x.Keys() {
			child, err := FromValue(x.Value(k))
			if err != nil {
				return nil, err
			}
			m.Append(k, child)
		}
		return m, nil
	case string:
		return NewString(x), nil
	case bool:
		return NewBool(x), nil
	case json.Number:
		return NewNumber(string(x)), nil
	case float64:
		return NewFloat(x), nil
	case float32:
		return NewFloat(float64(x)), nil
	case int:
		return NewNumber(strconv.Itoa(x)), nil
	case int64:
		return NewNumber(strconv.FormatInt(x, 10)), nil
	case []any:
		seq := NewSequence()
		for _, item := range x {
			child, err := FromValue(item)
			if err != nil {
				return nil, err
			}
			seq.Items = append(seq.Items, child)
		}
		return seq, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMapping()
		for _, k := range keys {
			child, err := FromValue(x[k])
			if err != nil {
				return nil, err
			}
			m.Append(k, child)
		}
		return m, nil
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) (Node, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return FromValue(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return FromValue(m)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewNumber(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewNumber(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Bool:
		return NewBool(rv.Bool()), nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", rv.Type())
	}
}
