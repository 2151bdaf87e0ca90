package expr

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type function struct {
	min, max int // max < 0 means variadic
	eager    func(ev *evaluator, args []any) (any, error)
	lazy     func(ev *evaluator, n *Call) (any, error)
}

var functions map[string]*function

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

func init() {
	functions = map[string]*function{
		"eq": {min: 2, max: 2, eager: pure(func(a []any) (any, error) { return Equal(a[0], a[1]), nil })},
		"ne": {min: 2, max: 2, eager: pure(func(a []any) (any, error) { return !Equal(a[0], a[1]), nil })},
		"gt": {min: 2, max: 2, eager: pure(func(a []any) (any, error) { return Compare(a[0], a[1]) > 0, nil })},
		"ge": {min: 2, max: 2, eager: pure(func(a []any) (any, error) { return Compare(a[0], a[1]) >= 0, nil })},
		"lt": {min: 2, max: 2, eager: pure(func(a []any) (any, error) { return Compare(a[0], a[1]) < 0, nil })},
		"le": {min: 2, max: 2, eager: pure(func(a []any) (any, error) { return Compare(a[0], a[1]) <= 0, nil })},

		"and":    {min: 2, max: -1, lazy: fnAnd},
		"or":     {min: 2, max: -1, lazy: fnOr},
		"not":    {min: 1, max: 1, eager: pure(func(a []any) (any, error) { return !Truthy(a[0]), nil })},
		"xor":    {min: 2, max: 2, eager: pure(func(a []any) (any, error) { return Truthy(a[0]) != Truthy(a[1]), nil })},
		"if":     {min: 3, max: 3, lazy: fnIf},
		"iif":    {min: 3, max: 3, lazy: fnIf},
		"elseif": {min: 3, max: 3, lazy: fnIf},

		"coalesce":      {min: 1, max: -1, lazy: fnCoalesce},
		"contains":      {min: 2, max: 2, eager: pure(fnContains)},
		"containsvalue": {min: 2, max: 2, eager: pure(fnContainsValue)},
		"in":            {min: 1, max: -1, eager: pure(func(a []any) (any, error) { return inList(a[0], a[1:]), nil })},
		"notin":         {min: 1, max: -1, eager: pure(func(a []any) (any, error) { return !inList(a[0], a[1:]), nil })},

		"upper":      {min: 1, max: 1, eager: pure(func(a []any) (any, error) { return upperCaser.String(ToString(a[0])), nil })},
		"lower":      {min: 1, max: 1, eager: pure(func(a []any) (any, error) { return lowerCaser.String(ToString(a[0])), nil })},
		"trim":       {min: 1, max: 1, eager: pure(func(a []any) (any, error) { return strings.TrimSpace(ToString(a[0])), nil })},
		"startswith": {min: 2, max: 2, eager: pure(fnStartsWith)},
		"endswith":   {min: 2, max: 2, eager: pure(fnEndsWith)},
		"replace":    {min: 3, max: 3, eager: pure(fnReplace)},
		"split":      {min: 2, max: 2, eager: pure(fnSplit)},
		"join":       {min: 2, max: 2, eager: pure(fnJoin)},
		"format":     {min: 1, max: -1, eager: pure(fnFormat)},
		"length":     {min: 1, max: 1, eager: pure(fnLength)},

		"always":            {min: 0, max: -1, lazy: constant(true)},
		"succeeded":         {min: 0, max: -1, lazy: constant(true)},
		"succeededorfailed": {min: 0, max: -1, lazy: constant(true)},
		"failed":            {min: 0, max: -1, lazy: constant(false)},
		"canceled":          {min: 0, max: -1, lazy: constant(false)},

		"converttojson": {min: 1, max: 1, eager: pure(fnConvertToJSON)},
		"counter":       {min: 1, max: 2, eager: fnCounter},
	}
}

func lookupFunction(name string) (*function, bool) {
	fn, ok := functions[strings.ToLower(name)]
	return fn, ok
}

// FunctionNames returns the supported function names in lower case.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pure(fn func(args []any) (any, error)) func(*evaluator, []any) (any, error) {
	return func(_ *evaluator, args []any) (any, error) { return fn(args) }
}

func constant(v bool) func(*evaluator, *Call) (any, error) {
	return func(*evaluator, *Call) (any, error) { return v, nil }
}

func fnAnd(ev *evaluator, n *Call) (any, error) {
	for _, a := range n.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		if !Truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func fnOr(ev *evaluator, n *Call) (any, error) {
	for _, a := range n.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func fnIf(ev *evaluator, n *Call) (any, error) {
	cond, err := ev.eval(n.Args[0])
	if err != nil {
		return nil, err
	}
	if Truthy(cond) {
		return ev.eval(n.Args[1])
	}
	return ev.eval(n.Args[2])
}

func fnCoalesce(ev *evaluator, n *Call) (any, error) {
	for _, a := range n.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); v == nil || ok && s == "" {
			continue
		}
		return v, nil
	}
	return nil, nil
}

func fnContains(a []any) (any, error) {
	switch h := a[0].(type) {
	case nil:
		return false, nil
	case []any:
		return inList(a[1], h), nil
	case *Object:
		_, ok := h.Get(ToString(a[1]))
		return ok, nil
	default:
		return strings.Contains(strings.ToLower(ToString(h)), strings.ToLower(ToString(a[1]))), nil
	}
}

func fnContainsValue(a []any) (any, error) {
	switch h := a[0].(type) {
	case []any:
		return inList(a[1], h), nil
	case *Object:
		for _, k := range h.Keys() {
			if Equal(h.Value(k), a[1]) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

func inList(v any, candidates []any) bool {
	for _, c := range candidates {
		if Equal(v, c) {
			return true
		}
	}
	return false
}

func fnStartsWith(a []any) (any, error) {
	return strings.HasPrefix(strings.ToLower(ToString(a[0])), strings.ToLower(ToString(a[1]))), nil
}

func fnEndsWith(a []any) (any, error) {
	return strings.HasSuffix(strings.ToLower(ToString(a[0])), strings.ToLower(ToString(a[1]))), nil
}

func fnReplace(a []any) (any, error) {
	s, old := ToString(a[0]), ToString(a[1])
	if old == "" {
		return s, nil
	}
	return strings.ReplaceAll(s, old, ToString(a[2])), nil
}

func fnSplit(a []any) (any, error) {
	s, sep := ToString(a[0]), ToString(a[1])
	if s == "" {
		return []any{}, nil
	}
	if sep == "" {
		return []any{s}, nil
	}
	parts := strings.Split(s, sep)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func fnJoin(a []any) (any, error) {
	sep := ToString(a[0])
	switch seq := a[1].(type) {
	case nil:
		return "", nil
	case []any:
		parts := make([]string, len(seq))
		for i, item := range seq {
			parts[i] = ToString(item)
		}
		return strings.Join(parts, sep), nil
	case *Object:
		return strings.Join(seq.Keys(), sep), nil
	default:
		return ToString(seq), nil
	}
}

var errFormat = errors.New("invalid format string")

// fnFormat substitutes {N} placeholders; "{{" and "}}" produce literal braces.
func fnFormat(a []any) (any, error) {
	tpl := ToString(a[0])
	args := a[1:]
	var sb strings.Builder
	for i := 0; i < len(tpl); i++ {
		c := tpl[i]
		switch {
		case c == '{' && i+1 < len(tpl) && tpl[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tpl) && tpl[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tpl[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed '{' at %d", errFormat, i)
			}
			ph := tpl[i+1 : i+end]
			idxText, _, _ := strings.Cut(ph, ":")
			idx, err := strconv.Atoi(strings.TrimSpace(idxText))
			if err != nil {
				return nil, fmt.Errorf("%w: invalid placeholder {%s}", errFormat, ph)
			}
			if idx < 0 || idx >= len(args) {
				return nil, fmt.Errorf("%w: placeholder {%d} has no argument", errFormat, idx)
			}
			sb.WriteString(ToString(args[idx]))
			i += end
		case c == '}':
			return nil, fmt.Errorf("%w: unexpected '}' at %d", errFormat, i)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func fnLength(a []any) (any, error) {
	switch v := a[0].(type) {
	case nil:
		return float64(0), nil
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	case []any:
		return float64(len(v)), nil
	case *Object:
		return float64(v.Len()), nil
	default:
		return nil, fmt.Errorf("cannot take the length of %s", typeName(v))
	}
}

func fnConvertToJSON(a []any) (any, error) {
	data, err := json.MarshalIndent(a[0], "", "  ")
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func fnCounter(ev *evaluator, a []any) (any, error) {
	seed := 0
	if len(a) > 1 {
		f, ok := ToNumber(a[1])
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("seed must be an integer, got %s", typeName(a[1]))
		}
		seed = int(f)
	}
	store := ev.env.Counters
	if store == nil {
		store = DefaultCounters
	}
	return float64(store.Next(ToString(a[0]), seed)), nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case *Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
