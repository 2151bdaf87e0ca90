package expr

import (
	"fmt"
	"math"
	"strings"
)

// Resolver looks up context roots (parameters, variables, loop variables).
type Resolver interface {
	Lookup(name string) (any, bool)
}

// MapResolver resolves names from a plain map.
type MapResolver map[string]any

// Lookup implements Resolver.
func (m MapResolver) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Env is the evaluation environment.
type Env struct {
	Resolver Resolver
	Counters CounterStore
}

// strictRoot is the context root whose undeclared members are errors
// rather than null.
const strictRoot = "parameters"

// Evaluate parses and evaluates a single expression.
func Evaluate(src string, env Env) (any, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Eval(e, src, env)
}

// Eval evaluates a parsed expression. src is used for error messages.
func Eval(e Expr, src string, env Env) (any, error) {
	ev := &evaluator{src: src, env: env}
	return ev.eval(e)
}

type evaluator struct {
	src string
	env Env
}

func (ev *evaluator) eval(e Expr) (any, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil
	case *Ident:
		if ev.env.Resolver != nil {
			if v, ok := ev.env.Resolver.Lookup(n.Name); ok {
				return Normalize(v), nil
			}
		}
		return nil, evalError(ev.src, n.At, ErrUnrecognizedValue, "unrecognized value: '%s'", n.Name)
	case *Index:
		return ev.evalIndex(n)
	case *Call:
		return ev.call(n)
	default:
		return nil, evalError(ev.src, e.Pos(), ErrSyntax, "unsupported expression node %T", e)
	}
}

func (ev *evaluator) evalIndex(n *Index) (any, error) {
	target, err := ev.eval(n.Target)
	if err != nil {
		return nil, err
	}
	key, err := ev.eval(n.Key)
	if err != nil {
		return nil, err
	}
	switch t := target.(type) {
	case *Object:
		name := ToString(key)
		v, ok := t.Get(name)
		if !ok {
			if root, isRoot := n.Target.(*Ident); isRoot && strings.EqualFold(root.Name, strictRoot) {
				return nil, evalError(ev.src, n.At, ErrUnrecognizedValue, "unrecognized value: '%s.%s'", root.Name, name)
			}
			return nil, nil
		}
		return Normalize(v), nil
	case []any:
		f, ok := ToNumber(key)
		if !ok || f != math.Trunc(f) || f < 0 || int(f) >= len(t) {
			return nil, nil
		}
		return Normalize(t[int(f)]), nil
	default:
		return nil, nil
	}
}

func (ev *evaluator) call(n *Call) (any, error) {
	fn, ok := lookupFunction(n.Name)
	if !ok {
		return nil, evalError(ev.src, n.At, ErrUnknownFunction, "unrecognized function: '%s'", n.Name)
	}
	if len(n.Args) < fn.min || (fn.max >= 0 && len(n.Args) > fn.max) {
		return nil, evalError(ev.src, n.At, ErrArgumentCount, "%s", arityMessage(n.Name, fn, len(n.Args)))
	}
	if fn.lazy != nil {
		return fn.lazy(ev, n)
	}
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn.eager(ev, args)
	if err != nil {
		return nil, evalError(ev.src, n.At, ErrInvalidArgument, "%s: %v", n.Name, err)
	}
	return v, nil
}

func arityMessage(name string, fn *function, got int) string {
	switch {
	case fn.max < 0:
		return fmt.Sprintf("function '%s' requires at least %d arguments, got %d", name, fn.min, got)
	case fn.min == fn.max:
		return fmt.Sprintf("function '%s' requires exactly %d arguments, got %d", name, fn.min, got)
	default:
		return fmt.Sprintf("function '%s' requires %d to %d arguments, got %d", name, fn.min, fn.max, got)
	}
}

// EvaluateFunction calls a function of the table directly with already
// evaluated arguments. counter() uses the process-wide store.
func EvaluateFunction(name string, args []any) (any, error) {
	call := &Call{Name: name}
	for _, a := range args {
		call.Args = append(call.Args, &Literal{Value: Normalize(a)})
	}
	ev := &evaluator{env: Env{Counters: DefaultCounters}}
	return ev.call(call)
}
