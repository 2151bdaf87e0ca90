package expr

import (
	"strings"
)

const (
	openCompile  = "${{"
	closeCompile = "}}"
	openRuntime  = "$["
	closeRuntime = "]"
)

// Span is a "${{ ... }}" occurrence inside a string. Start and End are byte
// offsets of the delimiters; Body is the trimmed expression text.
type Span struct {
	Start int
	End   int
	Body  string
}

// ContainsExpression reports whether s contains a compile-time expression.
func ContainsExpression(s string) bool {
	return strings.Contains(s, openCompile)
}

// ScanExpressions returns every compile-time expression in s. A "}}" inside
// a quoted string literal does not close the expression.
func ScanExpressions(s string) ([]Span, error) {
	var spans []Span
	offset := 0
	for {
		i := strings.Index(s[offset:], openCompile)
		if i < 0 {
			return spans, nil
		}
		start := offset + i
		end, ok := findClose(s, start+len(openCompile), closeCompile)
		if !ok {
			return nil, syntaxError(s, start, "unclosed '${{' expression")
		}
		spans = append(spans, Span{
			Start: start,
			End:   end + len(closeCompile),
			Body:  strings.TrimSpace(s[start+len(openCompile) : end]),
		})
		offset = end + len(closeCompile)
	}
}

func findClose(s string, from int, delim string) (int, bool) {
	inQuote := false
	for i := from; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			inQuote = !inQuote
		case !inQuote && strings.HasPrefix(s[i:], delim):
			return i, true
		}
	}
	return 0, false
}

// CheckSyntax verifies that every compile-time expression in s is closed
// and parses, and that runtime "$[ ]" expressions are closed.
func CheckSyntax(s string) error {
	spans, err := ScanExpressions(s)
	if err != nil {
		return err
	}
	for _, sp := range spans {
		if _, err := Parse(sp.Body); err != nil {
			return err
		}
	}
	offset := 0
	for {
		i := strings.Index(s[offset:], openRuntime)
		if i < 0 {
			return nil
		}
		start := offset + i
		end, ok := findClose(s, start+len(openRuntime), closeRuntime)
		if !ok {
			return syntaxError(s, start, "unclosed '$[' expression")
		}
		offset = end + len(closeRuntime)
	}
}

// Interpolate evaluates every compile-time expression in s. When s consists
// of exactly one expression the typed value is returned; otherwise values
// are converted to strings and concatenated with the surrounding text.
func Interpolate(s string, env Env) (any, error) {
	spans, err := ScanExpressions(s)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return s, nil
	}
	if len(spans) == 1 && strings.TrimSpace(s[:spans[0].Start]) == "" && strings.TrimSpace(s[spans[0].End:]) == "" {
		return Evaluate(spans[0].Body, env)
	}
	var sb strings.Builder
	last := 0
	for _, sp := range spans {
		sb.WriteString(s[last:sp.Start])
		v, err := Evaluate(sp.Body, env)
		if err != nil {
			return nil, err
		}
		sb.WriteString(ToString(v))
		last = sp.End
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}
