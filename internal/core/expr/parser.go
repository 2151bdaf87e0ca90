package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is a parsed expression node.
type Expr interface {
	Pos() int
}

// Literal is a constant value.
type Literal struct {
	Value any
	At    int
}

// Ident names a context root such as parameters, variables or a loop variable.
type Ident struct {
	Name string
	At   int
}

// Index is a property or element access: target.name, target['name'] or
// target[0].
type Index struct {
	Target Expr
	Key    Expr
	At     int
}

// Call is a function invocation.
type Call struct {
	Name string
	Args []Expr
	At   int
}

func (e *Literal) Pos() int { return e.At }
func (e *Ident) Pos() int   { return e.At }
func (e *Index) Pos() int   { return e.At }
func (e *Call) Pos() int    { return e.At }

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokComma:
		return "','"
	case tokDot:
		return "'.'"
	default:
		return "token"
	}
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '.' && (i+1 >= len(rs) || !unicode.IsDigit(rs[i+1])):
			toks = append(toks, token{tokDot, ".", i})
			i++
		case c == '\'':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(rs) {
				if rs[i] == '\'' {
					if i+1 < len(rs) && rs[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteRune(rs[i])
				i++
			}
			if !closed {
				return nil, syntaxError(src, start, "unterminated string literal")
			}
			toks = append(toks, token{tokString, sb.String(), start})
		case unicode.IsDigit(c) || c == '.' || (c == '-' || c == '+') && i+1 < len(rs) && (unicode.IsDigit(rs[i+1]) || rs[i+1] == '.'):
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			text := string(rs[start:i])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, syntaxError(src, start, fmt.Sprintf("invalid number %q", text))
			}
			toks = append(toks, token{tokNumber, text, start})
		case isIdentStart(c):
			start := i
			for i < len(rs) && isIdentPart(rs[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, string(rs[start:i]), start})
		default:
			return nil, syntaxError(src, i, fmt.Sprintf("unexpected character %q", c))
		}
	}
	toks = append(toks, token{tokEOF, "", len(rs)})
	return toks, nil
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentPart(c rune) bool {
	return c == '_' || c == '-' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

type parser struct {
	src  string
	toks []token
	i    int
}

// Parse parses a single expression such as "eq(parameters.os, 'linux')".
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	if p.peek().kind == tokEOF {
		return nil, syntaxError(src, 0, "expected an expression")
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tk := p.peek(); tk.kind != tokEOF {
		return nil, syntaxError(src, tk.pos, fmt.Sprintf("unexpected %s %q", tk.kind, tk.text))
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	tk := p.toks[p.i]
	if tk.kind != tokEOF {
		p.i++
	}
	return tk
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tk := p.next()
	if tk.kind != kind {
		return tk, syntaxError(p.src, tk.pos, fmt.Sprintf("expected %s but found %s", kind, tk.kind))
	}
	return tk, nil
}

func (p *parser) parseExpr() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch tk := p.peek(); tk.kind {
		case tokDot:
			p.next()
			name, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			e = &Index{Target: e, Key: &Literal{Value: name.text, At: name.pos}, At: tk.pos}
		case tokLBracket:
			p.next()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			e = &Index{Target: e, Key: key, At: tk.pos}
		default:
			return e, nil
		}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	tk := p.next()
	switch tk.kind {
	case tokNumber:
		f, _ := strconv.ParseFloat(tk.text, 64)
		return &Literal{Value: f, At: tk.pos}, nil
	case tokString:
		return &Literal{Value: tk.text, At: tk.pos}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(tk)
		}
		switch strings.ToLower(tk.text) {
		case "true":
			return &Literal{Value: true, At: tk.pos}, nil
		case "false":
			return &Literal{Value: false, At: tk.pos}, nil
		case "null":
			return &Literal{Value: nil, At: tk.pos}, nil
		}
		return &Ident{Name: tk.text, At: tk.pos}, nil
	default:
		return nil, syntaxError(p.src, tk.pos, fmt.Sprintf("unexpected %s", tk.kind))
	}
}

func (p *parser) parseCall(name token) (Expr, error) {
	p.next() // (
	call := &Call{Name: name.text, At: name.pos}
	if p.peek().kind == tokRParen {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		tk := p.next()
		switch tk.kind {
		case tokComma:
			continue
		case tokRParen:
			return call, nil
		default:
			return nil, syntaxError(p.src, tk.pos, fmt.Sprintf("expected ',' or ')' but found %s", tk.kind))
		}
	}
}
