package expr

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax            = errors.New("expression syntax error")
	ErrUnknownFunction   = errors.New("unrecognized function")
	ErrArgumentCount     = errors.New("wrong number of arguments")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnrecognizedValue = errors.New("unrecognized value")
)

// Error is an expression failure tied to the expression text and the
// character offset where it occurred.
type Error struct {
	Expr string
	Pos  int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Expr == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s (expression %q, position %d)", e.Msg, e.Expr, e.Pos+1)
}

func (e *Error) Unwrap() error { return e.Err }

// IsSyntax reports whether err is a syntax error.
func IsSyntax(err error) bool {
	return errors.Is(err, ErrSyntax)
}

func syntaxError(src string, pos int, msg string) *Error {
	return &Error{Expr: src, Pos: pos, Msg: msg, Err: ErrSyntax}
}

func evalError(src string, pos int, err error, format string, args ...any) *Error {
	return &Error{Expr: src, Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err}
}
