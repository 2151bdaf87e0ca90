// Package diag carries expansion failures together with the template call
// stack that was active when they happened.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an expansion failure. A Kind is itself an error so that
// errors.Is(err, diag.UnknownParameter) matches any *Error of that kind.
type Kind string

const (
	TemplateFileNotFound     Kind = "template-file-not-found"
	RepositoryNotDefined     Kind = "repository-not-defined"
	RepositoryNotMapped      Kind = "repository-not-mapped"
	TemplateParseFailure     Kind = "template-parse-failure"
	UnknownParameter         Kind = "unknown-parameter"
	MissingRequiredParameter Kind = "missing-required-parameter"
	InvalidParameter         Kind = "invalid-parameter"
	DuplicateKey             Kind = "duplicate-key-after-expansion"
	ExpressionSyntax         Kind = "expression-syntax-error"
	ExpressionFailure        Kind = "expression-error"
	CycleOrDepthExceeded     Kind = "cycle-or-depth-exceeded"
)

func (k Kind) Error() string { return string(k) }

// Frame is one template invocation. File is the file being expanded,
// Template the reference as written by the caller and Line the line of
// that reference in the caller's file.
type Frame struct {
	File     string
	Template string
	Line     int
}

// Stack is the chain of active frames, root first. Push never modifies the
// receiver, so a Stack captured by an error stays frozen.
type Stack []Frame

// Push returns a new stack with f appended.
func (s Stack) Push(f Frame) Stack {
	out := make(Stack, len(s), len(s)+1)
	copy(out, s)
	return append(out, f)
}

// Contains reports whether file is already being expanded.
func (s Stack) Contains(file string) bool {
	for _, f := range s {
		if f.File == file {
			return true
		}
	}
	return false
}

// Current returns the innermost frame.
func (s Stack) Current() Frame {
	if len(s) == 0 {
		return Frame{}
	}
	return s[len(s)-1]
}

// Error is an expansion failure.
type Error struct {
	Kind    Kind
	Message string
	Issues  []string
	Stack   Stack
	Err     error
}

// New creates an error of the given kind.
func New(kind Kind, stack Stack, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Stack: stack}
}

// Wrap creates an error of the given kind caused by err.
func Wrap(kind Kind, stack Stack, err error, format string, args ...any) *Error {
	e := New(kind, stack, format, args...)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if len(e.Issues) > 0 {
		sb.WriteString("\n\nPotential issues:")
		for _, issue := range e.Issues {
			sb.WriteString("\n  - ")
			sb.WriteString(issue)
		}
	}
	if len(e.Stack) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(RenderStack(e.Stack))
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

const (
	connector = "└─ "
	indent    = "   "
)

// RenderStack renders the call stack root first; each nested frame is
// indented under its caller and names the caller's file and line.
func RenderStack(s Stack) string {
	var sb strings.Builder
	sb.WriteString("Template call stack:")
	for i, f := range s {
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString(f.File)
			continue
		}
		sb.WriteString(strings.Repeat(indent, i-1))
		sb.WriteString(connector)
		name := f.Template
		if name == "" {
			name = f.File
		}
		sb.WriteString(name)
		caller := s[i-1].File
		if f.Line > 0 {
			fmt.Fprintf(&sb, " (%s:%d)", caller, f.Line)
		} else {
			fmt.Fprintf(&sb, " (%s)", caller)
		}
	}
	return sb.String()
}
