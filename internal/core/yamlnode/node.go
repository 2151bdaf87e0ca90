// Package yamlnode is the document tree used by the expander: ordered
// mappings, sequences and typed scalars annotated with source positions.
package yamlnode

import (
	"fmt"
	"strconv"
	"strings"
)

// Pos is a 1-based source position. The zero value means unknown.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is one of *Mapping, *Sequence or *Scalar.
type Node interface {
	Position() Pos
	isNode()
}

// Entry is a single key/value pair of a mapping.
type Entry struct {
	Key    string
	KeyPos Pos
	Value  Node
}

// Mapping is an ordered mapping. Keys are unique except for directive keys
// kept by a relaxed parse until expansion collapses them.
type Mapping struct {
	Entries []*Entry
	Pos     Pos
}

// Sequence is an ordered list of nodes.
type Sequence struct {
	Items []Node
	Pos   Pos
}

// ScalarKind identifies the type of a scalar.
type ScalarKind int

const (
	StringKind ScalarKind = iota
	NumberKind
	BoolKind
	NullKind
)

func (k ScalarKind) String() string {
	switch k {
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	case BoolKind:
		return "boolean"
	case NullKind:
		return "null"
	default:
		return "unknown"
	}
}

// Scalar is a leaf value. Numbers keep their source text in Text so the
// encoder can reproduce them without float round-off.
type Scalar struct {
	Kind ScalarKind
	Text string
	Bool bool
	Pos  Pos
}

func (m *Mapping) Position() Pos  { return m.Pos }
func (s *Sequence) Position() Pos { return s.Pos }
func (s *Scalar) Position() Pos   { return s.Pos }

func (*Mapping) isNode()  {}
func (*Sequence) isNode() {}
func (*Scalar) isNode()   {}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping { return &Mapping{} }

// NewSequence returns a sequence holding items.
func NewSequence(items ...Node) *Sequence { return &Sequence{Items: items} }

// NewString returns a string scalar.
func NewString(s string) *Scalar { return &Scalar{Kind: StringKind, Text: s} }

// NewBool returns a boolean scalar.
func NewBool(b bool) *Scalar { return &Scalar{Kind: BoolKind, Bool: b} }

// NewNull returns a null scalar.
func NewNull() *Scalar { return &Scalar{Kind: NullKind} }

// NewNumber returns a number scalar with the given literal text.
func NewNumber(text string) *Scalar { return &Scalar{Kind: NumberKind, Text: text} }

// NewFloat returns a number scalar for f using the shortest exact form.
func NewFloat(f float64) *Scalar {
	return NewNumber(strconv.FormatFloat(f, 'f', -1, 64))
}

// Get returns the value for key, or nil.
func (m *Mapping) Get(key string) Node {
	if e := m.Entry(key); e != nil {
		return e.Value
	}
	return nil
}

// Entry returns the first entry with the given key, or nil.
func (m *Mapping) Entry(key string) *Entry {
	for _, e := range m.Entries {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool { return m.Entry(key) != nil }

// Set replaces the value of key, or appends a new entry.
func (m *Mapping) Set(key string, value Node) {
	if e := m.Entry(key); e != nil {
		e.Value = value
		return
	}
	m.Entries = append(m.Entries, &Entry{Key: key, Value: value})
}

// Append adds an entry without checking for an existing key.
func (m *Mapping) Append(key string, value Node) {
	m.Entries = append(m.Entries, &Entry{Key: key, Value: value})
}

// Keys returns the keys in order.
func (m *Mapping) Keys() []string {
	keys := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of entries.
func (m *Mapping) Len() int { return len(m.Entries) }

// String returns the scalar text for strings and the canonical text for
// numbers and booleans. Null yields "".
func (s *Scalar) String() string {
	switch s.Kind {
	case NumberKind:
		return s.Canonical()
	case BoolKind:
		return strconv.FormatBool(s.Bool)
	case NullKind:
		return ""
	default:
		return s.Text
	}
}

// Canonical returns the number text with insignificant trailing fractional
// zeros removed. Other number forms are returned unchanged.
func (s *Scalar) Canonical() string {
	return CanonicalNumber(s.Text)
}

// Float returns the numeric value of a number scalar.
func (s *Scalar) Float() (float64, error) {
	text := strings.ReplaceAll(s.Text, "_", "")
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, nil
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s.Text, err)
	}
	return float64(i), nil
}

// CanonicalNumber trims trailing fractional zeros from a plain decimal
// literal: 17.0 becomes 17 and 3.10 becomes 3.1.
func CanonicalNumber(text string) string {
	if !strings.Contains(text, ".") || strings.ContainsAny(text, "eExXoObB_") {
		return text
	}
	trimmed := strings.TrimRight(text, "0")
	trimmed = strings.TrimSuffix(trimmed, ".")
	switch trimmed {
	case "", "-", "+":
		return "0"
	}
	return trimmed
}

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	switch v := n.(type) {
	case *Mapping:
		out := &Mapping{Pos: v.Pos, Entries: make([]*Entry, len(v.Entries))}
		for i, e := range v.Entries {
			out.Entries[i] = &Entry{Key: e.Key, KeyPos: e.KeyPos, Value: Clone(e.Value)}
		}
		return out
	case *Sequence:
		out := &Sequence{Pos: v.Pos, Items: make([]Node, len(v.Items))}
		for i, item := range v.Items {
			out.Items[i] = Clone(item)
		}
		return out
	case *Scalar:
		c := *v
		return &c
	default:
		return nil
	}
}

// IsNull reports whether n is nil or a null scalar.
func IsNull(n Node) bool {
	if n == nil {
		return true
	}
	s, ok := n.(*Scalar)
	return ok && s.Kind == NullKind
}

// StringValue returns the text of a scalar node.
func StringValue(n Node) (string, bool) {
	s, ok := n.(*Scalar)
	if !ok || s.Kind == NullKind {
		return "", false
	}
	return s.String(), true
}

// KindOf returns a short description of the node type for messages.
func KindOf(n Node) string {
	switch v := n.(type) {
	case *Mapping:
		return "mapping"
	case *Sequence:
		return "sequence"
	case *Scalar:
		return v.Kind.String()
	default:
		return "null"
	}
}
