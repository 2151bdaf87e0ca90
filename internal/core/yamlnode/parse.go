package yamlnode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"
)

// Document is a parsed source file.
type Document struct {
	FileName string
	Root     Node
}

var (
	ErrDuplicateKey    = errors.New("duplicate mapping key")
	ErrAnchorsNotAllow = errors.New("anchors and aliases are not supported")
	ErrUnsupportedNode = errors.New("unsupported YAML node")
)

// ParseError describes a document that is not valid pipeline YAML.
type ParseError struct {
	FileName string
	Pos      Pos
	Err      error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	if e.FileName != "" {
		sb.WriteString(e.FileName)
	}
	if e.Pos.Line > 0 {
		if sb.Len() > 0 {
			sb.WriteString(":")
		}
		fmt.Fprintf(&sb, "%d:%d", e.Pos.Line, e.Pos.Column)
	}
	if sb.Len() > 0 {
		sb.WriteString(": ")
	}
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses text into a Document. In strict mode every duplicate key is
// rejected; otherwise duplicated directive keys such as "${{ insert }}" are
// kept as separate entries and left for the expander to resolve.
func Parse(text, fileName string, strict bool) (*Document, error) {
	file, err := parser.ParseBytes([]byte(text), 0, parser.AllowDuplicateMapKey())
	if err != nil {
		return nil, &ParseError{FileName: fileName, Err: err}
	}
	doc := &Document{FileName: fileName, Root: NewNull()}
	for _, d := range file.Docs {
		if d == nil || d.Body == nil {
			continue
		}
		b := &builder{fileName: fileName, strict: strict}
		root, err := b.build(d.Body)
		if err != nil {
			return nil, err
		}
		doc.Root = root
		break
	}
	return doc, nil
}

type builder struct {
	fileName string
	strict   bool
}

func (b *builder) errorf(tk *token.Token, err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &ParseError{FileName: b.fileName, Pos: posOf(tk), Err: fmt.Errorf("%w: %s", err, msg)}
}

func (b *builder) build(n ast.Node) (Node, error) {
	switch v := n.(type) {
	case nil:
		return NewNull(), nil
	case *ast.DocumentNode:
		return b.build(v.Body)
	case *ast.MappingNode:
		return b.buildMapping(v.GetToken(), v.Values)
	case *ast.MappingValueNode:
		return b.buildMapping(v.GetToken(), []*ast.MappingValueNode{v})
	case *ast.SequenceNode:
		seq := &Sequence{Pos: posOf(v.GetToken()), Items: make([]Node, 0, len(v.Values))}
		for _, item := range v.Values {
			child, err := b.build(item)
			if err != nil {
				return nil, err
			}
			seq.Items = append(seq.Items, child)
		}
		return seq, nil
	case *ast.StringNode:
		return &Scalar{Kind: StringKind, Text: v.Value, Pos: posOf(v.GetToken())}, nil
	case *ast.LiteralNode:
		s := &Scalar{Kind: StringKind, Pos: posOf(v.GetToken())}
		if v.Value != nil {
			s.Text = v.Value.Value
		}
		return s, nil
	case *ast.IntegerNode:
		return &Scalar{Kind: NumberKind, Text: v.GetToken().Value, Pos: posOf(v.GetToken())}, nil
	case *ast.FloatNode:
		return &Scalar{Kind: NumberKind, Text: v.GetToken().Value, Pos: posOf(v.GetToken())}, nil
	case *ast.InfinityNode:
		return &Scalar{Kind: NumberKind, Text: v.GetToken().Value, Pos: posOf(v.GetToken())}, nil
	case *ast.NanNode:
		return &Scalar{Kind: NumberKind, Text: v.GetToken().Value, Pos: posOf(v.GetToken())}, nil
	case *ast.BoolNode:
		return &Scalar{Kind: BoolKind, Bool: v.Value, Text: v.GetToken().Value, Pos: posOf(v.GetToken())}, nil
	case *ast.NullNode:
		return &Scalar{Kind: NullKind, Pos: posOf(v.GetToken())}, nil
	case *ast.TagNode:
		return b.buildTagged(v)
	case *ast.CommentGroupNode:
		return NewNull(), nil
	case *ast.AnchorNode:
		return nil, b.errorf(v.GetToken(), ErrAnchorsNotAllow, "anchor %q", v.GetToken().Value)
	case *ast.AliasNode:
		return nil, b.errorf(v.GetToken(), ErrAnchorsNotAllow, "alias %q", v.GetToken().Value)
	default:
		return nil, b.errorf(n.GetToken(), ErrUnsupportedNode, "%s", n.Type())
	}
}

// buildTagged honors the explicit string tag and otherwise ignores tags.
func (b *builder) buildTagged(v *ast.TagNode) (Node, error) {
	child, err := b.build(v.Value)
	if err != nil {
		return nil, err
	}
	if s, ok := child.(*Scalar); ok && v.Start != nil && v.Start.Value == "!!str" {
		return &Scalar{Kind: StringKind, Text: s.rawText(), Pos: s.Pos}, nil
	}
	return child, nil
}

func (s *Scalar) rawText() string {
	switch s.Kind {
	case NumberKind:
		return s.Text
	case NullKind:
		return ""
	default:
		return s.String()
	}
}

func (b *builder) buildMapping(tk *token.Token, values []*ast.MappingValueNode) (Node, error) {
	m := &Mapping{Pos: posOf(tk), Entries: make([]*Entry, 0, len(values))}
	seen := make(map[string]bool, len(values))
	for _, mv := range values {
		key, keyTk, err := b.mapKey(mv)
		if err != nil {
			return nil, err
		}
		if seen[key] && (b.strict || !IsDirectiveKey(key)) {
			return nil, b.errorf(keyTk, ErrDuplicateKey, "%q", key)
		}
		seen[key] = true
		value, err := b.build(mv.Value)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, &Entry{Key: key, KeyPos: posOf(keyTk), Value: value})
	}
	return m, nil
}

func (b *builder) mapKey(mv *ast.MappingValueNode) (string, *token.Token, error) {
	var key ast.Node = mv.Key
	if key == nil {
		return "", mv.GetToken(), b.errorf(mv.GetToken(), ErrUnsupportedNode, "missing mapping key")
	}
	tk := key.GetToken()
	switch k := key.(type) {
	case *ast.StringNode:
		return k.Value, tk, nil
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.NullNode:
		return tk.Value, tk, nil
	case *ast.TagNode:
		return b.mapKeyValue(k.Value, tk)
	case *ast.AnchorNode, *ast.AliasNode:
		return "", tk, b.errorf(tk, ErrAnchorsNotAllow, "key %q", tk.Value)
	default:
		return "", tk, b.errorf(tk, ErrUnsupportedNode, "mapping key of type %s", key.Type())
	}
}

func (b *builder) mapKeyValue(n ast.Node, tk *token.Token) (string, *token.Token, error) {
	child, err := b.build(n)
	if err != nil {
		return "", tk, err
	}
	s, ok := child.(*Scalar)
	if !ok {
		return "", tk, b.errorf(tk, ErrUnsupportedNode, "non-scalar mapping key")
	}
	return s.rawText(), tk, nil
}

func posOf(tk *token.Token) Pos {
	if tk == nil || tk.Position == nil {
		return Pos{}
	}
	return Pos{Line: tk.Position.Line, Column: tk.Position.Column}
}

// IsDirectiveKey reports whether key is a compile-time "${{ ... }}" key.
func IsDirectiveKey(key string) bool {
	k := strings.TrimSpace(key)
	return strings.HasPrefix(k, "${{") && strings.HasSuffix(k, "}}")
}
