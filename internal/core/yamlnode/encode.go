package yamlnode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// EncodeOptions controls the rendered text.
type EncodeOptions struct {
	// AzureCompatible separates top-level sections with a blank line the way
	// the hosted pipeline editor renders expanded YAML.
	AzureCompatible bool
}

// number renders a number scalar with its canonical text.
type number string

// MarshalYAML implements yaml.BytesMarshaler.
func (n number) MarshalYAML() ([]byte, error) {
	return []byte(n), nil
}

// Encode renders n as YAML text.
func Encode(n Node, opts EncodeOptions) (string, error) {
	if IsNull(n) {
		return "", nil
	}
	data, err := yaml.MarshalWithOptions(
		toYAML(n),
		yaml.Indent(2),
		yaml.IndentSequence(true),
		yaml.UseLiteralStyleIfMultiline(true),
	)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	text := string(data)
	if opts.AzureCompatible {
		text = separateSections(text)
	}
	return text, nil
}

func toYAML(n Node) any {
	switch v := n.(type) {
	case *Mapping:
		out := make(yaml.MapSlice, 0, len(v.Entries))
		for _, e := range v.Entries {
			out = append(out, yaml.MapItem{Key: e.Key, Value: toYAML(e.Value)})
		}
		return out
	case *Sequence:
		out := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			out = append(out, toYAML(item))
		}
		return out
	case *Scalar:
		switch v.Kind {
		case NumberKind:
			return number(v.Canonical())
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

// separateSections inserts an empty line before every top-level key except
// the first one.
func separateSections(text string) string {
	lines := strings.SplitAfter(text, "\n")
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 && isTopLevelKey(line) {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func isTopLevelKey(line string) bool {
	if line == "" || line == "\n" {
		return false
	}
	switch line[0] {
	case ' ', '\t', '-', '#':
		return false
	}
	return true
}

// MarshalJSON renders the mapping as a JSON object keeping key order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalNode(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders the sequence as a JSON array.
func (s *Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range s.Items {
		if i > 0 {
			buf.WriteByte(',')
		}
		value, err := marshalNode(item)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON renders the scalar as a JSON value. Numbers that are not
// valid JSON numbers are emitted as strings.
func (s *Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case NumberKind:
		text := s.Canonical()
		if json.Valid([]byte(text)) {
			return []byte(text), nil
		}
		return json.Marshal(text)
	case BoolKind:
		return json.Marshal(s.Bool)
	case NullKind:
		return []byte("null"), nil
	default:
		return json.Marshal(s.Text)
	}
}

func marshalNode(n Node) ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n)
}

// ToJSON renders n as indented JSON.
func ToJSON(n Node) ([]byte, error) {
	data, err := marshalNode(n)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
