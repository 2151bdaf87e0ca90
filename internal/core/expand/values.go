package expand

import (
	"encoding/json"

	"github.com/dagucloud/azpipe/internal/core/expr"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

// toValue converts a document node into an expression value.
func toValue(n yamlnode.Node) any {
	switch v := n.(type) {
	case *yamlnode.Mapping:
		obj := expr.NewObject()
		for _, e := range v.Entries {
			obj.Set(e.Key, toValue(e.Value))
		}
		return obj
	case *yamlnode.Sequence:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = toValue(item)
		}
		return out
	case *yamlnode.Scalar:
		switch v.Kind {
		case yamlnode.NumberKind:
			if isJSONNumber(v.Text) {
				return json.Number(v.Text)
			}
			f, err := v.Float()
			if err != nil {
				return v.Text
			}
			return f
		case yamlnode.BoolKind:
			return v.Bool
		case yamlnode.NullKind:
			return nil
		default:
			return v.Text
		}
	default:
		return nil
	}
}

// isJSONNumber reports whether text is a plain decimal literal that can be
// carried as a json.Number. Hex, octal and underscore forms go through float64.
func isJSONNumber(text string) bool {
	if text == "" || (text[0] != '-' && (text[0] < '0' || text[0] > '9')) {
		return false
	}
	return json.Valid([]byte(text))
}

// fromValue converts an expression value back into a node.
func fromValue(v any) (yamlnode.Node, error) {
	return yamlnode.FromValue(v)
}
