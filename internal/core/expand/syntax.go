package expand

import (
	"fmt"

	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/expr"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

// checkSyntax verifies that every expression in the document is balanced
// and parses before anything is evaluated.
func checkSyntax(n yamlnode.Node, file string, stack diag.Stack) error {
	fail := func(pos yamlnode.Pos, err error) error {
		return diag.Wrap(diag.ExpressionSyntax, stack, err, "%s:%d: %v", file, pos.Line, err)
	}
	switch v := n.(type) {
	case *yamlnode.Mapping:
		for _, e := range v.Entries {
			if err := checkKey(e.Key); err != nil {
				return fail(e.KeyPos, err)
			}
			if err := checkSyntax(e.Value, file, stack); err != nil {
				return err
			}
		}
	case *yamlnode.Sequence:
		for _, item := range v.Items {
			if err := checkSyntax(item, file, stack); err != nil {
				return err
			}
		}
	case *yamlnode.Scalar:
		if v.Kind == yamlnode.StringKind {
			if err := expr.CheckSyntax(v.Text); err != nil {
				return fail(v.Pos, err)
			}
		}
	}
	return nil
}

func checkKey(key string) error {
	d, err := parseDirective(key)
	if err != nil {
		return err
	}
	switch d.kind {
	case dirIf, dirElseIf, dirEach:
		if _, err := expr.Parse(d.expr); err != nil {
			return fmt.Errorf("%s: %w", d.kind, err)
		}
		return nil
	case dirElse, dirInsert:
		return nil
	default:
		return expr.CheckSyntax(key)
	}
}
