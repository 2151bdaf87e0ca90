package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/expr"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

// paramDecl is one entry of a template's parameters block.
type paramDecl struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	DisplayName string `mapstructure:"displayName"`
	Values      []any  `mapstructure:"values"`
	Default     any    `mapstructure:"default"`

	defaultNode yamlnode.Node
	hasDefault  bool
}

type declarations []*paramDecl

// parameter types and the collection key their values expand under
var paramTypes = map[string]string{
	"":               "",
	"string":         "",
	"number":         "",
	"boolean":        "",
	"object":         "",
	"filepath":       "",
	"step":           "steps",
	"steplist":       "steps",
	"job":            "jobs",
	"joblist":        "jobs",
	"deployment":     "jobs",
	"deploymentlist": "jobs",
	"stage":          "stages",
	"stagelist":      "stages",
	"container":      "",
	"containerlist":  "",
}

func parseDeclarations(n yamlnode.Node, template string, stack diag.Stack) (declarations, error) {
	switch v := n.(type) {
	case *yamlnode.Sequence:
		decls := make(declarations, 0, len(v.Items))
		for _, item := range v.Items {
			m, ok := item.(*yamlnode.Mapping)
			if !ok {
				return nil, diag.New(diag.InvalidParameter, stack,
					"template %s: parameter declaration must be a mapping, got %s", template, yamlnode.KindOf(item))
			}
			var d paramDecl
			if err := decodeStrict(yamlnode.ToValue(m), &d); err != nil {
				return nil, diag.Wrap(diag.InvalidParameter, stack, err,
					"template %s: invalid parameter declaration at line %d: %v", template, m.Pos.Line, err)
			}
			if d.Name == "" {
				return nil, diag.New(diag.InvalidParameter, stack,
					"template %s: parameter declaration at line %d has no name", template, m.Pos.Line)
			}
			if _, ok := paramTypes[strings.ToLower(d.Type)]; !ok {
				return nil, diag.New(diag.InvalidParameter, stack,
					"template %s: parameter '%s' has unsupported type '%s'", template, d.Name, d.Type)
			}
			if e := m.Entry("default"); e != nil {
				d.defaultNode = e.Value
				d.hasDefault = true
			}
			decls = append(decls, &d)
		}
		return decls, nil
	case *yamlnode.Mapping:
		decls := make(declarations, 0, v.Len())
		for _, e := range v.Entries {
			decls = append(decls, &paramDecl{Name: e.Key, defaultNode: e.Value, hasDefault: true})
		}
		return decls, nil
	default:
		if yamlnode.IsNull(n) {
			return nil, nil
		}
		return nil, diag.New(diag.InvalidParameter, stack,
			"template %s: parameters must be a sequence or a mapping, got %s", template, yamlnode.KindOf(n))
	}
}

func decodeStrict(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func (ds declarations) find(name string) *paramDecl {
	for _, d := range ds {
		if d.Name == name {
			return d
		}
	}
	for _, d := range ds {
		if strings.EqualFold(d.Name, name) {
			return d
		}
	}
	return nil
}

// contexts returns the collection key used to expand values of list-typed
// parameters so that template items inside them are recognized.
func (ds declarations) contexts() map[string]string {
	var out map[string]string
	for _, d := range ds {
		if key := paramTypes[strings.ToLower(d.Type)]; key != "" {
			if out == nil {
				out = make(map[string]string)
			}
			out[d.Name] = key
		}
	}
	return out
}

// bind validates supplied values against the declarations and returns the
// parameters object for the template scope.
func (ds declarations) bind(supplied *yamlnode.Mapping, template string, stack diag.Stack) (*expr.Object, error) {
	values := make(map[*paramDecl]yamlnode.Node)
	var unknown []string
	if supplied != nil {
		for _, e := range supplied.Entries {
			d := ds.find(e.Key)
			if d == nil {
				unknown = append(unknown, fmt.Sprintf("parameter '%s' is not declared by template '%s'", e.Key, template))
				continue
			}
			values[d] = e.Value
		}
	}
	if len(unknown) > 0 {
		err := diag.New(diag.UnknownParameter, stack, "unknown parameter for template '%s'", template)
		err.Issues = append(unknown, declaredHint(ds))
		return nil, err
	}

	var missing, invalid []string
	bound := expr.NewObject()
	for _, d := range ds {
		v, ok := values[d]
		if !ok {
			if !d.hasDefault {
				missing = append(missing, fmt.Sprintf("parameter '%s' has no value and no default", d.Name))
				continue
			}
			v = yamlnode.Clone(d.defaultNode)
		}
		converted, issue := d.check(v)
		if issue != "" {
			invalid = append(invalid, issue)
			continue
		}
		bound.Set(d.Name, toValue(converted))
	}
	if len(missing) > 0 {
		err := diag.New(diag.MissingRequiredParameter, stack, "missing required parameter for template '%s'", template)
		err.Issues = missing
		return nil, err
	}
	if len(invalid) > 0 {
		err := diag.New(diag.InvalidParameter, stack, "invalid parameter value for template '%s'", template)
		err.Issues = invalid
		return nil, err
	}
	return bound, nil
}

func declaredHint(ds declarations) string {
	if len(ds) == 0 {
		return "the template declares no parameters"
	}
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return "declared parameters: " + strings.Join(names, ", ")
}

// check validates v against the declared type and allowed values and
// returns the value converted to that type.
func (d *paramDecl) check(v yamlnode.Node) (yamlnode.Node, string) {
	typ := strings.ToLower(d.Type)
	converted, ok := convertParam(typ, v)
	if !ok {
		return nil, fmt.Sprintf("parameter '%s' expects a %s, got %s", d.Name, d.Type, describe(v))
	}
	if len(d.Values) > 0 {
		val := toValue(converted)
		allowed := false
		for _, a := range d.Values {
			if expr.Equal(val, expr.Normalize(a)) {
				allowed = true
				break
			}
		}
		if !allowed {
			opts := make([]string, len(d.Values))
			for i, a := range d.Values {
				opts[i] = expr.ToString(expr.Normalize(a))
			}
			return nil, fmt.Sprintf("parameter '%s' value %s is not one of the allowed values: %s",
				d.Name, describe(converted), strings.Join(opts, ", "))
		}
	}
	return converted, ""
}

func convertParam(typ string, v yamlnode.Node) (yamlnode.Node, bool) {
	s, isScalar := v.(*yamlnode.Scalar)
	switch typ {
	case "", "object":
		return v, true
	case "string", "filepath":
		if !isScalar {
			return nil, false
		}
		switch s.Kind {
		case yamlnode.NullKind:
			return yamlnode.NewString(""), true
		case yamlnode.NumberKind:
			return yamlnode.NewString(s.Text), true
		case yamlnode.BoolKind:
			if s.Text != "" {
				return yamlnode.NewString(s.Text), true
			}
			return yamlnode.NewString(strconv.FormatBool(s.Bool)), true
		}
		return v, true
	case "number":
		if !isScalar {
			return nil, false
		}
		switch s.Kind {
		case yamlnode.NumberKind:
			return v, true
		case yamlnode.StringKind:
			n := yamlnode.NewNumber(strings.TrimSpace(s.Text))
			if _, err := n.Float(); err != nil {
				return nil, false
			}
			return n, true
		}
		return nil, false
	case "boolean":
		if !isScalar {
			return nil, false
		}
		switch {
		case s.Kind == yamlnode.BoolKind:
			return v, true
		case s.Kind == yamlnode.StringKind && strings.EqualFold(strings.TrimSpace(s.Text), "true"):
			return yamlnode.NewBool(true), true
		case s.Kind == yamlnode.StringKind && strings.EqualFold(strings.TrimSpace(s.Text), "false"):
			return yamlnode.NewBool(false), true
		}
		return nil, false
	case "step", "job", "deployment", "stage", "container":
		_, ok := v.(*yamlnode.Mapping)
		return v, ok
	default:
		if yamlnode.IsNull(v) {
			return yamlnode.NewSequence(), true
		}
		_, ok := v.(*yamlnode.Sequence)
		return v, ok
	}
}

func describe(v yamlnode.Node) string {
	if s, ok := v.(*yamlnode.Scalar); ok && s.Kind != yamlnode.NullKind {
		return fmt.Sprintf("%s %q", s.Kind, s.String())
	}
	return yamlnode.KindOf(v)
}
