package expand

import (
	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

// CheckoutTaskID is the task that implements the checkout shorthand.
const CheckoutTaskID = "6d15af64-176c-496d-b583-fd2ae21d4df4@1"

type shorthand struct {
	task   string
	input  string
	preset []*yamlnode.Entry
}

var shorthands = map[string]shorthand{
	"checkout": {task: CheckoutTaskID, input: "repository"},
	"script":   {task: "CmdLine@2", input: "script"},
	"bash": {task: "Bash@3", input: "script", preset: []*yamlnode.Entry{
		{Key: "targetType", Value: yamlnode.NewString("inline")},
	}},
	"pwsh": {task: "PowerShell@2", input: "script", preset: []*yamlnode.Entry{
		{Key: "targetType", Value: yamlnode.NewString("inline")},
		{Key: "pwsh", Value: yamlnode.NewBool(true)},
	}},
	"powershell": {task: "PowerShell@2", input: "script", preset: []*yamlnode.Entry{
		{Key: "targetType", Value: yamlnode.NewString("inline")},
	}},
}

// order in which shorthand keys are recognized when a step has several
var shorthandOrder = []string{"checkout", "script", "bash", "pwsh", "powershell"}

// stepKeys remain on the step; everything else moves into inputs.
var stepKeys = map[string]bool{
	"displayName":             true,
	"name":                    true,
	"condition":               true,
	"continueOnError":         true,
	"enabled":                 true,
	"env":                     true,
	"timeoutInMinutes":        true,
	"retryCountOnTaskFailure": true,
	"target":                  true,
	"failOnStderr":            true,
}

// skipped subtrees hold data, not pipeline structure
var normalizeSkip = map[string]bool{
	"parameters": true,
	"variables":  true,
	"resources":  true,
}

// normalize rewrites shorthand steps and pools in place.
func (x *expander) normalize(n yamlnode.Node, stack diag.Stack) error {
	switch v := n.(type) {
	case *yamlnode.Mapping:
		for _, e := range v.Entries {
			if normalizeSkip[e.Key] {
				continue
			}
			switch e.Key {
			case "pool":
				if s, ok := e.Value.(*yamlnode.Scalar); ok && s.Kind == yamlnode.StringKind {
					pool := yamlnode.NewMapping()
					pool.Pos = s.Pos
					pool.Append("name", s)
					e.Value = pool
				}
			case "steps":
				if seq, ok := e.Value.(*yamlnode.Sequence); ok {
					for i, item := range seq.Items {
						m, ok := item.(*yamlnode.Mapping)
						if !ok {
							continue
						}
						step, err := x.normalizeStep(m, stack)
						if err != nil {
							return err
						}
						seq.Items[i] = step
					}
				}
			}
			if err := x.normalize(e.Value, stack); err != nil {
				return err
			}
		}
	case *yamlnode.Sequence:
		for _, item := range v.Items {
			if err := x.normalize(item, stack); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *expander) normalizeStep(m *yamlnode.Mapping, stack diag.Stack) (*yamlnode.Mapping, error) {
	if m.Has("task") || m.Has("template") {
		return m, nil
	}
	var (
		name string
		sh   shorthand
	)
	for _, k := range shorthandOrder {
		if m.Has(k) {
			name, sh = k, shorthands[k]
			break
		}
	}
	if name == "" {
		return m, nil
	}

	value := m.Get(name)
	if name == "checkout" {
		repo, _ := yamlnode.StringValue(value)
		switch repo {
		case "self", "none":
		default:
			if _, ok := x.repos[repo]; !ok {
				return nil, diag.New(diag.RepositoryNotDefined, stack,
					"%s:%d: checkout repository %q is not defined in resources.repositories", x.rootName, m.Pos.Line, repo)
			}
		}
	}

	out := &yamlnode.Mapping{Pos: m.Pos}
	out.Append("task", yamlnode.NewString(sh.task))
	for _, e := range m.Entries {
		if stepKeys[e.Key] {
			out.Entries = append(out.Entries, e)
		}
	}
	if repo, _ := yamlnode.StringValue(value); name == "checkout" && repo == "none" && !m.Has("condition") {
		out.Append("condition", yamlnode.NewBool(false))
	}

	inputs := yamlnode.NewMapping()
	inputs.Append(sh.input, value)
	for _, p := range sh.preset {
		inputs.Append(p.Key, yamlnode.Clone(p.Value))
	}
	for _, e := range m.Entries {
		switch {
		case e.Key == name || stepKeys[e.Key]:
		case e.Key == "inputs":
			if im, ok := e.Value.(*yamlnode.Mapping); ok {
				for _, ie := range im.Entries {
					inputs.Set(ie.Key, ie.Value)
				}
			}
		default:
			inputs.Set(e.Key, e.Value)
		}
	}
	out.Append("inputs", inputs)
	return out, nil
}
