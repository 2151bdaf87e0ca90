// Package analyze extracts stages, jobs, templates and resources from an
// expanded pipeline and computes its critical path.
package analyze

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

// Kind is the kind of a dependency graph node.
type Kind string

const (
	KindStage Kind = "stage"
	KindJob   Kind = "job"
)

// Stage is a stage of the pipeline.
type Stage struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
	DependsOn   []string `json:"dependsOn"`
	Condition   string   `json:"condition,omitempty"`
	Jobs        []string `json:"jobs"`
}

// Job is a job or deployment job. Stage is empty for root level jobs.
type Job struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Deployment  bool     `json:"deployment,omitempty"`
	DependsOn   []string `json:"dependsOn"`
	Condition   string   `json:"condition,omitempty"`
	Steps       int      `json:"steps"`
}

// TemplateUsage is one "template:" reference and the breadcrumb of keys
// and indices leading to it.
type TemplateUsage struct {
	Path  string   `json:"path"`
	Usage []string `json:"usage"`
}

// Location renders the usage breadcrumb as a dotted path.
func (u TemplateUsage) Location() string {
	var s string
	for _, part := range u.Usage {
		if len(part) > 0 && part[0] == '[' {
			s += part
			continue
		}
		if s != "" {
			s += "."
		}
		s += part
	}
	return s
}

// Resource is a flattened resources entry.
type Resource struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Source     string         `json:"source,omitempty"`
	Ref        string         `json:"ref,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is a dependency: From depends on To.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Kind  Kind   `json:"kind"`
	Stage string `json:"stage,omitempty"`
}

// Analysis is the result of Analyze. When Error is set the collections are
// empty.
type Analysis struct {
	Stages          []Stage         `json:"stages"`
	Jobs            []Job           `json:"jobs"`
	Templates       []TemplateUsage `json:"templates"`
	Resources       []Resource      `json:"resources"`
	DependencyGraph []Edge          `json:"dependencyGraph"`
	CriticalPath    []string        `json:"criticalPath"`
	Error           string          `json:"error,omitempty"`
}

func empty() *Analysis {
	return &Analysis{
		Stages:          []Stage{},
		Jobs:            []Job{},
		Templates:       []TemplateUsage{},
		Resources:       []Resource{},
		DependencyGraph: []Edge{},
		CriticalPath:    []string{},
	}
}

// AnalyzeText parses text and analyzes it. It never fails; problems are
// reported in Analysis.Error.
func AnalyzeText(text string) *Analysis {
	doc, err := yamlnode.Parse(text, "", false)
	if err != nil {
		a := empty()
		a.Error = err.Error()
		return a
	}
	return Analyze(doc)
}

// Analyze analyzes an expanded document. It never fails; problems are
// reported in Analysis.Error.
func Analyze(doc *yamlnode.Document) (a *Analysis) {
	defer func() {
		if r := recover(); r != nil {
			a = empty()
			a.Error = fmt.Sprintf("analysis failed: %v", r)
		}
	}()

	a = empty()
	if doc == nil || yamlnode.IsNull(doc.Root) {
		return a
	}
	root, ok := doc.Root.(*yamlnode.Mapping)
	if !ok {
		a.Error = fmt.Sprintf("pipeline must be a mapping, got %s", yamlnode.KindOf(doc.Root))
		return a
	}

	a.extractStages(root)
	if seq, ok := root.Get("jobs").(*yamlnode.Sequence); ok {
		a.extractJobs(seq, "")
	}
	a.Templates = collectTemplates(root, nil, a.Templates)
	resources, err := extractResources(root.Get("resources"))
	if err != nil {
		a = empty()
		a.Error = err.Error()
		return a
	}
	a.Resources = resources
	a.CriticalPath = CriticalPath(a)
	return a
}

func (a *Analysis) extractStages(root *yamlnode.Mapping) {
	seq, ok := root.Get("stages").(*yamlnode.Sequence)
	if !ok {
		return
	}
	for _, item := range seq.Items {
		m, ok := item.(*yamlnode.Mapping)
		if !ok {
			continue
		}
		name, ok := yamlnode.StringValue(m.Get("stage"))
		if !ok {
			continue
		}
		st := Stage{
			Name:        name,
			DisplayName: text(m.Get("displayName")),
			DependsOn:   dependsOn(m.Get("dependsOn")),
			Condition:   text(m.Get("condition")),
			Jobs:        []string{},
		}
		for _, dep := range st.DependsOn {
			a.DependencyGraph = append(a.DependencyGraph, Edge{From: name, To: dep, Kind: KindStage})
		}
		if jobs, ok := m.Get("jobs").(*yamlnode.Sequence); ok {
			st.Jobs = a.extractJobs(jobs, name)
		}
		a.Stages = append(a.Stages, st)
	}
}

func (a *Analysis) extractJobs(seq *yamlnode.Sequence, stage string) []string {
	names := []string{}
	for _, item := range seq.Items {
		m, ok := item.(*yamlnode.Mapping)
		if !ok {
			continue
		}
		job := Job{Stage: stage}
		if name, ok := yamlnode.StringValue(m.Get("job")); ok {
			job.Name = name
		} else if name, ok := yamlnode.StringValue(m.Get("deployment")); ok {
			job.Name = name
			job.Deployment = true
		} else {
			continue
		}
		job.DisplayName = text(m.Get("displayName"))
		job.DependsOn = dependsOn(m.Get("dependsOn"))
		job.Condition = text(m.Get("condition"))
		if steps, ok := m.Get("steps").(*yamlnode.Sequence); ok {
			job.Steps = len(steps.Items)
		}
		for _, dep := range job.DependsOn {
			a.DependencyGraph = append(a.DependencyGraph, Edge{From: job.Name, To: dep, Kind: KindJob, Stage: stage})
		}
		a.Jobs = append(a.Jobs, job)
		names = append(names, job.Name)
	}
	return names
}

// dependsOn normalizes a dependsOn value to a slice.
func dependsOn(n yamlnode.Node) []string {
	deps := []string{}
	switch v := n.(type) {
	case *yamlnode.Scalar:
		if s, ok := yamlnode.StringValue(v); ok && s != "" {
			deps = append(deps, s)
		}
	case *yamlnode.Sequence:
		for _, item := range v.Items {
			if s, ok := yamlnode.StringValue(item); ok && s != "" {
				deps = append(deps, s)
			}
		}
	}
	return deps
}

func text(n yamlnode.Node) string {
	s, _ := yamlnode.StringValue(n)
	return s
}

// collectTemplates records every template reference in the tree.
func collectTemplates(n yamlnode.Node, path []string, out []TemplateUsage) []TemplateUsage {
	switch v := n.(type) {
	case *yamlnode.Mapping:
		if ref, ok := yamlnode.StringValue(v.Get("template")); ok {
			usage := make([]string, len(path))
			copy(usage, path)
			out = append(out, TemplateUsage{Path: ref, Usage: usage})
		}
		for _, e := range v.Entries {
			out = collectTemplates(e.Value, append(path, e.Key), out)
		}
	case *yamlnode.Sequence:
		for i, item := range v.Items {
			out = collectTemplates(item, append(path, "["+strconv.Itoa(i)+"]"), out)
		}
	}
	return out
}

// resource kinds and the key naming each entry
var resourceKinds = []struct {
	key     string
	typ     string
	nameKey string
}{
	{key: "repositories", typ: "repository", nameKey: "repository"},
	{key: "pipelines", typ: "pipeline", nameKey: "pipeline"},
	{key: "containers", typ: "container", nameKey: "container"},
	{key: "builds", typ: "build", nameKey: "build"},
	{key: "packages", typ: "package", nameKey: "package"},
	{key: "webhooks", typ: "webhook", nameKey: "webhook"},
}

type resourceEntry struct {
	Name   string         `mapstructure:"-"`
	Source string         `mapstructure:"source"`
	Ref    string         `mapstructure:"ref"`
	Rest   map[string]any `mapstructure:",remain"`
}

func extractResources(n yamlnode.Node) ([]Resource, error) {
	out := []Resource{}
	m, ok := n.(*yamlnode.Mapping)
	if !ok {
		return out, nil
	}
	for _, kind := range resourceKinds {
		seq, ok := m.Get(kind.key).(*yamlnode.Sequence)
		if !ok {
			continue
		}
		for _, item := range seq.Items {
			im, ok := item.(*yamlnode.Mapping)
			if !ok {
				continue
			}
			var entry resourceEntry
			if err := mapstructure.WeakDecode(yamlnode.ToValue(im), &entry); err != nil {
				return nil, fmt.Errorf("invalid %s resource at line %d: %w", kind.typ, im.Pos.Line, err)
			}
			name, _ := entry.Rest[kind.nameKey].(string)
			delete(entry.Rest, kind.nameKey)
			if len(entry.Rest) == 0 {
				entry.Rest = nil
			}
			out = append(out, Resource{
				Type:       kind.typ,
				Name:       name,
				Source:     entry.Source,
				Ref:        entry.Ref,
				Properties: entry.Rest,
			})
		}
	}
	return out, nil
}

// propertyKeys returns the sorted keys of a resource's properties.
func propertyKeys(r Resource) []string {
	keys := make([]string, 0, len(r.Properties))
	for k := range r.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
