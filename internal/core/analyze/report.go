package analyze

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const none = "-"

var stageHeader = table.Row{
	"Stage",
	"Depends On",
	"Dependents",
	"Jobs",
	"Category",
}

var jobHeader = table.Row{
	"Job",
	"Stage",
	"Depends On",
	"Dependents",
	"Steps",
}

var templateHeader = table.Row{
	"Template",
	"Uses",
	"First Usage",
}

var resourceHeader = table.Row{
	"Type",
	"Name",
	"Details",
}

// RenderReport renders the analysis as plain text tables.
func RenderReport(a *Analysis) string {
	var buf bytes.Buffer
	if a == nil {
		return ""
	}
	if a.Error != "" {
		_, _ = fmt.Fprintf(&buf, "Analysis error: %s\n\n", a.Error)
	}
	_, _ = buf.WriteString("Critical path ->\n")
	if len(a.CriticalPath) == 0 {
		_, _ = buf.WriteString("(none)\n")
	} else {
		_, _ = fmt.Fprintf(&buf, "%s (%d)\n", strings.Join(a.CriticalPath, " -> "), len(a.CriticalPath))
	}

	if len(a.Stages) > 0 {
		_, _ = buf.WriteString("\nStages ->\n")
		_, _ = buf.WriteString(renderStages(a))
		_, _ = buf.WriteString("\n")
	}
	if len(a.Jobs) > 0 {
		_, _ = buf.WriteString("\nJobs ->\n")
		_, _ = buf.WriteString(renderJobs(a))
		_, _ = buf.WriteString("\n")
	}
	if len(a.Templates) > 0 {
		_, _ = buf.WriteString("\nTemplates ->\n")
		_, _ = buf.WriteString(renderTemplates(a.Templates))
		_, _ = buf.WriteString("\n")
	}
	if len(a.Resources) > 0 {
		_, _ = buf.WriteString("\nResources ->\n")
		_, _ = buf.WriteString(renderResources(a.Resources))
		_, _ = buf.WriteString("\n")
	}
	return buf.String()
}

// dependents returns who depends on each node of the given kind.
func dependents(a *Analysis, kind Kind) map[string][]string {
	out := make(map[string][]string)
	for _, e := range a.DependencyGraph {
		if e.Kind != kind {
			continue
		}
		key := e.Stage + "\x00" + e.To
		out[key] = append(out[key], e.From)
	}
	return out
}

func list(items []string) string {
	if len(items) == 0 {
		return none
	}
	return strings.Join(items, ", ")
}

func renderStages(a *Analysis) string {
	deps := dependents(a, KindStage)
	stageTable := table.NewWriter()
	stageTable.AppendHeader(stageHeader)
	for _, s := range a.Stages {
		stageTable.AppendRow(table.Row{
			s.Name,
			list(s.DependsOn),
			list(deps["\x00"+s.Name]),
			len(s.Jobs),
			Category(s.Name),
		})
	}
	return stageTable.Render()
}

func renderJobs(a *Analysis) string {
	deps := dependents(a, KindJob)
	jobTable := table.NewWriter()
	jobTable.AppendHeader(jobHeader)
	for _, j := range a.Jobs {
		stage := j.Stage
		if stage == "" {
			stage = none
		}
		jobTable.AppendRow(table.Row{
			j.Name,
			stage,
			list(j.DependsOn),
			list(deps[j.Stage+"\x00"+j.Name]),
			j.Steps,
		})
	}
	return jobTable.Render()
}

func renderTemplates(usages []TemplateUsage) string {
	var (
		order []string
		count = make(map[string]int)
		first = make(map[string]string)
	)
	for _, u := range usages {
		if count[u.Path] == 0 {
			order = append(order, u.Path)
			first[u.Path] = u.Location()
		}
		count[u.Path]++
	}
	templateTable := table.NewWriter()
	templateTable.AppendHeader(templateHeader)
	for _, path := range order {
		templateTable.AppendRow(table.Row{path, count[path], first[path]})
	}
	return templateTable.Render()
}

func renderResources(resources []Resource) string {
	resourceTable := table.NewWriter()
	resourceTable.AppendHeader(resourceHeader)
	for _, r := range resources {
		var details []string
		if r.Source != "" {
			details = append(details, "source="+r.Source)
		}
		if r.Ref != "" {
			details = append(details, "ref="+r.Ref)
		}
		for _, k := range propertyKeys(r) {
			details = append(details, fmt.Sprintf("%s=%v", k, r.Properties[k]))
		}
		resourceTable.AppendRow(table.Row{r.Type, r.Name, list(details)})
	}
	return resourceTable.Render()
}
