package analyze

import (
	"fmt"
	"strings"
)

// categories in match order; the first keyword contained in a name wins
var categories = []string{"configure", "lint", "build", "test", "sign", "package", "release", "scan"}

const defaultCategory = "build"

var categoryStyles = map[string]string{
	"configure": "fill:#eef2ff,stroke:#6366f1,color:#1e1b4b",
	"lint":      "fill:#fefce8,stroke:#ca8a04,color:#422006",
	"build":     "fill:#eff6ff,stroke:#2563eb,color:#172554",
	"test":      "fill:#f0fdf4,stroke:#16a34a,color:#052e16",
	"sign":      "fill:#fdf4ff,stroke:#c026d3,color:#4a044e",
	"package":   "fill:#fff7ed,stroke:#ea580c,color:#431407",
	"release":   "fill:#fef2f2,stroke:#dc2626,color:#450a0a",
	"scan":      "fill:#f8fafc,stroke:#475569,color:#0f172a",
}

const criticalStyle = "stroke:#dc2626,stroke-width:3px"

// Category classifies a stage or job by the keywords in its name.
func Category(name string) string {
	lower := strings.ToLower(name)
	for _, c := range categories {
		if strings.Contains(lower, c) {
			return c
		}
	}
	return defaultCategory
}

// DiagramOptions configures RenderDiagram.
type DiagramOptions struct {
	// Direction is the flowchart direction: LR, RL, TB or BT.
	Direction string
}

// DiagramOption modifies DiagramOptions.
type DiagramOption func(*DiagramOptions)

// WithDirection sets the flowchart direction.
func WithDirection(direction string) DiagramOption {
	return func(o *DiagramOptions) {
		if direction != "" {
			o.Direction = strings.ToUpper(direction)
		}
	}
}

type diagramNode struct {
	id       string
	label    string
	category string
	critical bool
}

// RenderDiagram renders the analysis as a Mermaid flowchart. Nodes and
// edges on the critical path are drawn with a thick red stroke.
func RenderDiagram(a *Analysis, opts ...DiagramOption) string {
	o := DiagramOptions{Direction: "LR"}
	for _, opt := range opts {
		opt(&o)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "flowchart %s\n", o.Direction)
	for _, c := range categories {
		fmt.Fprintf(&sb, "  classDef %s %s\n", c, categoryStyles[c])
	}
	if a == nil {
		return sb.String()
	}

	critNodes, critEdges := criticalSet(a)
	stageView := len(a.Stages) > 0
	idgen := newIDs()

	var nodes []diagramNode
	stageIDs := make(map[string]string)
	jobIDs := make(map[string]string)
	for _, s := range a.Stages {
		id := idgen.next("stage_" + s.Name)
		stageIDs[s.Name] = id
		nodes = append(nodes, diagramNode{
			id: id, label: labelOf(s.Name, s.DisplayName), category: Category(s.Name),
			critical: stageView && critNodes[s.Name],
		})
	}
	jobsOf := make(map[string][]diagramNode)
	for _, j := range a.Jobs {
		id := idgen.next("job_" + j.Stage + "_" + j.Name)
		jobIDs[j.Stage+"\x00"+j.Name] = id
		n := diagramNode{
			id: id, label: labelOf(j.Name, j.DisplayName), category: Category(j.Name),
			critical: !stageView && critNodes[j.Name],
		}
		nodes = append(nodes, n)
		jobsOf[j.Stage] = append(jobsOf[j.Stage], n)
	}

	for _, s := range a.Stages {
		id := stageIDs[s.Name]
		fmt.Fprintf(&sb, "  %s[%s]:::%s\n", id, labelOf(s.Name, s.DisplayName), Category(s.Name))
		// jobs are drawn inside a subgraph next to their stage
		if jobs := jobsOf[s.Name]; len(jobs) > 0 {
			fmt.Fprintf(&sb, "  subgraph %s_jobs [%s]\n", id, labelOf(s.Name+" jobs", ""))
			for _, jn := range jobs {
				fmt.Fprintf(&sb, "    %s[%s]:::%s\n", jn.id, jn.label, jn.category)
			}
			sb.WriteString("  end\n")
		}
	}
	for _, jn := range jobsOf[""] {
		fmt.Fprintf(&sb, "  %s[%s]:::%s\n", jn.id, jn.label, jn.category)
	}

	var criticalLinks []int
	link := 0
	for _, e := range a.DependencyGraph {
		var from, to string
		critical := false
		if e.Kind == KindStage {
			from, to = stageIDs[e.To], stageIDs[e.From]
			critical = stageView && critEdges[[2]string{e.From, e.To}]
		} else {
			from, to = jobIDs[e.Stage+"\x00"+e.To], jobIDs[e.Stage+"\x00"+e.From]
			critical = !stageView && critEdges[[2]string{e.From, e.To}]
		}
		if from == "" || to == "" {
			continue
		}
		arrow := "-->"
		if critical {
			arrow = "==>"
			criticalLinks = append(criticalLinks, link)
		}
		fmt.Fprintf(&sb, "  %s %s %s\n", from, arrow, to)
		link++
	}

	for _, n := range nodes {
		if n.critical {
			fmt.Fprintf(&sb, "  style %s %s\n", n.id, criticalStyle)
		}
	}
	for _, i := range criticalLinks {
		fmt.Fprintf(&sb, "  linkStyle %d %s\n", i, criticalStyle)
	}
	return sb.String()
}

func labelOf(name, displayName string) string {
	label := name
	if displayName != "" {
		label = displayName
	}
	return `"` + strings.ReplaceAll(label, `"`, "#quot;") + `"`
}

// ids hands out unique Mermaid node identifiers.
type ids map[string]int

func newIDs() ids { return make(ids) }

func (m ids) next(raw string) string {
	var sb strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	id := sb.String()
	m[id]++
	if n := m[id]; n > 1 {
		id = fmt.Sprintf("%s_%d", id, n)
	}
	return id
}
