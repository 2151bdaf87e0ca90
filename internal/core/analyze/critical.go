package analyze

// graph is the dependency graph restricted to one kind of node.
type graph struct {
	nodes []string
	deps  map[string][]string
}

// newGraph builds the stage graph when the pipeline has stages and the job
// graph otherwise. Edges to unknown nodes are ignored.
func newGraph(a *Analysis) *graph {
	kind := KindJob
	g := &graph{deps: make(map[string][]string)}
	known := make(map[string]bool)
	if len(a.Stages) > 0 {
		kind = KindStage
		for _, s := range a.Stages {
			g.add(s.Name, known)
		}
	} else {
		for _, j := range a.Jobs {
			g.add(j.Name, known)
		}
	}
	for _, e := range a.DependencyGraph {
		if e.Kind != kind || !known[e.From] || !known[e.To] {
			continue
		}
		g.deps[e.From] = append(g.deps[e.From], e.To)
	}
	return g
}

func (g *graph) add(name string, known map[string]bool) {
	if known[name] {
		return
	}
	known[name] = true
	g.nodes = append(g.nodes, name)
}

// order returns the nodes in dependency-first order using a depth-first
// post-order traversal. Back edges of a cycle are not followed.
func (g *graph) order() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	var visit func(n string)
	visit = func(n string) {
		state[n] = visiting
		for _, d := range g.deps[n] {
			if state[d] == unvisited {
				visit(d)
			}
		}
		state[n] = done
		order = append(order, n)
	}
	for _, n := range g.nodes {
		if state[n] == unvisited {
			visit(n)
		}
	}
	return order
}

// CriticalPath returns the longest dependency chain, first node first.
// Ties between chain ends pick the lexicographically smallest name; ties
// between predecessors pick the first declared dependency.
func CriticalPath(a *Analysis) []string {
	g := newGraph(a)
	if len(g.nodes) == 0 {
		return []string{}
	}

	length := make(map[string]int, len(g.nodes))
	pred := make(map[string]string, len(g.nodes))
	for _, n := range g.order() {
		length[n] = 1
		for _, d := range g.deps[n] {
			if l, ok := length[d]; ok && l+1 > length[n] {
				length[n] = l + 1
				pred[n] = d
			}
		}
	}

	var end string
	for _, n := range g.nodes {
		switch {
		case end == "":
			end = n
		case length[n] > length[end]:
			end = n
		case length[n] == length[end] && n < end:
			end = n
		}
	}

	path := []string{}
	seen := make(map[string]bool)
	for n := end; n != "" && !seen[n]; n = pred[n] {
		seen[n] = true
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// criticalSet returns the critical nodes and edges of a.
func criticalSet(a *Analysis) (map[string]bool, map[[2]string]bool) {
	nodes := make(map[string]bool, len(a.CriticalPath))
	edges := make(map[[2]string]bool, len(a.CriticalPath))
	for i, n := range a.CriticalPath {
		nodes[n] = true
		if i > 0 {
			edges[[2]string{n, a.CriticalPath[i-1]}] = true
		}
	}
	return nodes, edges
}
