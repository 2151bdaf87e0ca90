package expand

import (
	"fmt"
	"strings"

	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

type directiveKind int

const (
	dirNone directiveKind = iota
	dirIf
	dirElseIf
	dirElse
	dirEach
	dirInsert
)

func (k directiveKind) String() string {
	switch k {
	case dirIf:
		return "if"
	case dirElseIf:
		return "elseif"
	case dirElse:
		return "else"
	case dirEach:
		return "each"
	case dirInsert:
		return "insert"
	default:
		return "expression"
	}
}

// directive is a parsed "${{ ... }}" mapping key.
type directive struct {
	kind directiveKind
	// expr is the condition of if/elseif or the collection of each.
	expr string
	// loopVar is the variable bound by each.
	loopVar string
}

// parseDirective classifies key. Keys that are not wrapped in "${{ }}"
// return dirNone; wrapped keys that are not control directives are plain
// expression keys and also return dirNone.
func parseDirective(key string) (directive, error) {
	if !yamlnode.IsDirectiveKey(key) {
		return directive{}, nil
	}
	k := strings.TrimSpace(key)
	inner := strings.TrimSpace(k[len("${{") : len(k)-len("}}")])
	word, rest, _ := strings.Cut(inner, " ")
	rest = strings.TrimSpace(rest)
	switch word {
	case "if":
		if rest == "" {
			return directive{}, fmt.Errorf("missing condition in %q", key)
		}
		return directive{kind: dirIf, expr: rest}, nil
	case "elseif":
		if rest == "" {
			return directive{}, fmt.Errorf("missing condition in %q", key)
		}
		return directive{kind: dirElseIf, expr: rest}, nil
	case "else":
		if rest != "" {
			return directive{}, fmt.Errorf("unexpected text after else in %q", key)
		}
		return directive{kind: dirElse}, nil
	case "insert":
		if rest != "" {
			return directive{}, fmt.Errorf("unexpected text after insert in %q", key)
		}
		return directive{kind: dirInsert}, nil
	case "each":
		fields := strings.Fields(rest)
		if len(fields) < 3 || fields[1] != "in" {
			return directive{}, fmt.Errorf("expected 'each <name> in <expression>' in %q", key)
		}
		_, collection, _ := strings.Cut(rest, " in ")
		return directive{kind: dirEach, loopVar: fields[0], expr: strings.TrimSpace(collection)}, nil
	default:
		return directive{}, nil
	}
}

// sequenceDirective reports whether a sequence item is a control directive:
// a mapping with a single if, elseif, else or each key.
func sequenceDirective(item yamlnode.Node) (directive, *yamlnode.Entry, bool, error) {
	m, ok := item.(*yamlnode.Mapping)
	if !ok || m.Len() != 1 {
		return directive{}, nil, false, nil
	}
	e := m.Entries[0]
	d, err := parseDirective(e.Key)
	if err != nil {
		return directive{}, e, false, err
	}
	switch d.kind {
	case dirIf, dirElseIf, dirElse, dirEach:
		return d, e, true, nil
	default:
		return directive{}, nil, false, nil
	}
}

// chain tracks an if/elseif/else chain across consecutive siblings.
type chain struct {
	open  bool
	taken bool
}
