package expand

// Scope is an immutable binding frame. Lookups walk from the innermost
// frame to the outermost one.
type Scope struct {
	parent   *Scope
	bindings map[string]any
}

// NewScope creates a root scope.
func NewScope(bindings map[string]any) *Scope {
	return &Scope{bindings: bindings}
}

// Child returns a new scope whose parent is s.
func (s *Scope) Child(bindings map[string]any) *Scope {
	return &Scope{parent: s, bindings: bindings}
}

// Lookup implements expr.Resolver.
func (s *Scope) Lookup(name string) (any, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.bindings[name]; ok {
			return v, true
		}
	}
	return nil, false
}
