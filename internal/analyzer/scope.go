package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Scope is one node of the lexical scope tree built for a statement. Depth 0
// is the module's top level. A name maps to at most one declaring node per
// scope; re-declaration overwrites.
type Scope struct {
	parent       *Scope
	declarations map[string]*sitter.Node
	names        []string
	isBlockScope bool
	depth        int
}

func newScope(parent *Scope, isBlockScope bool) *Scope {
	s := &Scope{
		parent:       parent,
		declarations: make(map[string]*sitter.Node),
		isBlockScope: isBlockScope,
	}
	if parent != nil {
		s.depth = parent.depth + 1
	}
	return s
}

// addDeclaration registers name in this scope. Block-scoped declarations
// (let, const, catch parameters) stay at the nearest block scope; everything
// else hoists past block scopes to the nearest function or root scope.
func (s *Scope) addDeclaration(name string, node *sitter.Node, blockDeclaration bool) {
	if !blockDeclaration && s.isBlockScope {
		s.parent.addDeclaration(name, node, blockDeclaration)
		return
	}
	if _, ok := s.declarations[name]; !ok {
		s.names = append(s.names, name)
	}
	s.declarations[name] = node
}

// findDefiningScope walks outward from this scope and returns the nearest
// one declaring name, or nil when the name is global or external.
func (s *Scope) findDefiningScope(name string) *Scope {
	for scope := s; scope != nil; scope = scope.parent {
		if _, ok := scope.declarations[name]; ok {
			return scope
		}
	}
	return nil
}

// contains reports whether this scope or an ancestor declares name.
func (s *Scope) contains(name string) bool {
	return s.findDefiningScope(name) != nil
}

// declares reports whether this scope itself declares name, ancestors
// excluded.
func (s *Scope) declares(name string) bool {
	_, ok := s.declarations[name]
	return ok
}

// Depth returns the scope's distance from the module root.
func (s *Scope) Depth() int {
	return s.depth
}
