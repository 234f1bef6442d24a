// Package analyzer implements statement-level scope analysis, selective
// inclusion and identifier rewriting for JavaScript modules. Each top-level
// statement is analysed for the names it defines, the outer names it reads
// and the names it mutates; bundling then expands the minimal ordered
// statement set needed to produce a binding and rewrites identifiers so that
// statements from many modules can share one output scope.
package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/curran/rollup/pkg/parser"
)

// ImportRef describes one imported binding of a module.
type ImportRef struct {
	Source       string // the import specifier, e.g. "./utils.js"
	OriginalName string // exported name in the source module, "default" or "*"
	LocalName    string
}

// IsNamespace reports whether the binding is a namespace import.
func (r ImportRef) IsNamespace() bool {
	return r.OriginalName == "*"
}

// ModuleHost is the statement's view of its owning module.
type ModuleHost interface {
	// ImportSpec returns the import specifier bound to a local name.
	ImportSpec(name string) (ImportRef, bool)
	// Modifications returns the statements known to mutate name, in source
	// order.
	Modifications(name string) []*Statement
	// Define returns the ordered statements needed to establish name at the
	// module's top level.
	Define(name string) ([]*Statement, error)
	// Path identifies the module's source file, for error reporting.
	Path() string
}

// nodeKey identifies a syntax node across traversals. tree-sitter nodes are
// transient cgo values that cannot carry annotations, so per-node state lives
// in side tables keyed by range and kind.
type nodeKey struct {
	start uint32
	end   uint32
	kind  string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), kind: n.Type()}
}

// Statement wraps one top-level syntax node of a module. It owns the node's
// scope tree and the three name sets produced by Analyse.
type Statement struct {
	node   *sitter.Node
	source []byte
	module ModuleHost
	index  int

	scope  *Scope
	scopes map[nodeKey]*Scope

	Defines   map[string]bool
	Modifies  map[string]bool
	DependsOn map[string]bool

	definesOrder   []string
	modifiesOrder  []string
	dependsOnOrder []string

	isIncluded          bool
	isImportDeclaration bool
	isExportDeclaration bool
	analysed            bool
}

// NewStatement wraps a top-level node. index is the statement's position
// within its module.
func NewStatement(node *sitter.Node, source []byte, module ModuleHost, index int) *Statement {
	t := node.Type()
	return &Statement{
		node:                node,
		source:              source,
		module:              module,
		index:               index,
		scope:               newScope(nil, false),
		scopes:              make(map[nodeKey]*Scope),
		Defines:             make(map[string]bool),
		Modifies:            make(map[string]bool),
		DependsOn:           make(map[string]bool),
		isImportDeclaration: t == "import_statement",
		isExportDeclaration: t == "export_statement",
	}
}

// Node returns the statement's syntax node.
func (s *Statement) Node() *sitter.Node { return s.node }

// Module returns the owning module.
func (s *Statement) Module() ModuleHost { return s.module }

// Index returns the statement's position within its module.
func (s *Statement) Index() int { return s.index }

// Start returns the statement's starting byte offset in the module source.
func (s *Statement) Start() uint32 { return s.node.StartByte() }

// End returns the statement's ending byte offset in the module source.
func (s *Statement) End() uint32 { return s.node.EndByte() }

// IsImportDeclaration reports whether the statement is an import.
func (s *Statement) IsImportDeclaration() bool { return s.isImportDeclaration }

// IsExportDeclaration reports whether the statement is an export.
func (s *Statement) IsExportDeclaration() bool { return s.isExportDeclaration }

// IsIncluded reports whether Expand has already claimed the statement.
func (s *Statement) IsIncluded() bool { return s.isIncluded }

// DefinedNames returns the statement's top-level bindings in source order.
func (s *Statement) DefinedNames() []string { return s.definesOrder }

// ModifiedNames returns the mutated names in source order.
func (s *Statement) ModifiedNames() []string { return s.modifiesOrder }

// DependencyNames returns the outer-scope reads in source order.
func (s *Statement) DependencyNames() []string { return s.dependsOnOrder }

func (s *Statement) text(n *sitter.Node) string {
	return string(s.source[n.StartByte():n.EndByte()])
}

// Analyse builds the statement's scope tree, then classifies every read of
// an outer name and every write. It runs once; import declarations carry no
// reads or writes of their own and are skipped entirely.
func (s *Statement) Analyse() error {
	if s.analysed || s.isImportDeclaration {
		s.analysed = true
		return nil
	}
	s.analysed = true

	s.buildScopes()

	// Names declared at the statement's own top level become defines before
	// classification, so that a recursive function referencing its own name
	// does not count as a dependency.
	for _, name := range s.scope.names {
		if !s.Defines[name] {
			s.Defines[name] = true
			s.definesOrder = append(s.definesOrder, name)
		}
	}

	return s.classify()
}

// scope-owning node kinds of the tree-sitter JavaScript grammar. Older
// grammar revisions call a function expression `function`, newer ones
// `function_expression`; both are accepted.
func isFunctionNode(nodeType string) bool {
	switch nodeType {
	case "function", "function_expression", "generator_function",
		"arrow_function", "method_definition":
		return true
	}
	return false
}

func isFunctionDeclaration(nodeType string) bool {
	return nodeType == "function_declaration" || nodeType == "generator_function_declaration"
}

// buildScopes is the first analysis pass: it opens a child scope for every
// function, block and catch handler, and registers every declared name. The
// scope tree must be complete before reads can be resolved, because hoisting
// lets a read reference a binding declared later in the same block.
func (s *Statement) buildScopes() {
	scope := s.scope

	parser.WalkScoped(s.node, parser.Cursor{
		Enter: func(node, parent *sitter.Node, nodeType string) bool {
			var child *Scope

			switch {
			case isFunctionDeclaration(nodeType):
				if name := node.ChildByFieldName("name"); name != nil {
					scope.addDeclaration(s.text(name), node, false)
				}
				child = s.newFunctionScope(scope, node)

			case isFunctionNode(nodeType):
				child = s.newFunctionScope(scope, node)
				if nodeType != "method_definition" {
					// a named function expression is visible inside its own
					// body, but not outside it
					if name := node.ChildByFieldName("name"); name != nil {
						child.addDeclaration(s.text(name), node, false)
					}
				}

			case nodeType == "statement_block":
				child = newScope(scope, true)

			case nodeType == "catch_clause":
				child = newScope(scope, true)
				if param := node.ChildByFieldName("parameter"); param != nil {
					for _, id := range patternIdentifiers(param) {
						child.addDeclaration(s.text(id), id, true)
					}
				}

			case nodeType == "variable_declaration" || nodeType == "lexical_declaration":
				blockDeclaration := nodeType == "lexical_declaration"
				for i := 0; i < int(node.NamedChildCount()); i++ {
					declarator := node.NamedChild(i)
					if declarator.Type() != "variable_declarator" {
						continue
					}
					if target := declarator.ChildByFieldName("name"); target != nil {
						for _, id := range patternIdentifiers(target) {
							scope.addDeclaration(s.text(id), node, blockDeclaration)
						}
					}
				}

			case nodeType == "class_declaration":
				if name := node.ChildByFieldName("name"); name != nil {
					scope.addDeclaration(s.text(name), node, false)
				}
			}

			if child != nil {
				s.scopes[keyOf(node)] = child
				scope = child
			}
			return true
		},
		Leave: func(node, parent *sitter.Node, nodeType string) {
			if _, ok := s.scopes[keyOf(node)]; ok {
				scope = scope.parent
			}
		},
	})
}

// newFunctionScope opens a function scope with the node's parameters bound
// inside it. Arrow functions with a single bare parameter carry it in the
// `parameter` field instead of a formal parameter list.
func (s *Statement) newFunctionScope(parent *Scope, node *sitter.Node) *Scope {
	scope := newScope(parent, false)
	if params := node.ChildByFieldName("parameters"); params != nil {
		for _, id := range patternIdentifiers(params) {
			scope.addDeclaration(s.text(id), id, false)
		}
	}
	if param := node.ChildByFieldName("parameter"); param != nil {
		for _, id := range patternIdentifiers(param) {
			scope.addDeclaration(s.text(id), id, false)
		}
	}
	return scope
}

// classify is the second analysis pass. It re-walks the subtree restoring
// the scope opened at each node during the first pass, and records reads and
// writes against the now-complete scope tree.
func (s *Statement) classify() error {
	scope := s.scope
	var classifyErr error

	parser.WalkScoped(s.node, parser.Cursor{
		Enter: func(node, parent *sitter.Node, nodeType string) bool {
			if child, ok := s.scopes[keyOf(node)]; ok {
				scope = child
			}
			if classifyErr != nil {
				return true
			}
			s.checkForReads(scope, node, nodeType)
			if err := s.checkForWrites(scope, node, nodeType); err != nil {
				classifyErr = err
			}
			return true
		},
		Leave: func(node, parent *sitter.Node, nodeType string) {
			if _, ok := s.scopes[keyOf(node)]; ok {
				scope = scope.parent
			}
		},
	})

	return classifyErr
}

// checkForReads records bare identifier references that resolve to the
// module top level, or to nothing at all, as dependencies of this statement.
// The grammar parses property and key positions (`b` in `a.b` or `{b: 1}`)
// as property_identifier nodes, so they never arrive here.
func (s *Statement) checkForReads(scope *Scope, node *sitter.Node, nodeType string) {
	if nodeType != "identifier" && nodeType != "shorthand_property_identifier" {
		return
	}
	name := s.text(node)
	definingScope := scope.findDefiningScope(name)
	if definingScope != nil && definingScope.depth > 0 {
		return
	}
	if s.Defines[name] || s.DependsOn[name] {
		return
	}
	s.DependsOn[name] = true
	s.dependsOnOrder = append(s.dependsOnOrder, name)
}

// checkForWrites classifies assignment targets, update-expression operands
// and call arguments as possible mutations. Call arguments may be mutated by
// the callee through a reference, so every argument counts as a write; the
// inclusion ordering downstream depends on this over-approximation.
func (s *Statement) checkForWrites(scope *Scope, node *sitter.Node, nodeType string) error {
	switch nodeType {
	case "assignment_expression", "augmented_assignment_expression":
		return s.addWriteTarget(scope, node.ChildByFieldName("left"), true)
	case "update_expression":
		return s.addWriteTarget(scope, node.ChildByFieldName("argument"), true)
	case "call_expression":
		args := node.ChildByFieldName("arguments")
		if args == nil {
			return nil
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			if err := s.addWriteTarget(scope, args.NamedChild(i), false); err != nil {
				return err
			}
		}
	}
	return nil
}

// addWriteTarget unwraps member-access chains around a write target and
// records the root identifier as modified. Direct writes reassign the
// binding itself (depth 0); `x.y = 1` mutates through one property (depth 1)
// and so on. Reassigning an imported binding, or an imported namespace or
// one of its direct properties, is a hard error unless the name is locally
// shadowed.
func (s *Statement) addWriteTarget(scope *Scope, node *sitter.Node, disallowImportReassignment bool) error {
	depth := 0
	for node != nil {
		t := node.Type()
		if t != "member_expression" && t != "subscript_expression" {
			break
		}
		node = node.ChildByFieldName("object")
		depth++
	}
	if node == nil || node.Type() != "identifier" {
		return nil
	}
	name := s.text(node)

	if disallowImportReassignment && s.module != nil {
		if ref, ok := s.module.ImportSpec(name); ok && !scope.contains(name) {
			minDepth := 1
			if ref.IsNamespace() {
				minDepth = 2
			}
			if depth < minDepth {
				point := node.StartPoint()
				return &ReassignmentError{
					Name:   name,
					File:   s.module.Path(),
					Line:   point.Row + 1,
					Column: point.Column,
				}
			}
		}
	}

	if !s.Modifies[name] {
		s.Modifies[name] = true
		s.modifiesOrder = append(s.modifiesOrder, name)
	}
	return nil
}
