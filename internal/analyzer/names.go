package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// BoundNames returns the names bound by a declaration target, a bare
// identifier or a destructuring pattern, in source order.
func BoundNames(node *sitter.Node, source []byte) []string {
	ids := patternIdentifiers(node)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, string(source[id.StartByte():id.EndByte()]))
	}
	return names
}

// patternIdentifiers collects the identifiers bound by a declaration target:
// a bare identifier, or every bound name inside a destructuring pattern.
// Default values and computed keys are expressions, not bindings, and are
// not descended into.
func patternIdentifiers(node *sitter.Node) []*sitter.Node {
	var ids []*sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "identifier", "shorthand_property_identifier_pattern":
			ids = append(ids, n)
		case "pair_pattern":
			visit(n.ChildByFieldName("value"))
		case "assignment_pattern", "object_assignment_pattern":
			visit(n.ChildByFieldName("left"))
		case "object_pattern", "array_pattern", "rest_pattern", "formal_parameters":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				visit(n.NamedChild(i))
			}
		}
	}
	visit(node)
	return ids
}
