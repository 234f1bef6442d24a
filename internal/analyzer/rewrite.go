package analyzer

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/curran/rollup/pkg/edit"
	"github.com/curran/rollup/pkg/parser"
)

// ReplaceIdentifiers returns an edited copy of the statement's source text
// with identifiers renamed per names and export assignments injected per
// exportTargets (local name to target expression, e.g. "exports.foo"). The
// statement itself is not mutated.
//
// A replacement is dropped inside any nested scope that re-declares the
// name, so an inner binding is never rewritten out from under its own
// declaration. Conversely, when a nested scope declares the root namespace
// of a replacement (`bundle` for a rewrite to `bundle.foo`), references to
// that root are deshadowed to a `$$`-suffixed alias so the inner declaration
// cannot capture the rewritten reference.
func (s *Statement) ReplaceIdentifiers(names map[string]string, exportTargets map[string]string) *edit.Buffer {
	buf := edit.NewBuffer(s.source, s.Start(), s.End())
	buf.AddSourcemapLocation(s.Start())

	// Deshadow candidates: the root name of each distinct replacement, in
	// deterministic order.
	deshadowList := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range sortedKeys(names) {
		root := strings.SplitN(names[name], ".", 2)[0]
		if !seen[root] {
			seen[root] = true
			deshadowList = append(deshadowList, root)
		}
	}

	active := names
	stack := []map[string]string{active}
	nesting := 0

	parser.WalkScoped(s.node, parser.Cursor{
		Enter: func(node, parent *sitter.Node, nodeType string) bool {
			if nesting == 0 && (nodeType == "variable_declaration" || nodeType == "lexical_declaration") {
				s.rewriteExportedDeclaration(buf, node, exportTargets, active)
			}

			if child, ok := s.scopes[keyOf(node)]; ok {
				nesting++
				replaced := make(map[string]string)
				hasReplacements := false
				for name, replacement := range active {
					if !child.declares(name) {
						replaced[name] = replacement
						hasReplacements = true
					}
				}
				for _, root := range deshadowList {
					if child.declares(root) {
						replaced[root] = root + "$$"
						hasReplacements = true
					}
				}
				active = replaced
				stack = append(stack, replaced)
				// nothing left to rewrite below here
				return hasReplacements
			}

			if nodeType == "identifier" || nodeType == "shorthand_property_identifier" {
				name := s.text(node)
				replacement, ok := active[name]
				if !ok || replacement == name {
					return true
				}
				if nodeType == "shorthand_property_identifier" {
					// `{foo}` must keep its key when the value is renamed
					replacement = name + ": " + replacement
				}
				// overwrite failures mean the range was already rewritten by
				// the export injection above; the rename is subsumed
				_ = buf.Overwrite(node.StartByte(), node.EndByte(), replacement)
			}
			return true
		},
		Leave: func(node, parent *sitter.Node, nodeType string) {
			if _, ok := s.scopes[keyOf(node)]; ok {
				stack = stack[:len(stack)-1]
				active = stack[len(stack)-1]
				nesting--
			}
		},
	})

	return buf
}

// rewriteExportedDeclaration turns a top-level declaration of exported names
// into export-target assignments. A declaration with a single exported
// declarator is rewritten in place (`var answer = 42` becomes
// `exports.answer = 42`, the declaration keyword dropped so the result is a
// plain assignment). Any other shape gets `target = name;` assignments
// injected after the declaration, appended at the buffer end when the
// insertion offset is out of range.
func (s *Statement) rewriteExportedDeclaration(buf *edit.Buffer, node *sitter.Node, exportTargets map[string]string, active map[string]string) {
	if len(exportTargets) == 0 {
		return
	}

	var declarators []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == "variable_declarator" {
			declarators = append(declarators, child)
		}
	}

	if len(declarators) == 1 {
		nameNode := declarators[0].ChildByFieldName("name")
		if nameNode != nil && nameNode.Type() == "identifier" {
			name := s.text(nameNode)
			if target, ok := exportTargets[name]; ok {
				if node.StartByte() < nameNode.StartByte() {
					_ = buf.Remove(node.StartByte(), nameNode.StartByte())
				}
				_ = buf.Overwrite(nameNode.StartByte(), nameNode.EndByte(), target)
				return
			}
		}
	}

	var assignments []string
	for _, declarator := range declarators {
		target := declarator.ChildByFieldName("name")
		if target == nil {
			continue
		}
		for _, id := range patternIdentifiers(target) {
			name := s.text(id)
			exportTarget, ok := exportTargets[name]
			if !ok {
				continue
			}
			value := name
			if replacement, renamed := active[name]; renamed {
				value = replacement
			}
			assignments = append(assignments, fmt.Sprintf("%s = %s;", exportTarget, value))
		}
	}
	if len(assignments) == 0 {
		return
	}

	text := "\n" + strings.Join(assignments, "\n")
	if err := buf.Insert(node.EndByte(), text); err != nil {
		buf.Append(text)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
