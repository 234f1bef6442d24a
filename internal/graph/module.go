// Package graph builds the module graph for a bundle: it loads and analyses
// source files, resolves import/export bindings between them, and drives
// statement expansion and output generation.
package graph

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/curran/rollup/internal/analyzer"
	"github.com/curran/rollup/pkg/parser"
)

// ExportDeclaration records one exported binding of a module.
type ExportDeclaration struct {
	LocalName     string // empty for an anonymous default export
	Statement     *analyzer.Statement
	IsDeclaration bool // the export carries its own declaration
}

// Module owns all statements of one source file.
type Module struct {
	bundle *Bundle
	path   string
	source []byte
	tree   *sitter.Tree

	statements []*analyzer.Statement

	imports         map[string]analyzer.ImportRef
	importedModules map[string]*Module
	exports         map[string]*ExportDeclaration
	exportOrder     []string
	definitions     map[string]*analyzer.Statement
	modifications   map[string][]*analyzer.Statement

	// defined memoises Define per name. An entry is set before recursing, so
	// a cyclic request short-circuits to an empty result.
	defined map[string]bool

	renames       map[string]string
	namespaceName string
	defaultName   string
}

func newModule(bundle *Bundle, result *parser.ParseResult) (*Module, error) {
	m := &Module{
		bundle:          bundle,
		path:            result.Path,
		source:          result.Source,
		tree:            result.Tree,
		imports:         make(map[string]analyzer.ImportRef),
		importedModules: make(map[string]*Module),
		exports:         make(map[string]*ExportDeclaration),
		definitions:     make(map[string]*analyzer.Statement),
		modifications:   make(map[string][]*analyzer.Statement),
		defined:         make(map[string]bool),
		renames:         make(map[string]string),
	}

	root := result.Tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "comment" {
			continue
		}
		m.statements = append(m.statements, analyzer.NewStatement(node, m.source, m, len(m.statements)))
	}

	if err := m.collectImports(); err != nil {
		return nil, err
	}
	m.collectExports()

	for _, statement := range m.statements {
		if err := statement.Analyse(); err != nil {
			return nil, err
		}
		for _, name := range statement.ModifiedNames() {
			m.modifications[name] = append(m.modifications[name], statement)
		}
		for _, name := range statement.DefinedNames() {
			m.definitions[name] = statement
		}
	}

	// An anonymous default export needs a synthesised binding name.
	if exp, ok := m.exports["default"]; ok && exp.LocalName == "" {
		m.defaultName = legalIdentifier(strings.TrimSuffix(filepath.Base(m.path), filepath.Ext(m.path)))
	}

	return m, nil
}

// Path identifies the module's source file.
func (m *Module) Path() string { return m.path }

// Source returns the module's raw source text.
func (m *Module) Source() []byte { return m.source }

// Statements returns the module's top-level statements in source order.
func (m *Module) Statements() []*analyzer.Statement { return m.statements }

// ImportSpec returns the import specifier bound to a local name.
func (m *Module) ImportSpec(name string) (analyzer.ImportRef, bool) {
	ref, ok := m.imports[name]
	return ref, ok
}

// Modifications returns the statements known to mutate name, in source
// order.
func (m *Module) Modifications(name string) []*analyzer.Statement {
	return m.modifications[name]
}

// collectImports extracts the local-name to specifier mapping from every
// import declaration. Side-effect imports (`import './x'`) bind nothing and
// are handled during expansion.
func (m *Module) collectImports() error {
	for _, statement := range m.statements {
		if !statement.IsImportDeclaration() {
			continue
		}
		node := statement.Node()
		source := importSource(node, m.source)
		if source == "" {
			continue
		}
		clause := parser.FirstNamedChildOfType(node, "import_clause")
		if clause == nil {
			continue
		}
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			child := clause.NamedChild(i)
			switch child.Type() {
			case "identifier":
				if err := m.addImport(parser.GetNodeText(child, m.source), "default", source); err != nil {
					return err
				}
			case "namespace_import":
				if id := parser.FirstNamedChildOfType(child, "identifier"); id != nil {
					if err := m.addImport(parser.GetNodeText(id, m.source), "*", source); err != nil {
						return err
					}
				}
			case "named_imports":
				for j := 0; j < int(child.NamedChildCount()); j++ {
					spec := child.NamedChild(j)
					if spec.Type() != "import_specifier" {
						continue
					}
					nameNode := spec.ChildByFieldName("name")
					if nameNode == nil {
						continue
					}
					local := parser.GetNodeText(nameNode, m.source)
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = parser.GetNodeText(alias, m.source)
					}
					if err := m.addImport(local, parser.GetNodeText(nameNode, m.source), source); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (m *Module) addImport(localName, originalName, source string) error {
	if _, ok := m.imports[localName]; ok {
		return fmt.Errorf("duplicated import %q in %s", localName, m.path)
	}
	m.imports[localName] = analyzer.ImportRef{
		Source:       source,
		OriginalName: originalName,
		LocalName:    localName,
	}
	return nil
}

// collectExports extracts exported-name records from every export
// declaration.
func (m *Module) collectExports() {
	for _, statement := range m.statements {
		if !statement.IsExportDeclaration() {
			continue
		}
		node := statement.Node()
		declaration := node.ChildByFieldName("declaration")
		value := node.ChildByFieldName("value")

		switch {
		case parser.HasChildToken(node, "default"):
			exp := &ExportDeclaration{Statement: statement}
			if declaration != nil {
				if name := declaration.ChildByFieldName("name"); name != nil {
					exp.LocalName = parser.GetNodeText(name, m.source)
					exp.IsDeclaration = true
				}
			} else if value != nil && value.Type() == "identifier" {
				exp.LocalName = parser.GetNodeText(value, m.source)
			}
			m.addExport("default", exp)

		case declaration != nil:
			for _, name := range declaredNames(declaration, m.source) {
				m.addExport(name, &ExportDeclaration{
					LocalName:     name,
					Statement:     statement,
					IsDeclaration: true,
				})
			}

		default:
			clause := parser.FirstNamedChildOfType(node, "export_clause")
			if clause == nil {
				continue
			}
			for i := 0; i < int(clause.NamedChildCount()); i++ {
				spec := clause.NamedChild(i)
				if spec.Type() != "export_specifier" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				local := parser.GetNodeText(nameNode, m.source)
				exported := local
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					exported = parser.GetNodeText(alias, m.source)
				}
				m.addExport(exported, &ExportDeclaration{LocalName: local, Statement: statement})
			}
		}
	}
}

func (m *Module) addExport(name string, exp *ExportDeclaration) {
	if _, ok := m.exports[name]; !ok {
		m.exportOrder = append(m.exportOrder, name)
	}
	m.exports[name] = exp
}

// Export returns the export record for an exported name.
func (m *Module) Export(name string) (*ExportDeclaration, bool) {
	exp, ok := m.exports[name]
	return exp, ok
}

// ExportedNames returns the exported names in source order.
func (m *Module) ExportedNames() []string { return m.exportOrder }

// Define returns the ordered statements needed to establish name at the top
// level of this module. Imported names delegate to the exporting module.
// Repeat requests, including cyclic ones, return nothing further; names with
// no known definer are treated as external and also return nothing.
func (m *Module) Define(name string) ([]*analyzer.Statement, error) {
	if m.defined[name] {
		return nil, nil
	}
	m.defined[name] = true

	if ref, ok := m.imports[name]; ok {
		imported, err := m.bundle.fetchModule(ref.Source, m.path)
		if err != nil {
			return nil, err
		}
		if imported == nil {
			// external module; the reference survives untouched
			return nil, nil
		}
		m.importedModules[name] = imported

		if ref.IsNamespace() {
			if imported.namespaceName == "" {
				imported.namespaceName = name
			}
			m.bundle.addNamespaceModule(imported)
			return imported.ExpandAll(false)
		}

		exp, ok := imported.exports[ref.OriginalName]
		if !ok {
			return nil, fmt.Errorf("module %s does not export %q (imported by %s)",
				imported.path, ref.OriginalName, m.path)
		}
		if exp.LocalName != "" {
			return imported.Define(exp.LocalName)
		}
		return exp.Statement.Expand()
	}

	if name == "default" {
		if exp, ok := m.exports["default"]; ok {
			if exp.LocalName != "" {
				return m.Define(exp.LocalName)
			}
			return exp.Statement.Expand()
		}
		return nil, nil
	}

	if statement, ok := m.definitions[name]; ok {
		return statement.Expand()
	}
	return nil, nil
}

// ExpandAll expands every statement of this module in source order. For the
// entry module, bare export clauses define each exported name instead of
// being included themselves. A side-effect import pulls in the whole
// imported module.
func (m *Module) ExpandAll(isEntry bool) ([]*analyzer.Statement, error) {
	var all []*analyzer.Statement
	for _, statement := range m.statements {
		if statement.IsIncluded() {
			continue
		}

		if statement.IsImportDeclaration() {
			if parser.FirstNamedChildOfType(statement.Node(), "import_clause") != nil {
				continue
			}
			source := importSource(statement.Node(), m.source)
			imported, err := m.bundle.fetchModule(source, m.path)
			if err != nil {
				return nil, err
			}
			if imported == nil {
				continue
			}
			statements, err := imported.ExpandAll(false)
			if err != nil {
				return nil, err
			}
			all = append(all, statements...)
			continue
		}

		if statement.IsExportDeclaration() && isBareExportClause(statement.Node()) {
			if !isEntry {
				continue
			}
			for _, name := range m.exportOrder {
				exp := m.exports[name]
				if exp.Statement != statement || exp.LocalName == "" {
					continue
				}
				statements, err := m.Define(exp.LocalName)
				if err != nil {
					return nil, err
				}
				all = append(all, statements...)
			}
			continue
		}

		statements, err := statement.Expand()
		if err != nil {
			return nil, err
		}
		all = append(all, statements...)
	}
	return all, nil
}

// Rename records a bundle-level replacement for a top-level name.
func (m *Module) Rename(name, replacement string) {
	m.renames[name] = replacement
}

// CanonicalName resolves a local name to the name it carries in the bundle:
// imported bindings resolve through the exporting module, deconflicted
// bindings to their replacement.
func (m *Module) CanonicalName(name string) string {
	if imported, ok := m.importedModules[name]; ok {
		ref := m.imports[name]
		switch ref.OriginalName {
		case "*":
			return imported.NamespaceName()
		case "default":
			return imported.DefaultName()
		default:
			if exp, ok := imported.exports[ref.OriginalName]; ok && exp.LocalName != "" {
				return imported.CanonicalName(exp.LocalName)
			}
			return name
		}
	}
	if replacement, ok := m.renames[name]; ok {
		return replacement
	}
	return name
}

// DefaultName returns the bundle name of this module's default export.
func (m *Module) DefaultName() string {
	if exp, ok := m.exports["default"]; ok && exp.LocalName != "" {
		return m.CanonicalName(exp.LocalName)
	}
	return m.defaultName
}

// NamespaceName returns the bundle name of this module's namespace object,
// or the empty string when no namespace import demanded one.
func (m *Module) NamespaceName() string {
	if m.namespaceName == "" {
		return ""
	}
	if replacement, ok := m.renames[m.namespaceName]; ok {
		return replacement
	}
	return m.namespaceName
}

// importSource returns the unquoted specifier of an import statement.
func importSource(node *sitter.Node, source []byte) string {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return ""
	}
	return strings.Trim(parser.GetNodeText(sourceNode, source), `'"`)
}

// isBareExportClause reports whether an export statement is a plain
// `export { ... }` clause with no declaration of its own.
func isBareExportClause(node *sitter.Node) bool {
	return node.ChildByFieldName("declaration") == nil &&
		node.ChildByFieldName("value") == nil &&
		!parser.HasChildToken(node, "default")
}

// declaredNames returns the names bound by a declaration node.
func declaredNames(declaration *sitter.Node, source []byte) []string {
	switch declaration.Type() {
	case "function_declaration", "generator_function_declaration", "class_declaration":
		if name := declaration.ChildByFieldName("name"); name != nil {
			return []string{parser.GetNodeText(name, source)}
		}
	case "variable_declaration", "lexical_declaration":
		var names []string
		for i := 0; i < int(declaration.NamedChildCount()); i++ {
			declarator := declaration.NamedChild(i)
			if declarator.Type() != "variable_declarator" {
				continue
			}
			if nameNode := declarator.ChildByFieldName("name"); nameNode != nil {
				names = append(names, analyzer.BoundNames(nameNode, source)...)
			}
		}
		return names
	}
	return nil
}

// legalIdentifier derives a valid identifier from a file name.
func legalIdentifier(name string) string {
	var sb strings.Builder
	for i, r := range name {
		valid := r == '_' || r == '$' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if valid {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_default"
	}
	return sb.String()
}
