package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/curran/rollup/internal/analyzer"
	"github.com/curran/rollup/internal/fileproc"
	"github.com/curran/rollup/internal/progress"
	"github.com/curran/rollup/internal/report"
	"github.com/curran/rollup/pkg/edit"
	"github.com/curran/rollup/pkg/parser"
)

// Output formats.
const (
	FormatES  = "es"
	FormatCJS = "cjs"
)

// Options configures bundle construction.
type Options struct {
	Format  string // es (default) or cjs
	Verbose bool   // show progress while loading the graph
}

// Bundle drives graph loading, expansion and output generation for one
// entry module.
type Bundle struct {
	entryPath   string
	opts        Options
	parser      *parser.Parser
	preparsed   map[string]*parser.ParseResult
	modules     map[string]*Module
	moduleOrder []*Module
	entryModule *Module

	statements       []*analyzer.Statement
	namespaceModules []*Module
}

// NewBundle creates a bundle rooted at the given entry file.
func NewBundle(entryPath string, opts Options) *Bundle {
	if opts.Format == "" {
		opts.Format = FormatES
	}
	return &Bundle{
		entryPath: entryPath,
		opts:      opts,
		parser:    parser.New(),
		preparsed: make(map[string]*parser.ParseResult),
		modules:   make(map[string]*Module),
	}
}

// Close releases parser resources.
func (b *Bundle) Close() {
	b.parser.Close()
}

// Build loads the module graph, expands the entry module's statements and
// deconflicts top-level names. Parsing of separate files runs on a worker
// pool; analysis and expansion are strictly sequential, because inclusion
// order must match a valid execution order and the inclusion gate is not
// safe under concurrent mutation.
func (b *Bundle) Build() error {
	entryAbs, err := filepath.Abs(b.entryPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(entryAbs); err != nil {
		return fmt.Errorf("entry module: %w", err)
	}

	if err := b.preload(entryAbs); err != nil {
		return err
	}

	entry, err := b.loadModule(entryAbs)
	if err != nil {
		return err
	}
	b.entryModule = entry

	statements, err := entry.ExpandAll(true)
	if err != nil {
		return err
	}
	b.statements = statements

	b.deconflict()
	b.bindEntryExports()
	return nil
}

// bindEntryExports maps the entry module's exported var bindings to their
// exports.* references for cjs output, so that statements reading an exported
// binding follow it onto the exports object once the declaration itself has
// been rewritten in place. Only single-declarator declarations rewrite in
// place; multi-declarator declarations keep their local bindings and get
// trailing exports assignments instead, so their names must not be renamed.
func (b *Bundle) bindEntryExports() {
	if b.opts.Format != FormatCJS || b.entryModule == nil {
		return
	}
	entry := b.entryModule
	for _, exported := range entry.exportOrder {
		exp := entry.exports[exported]
		if exported == "default" || exp.LocalName == "" {
			continue
		}
		node := exp.Statement.Node()
		declaration := node.ChildByFieldName("declaration")
		if declaration == nil {
			continue
		}
		switch declaration.Type() {
		case "variable_declaration", "lexical_declaration":
			if singleDeclaratorName(declaration, entry.source) == exp.LocalName {
				entry.Rename(exp.LocalName, "exports."+exported)
			}
		}
	}
}

// singleDeclaratorName returns the bound name of a variable or lexical
// declaration that declares exactly one plain identifier, or "" for any
// other shape (several declarators, destructuring patterns).
func singleDeclaratorName(declaration *sitter.Node, source []byte) string {
	var name string
	count := 0
	for i := 0; i < int(declaration.NamedChildCount()); i++ {
		child := declaration.NamedChild(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		count++
		if count > 1 {
			return ""
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			return ""
		}
		name = string(source[nameNode.StartByte():nameNode.EndByte()])
	}
	if count != 1 {
		return ""
	}
	return name
}

// preload parses the statically reachable module graph up front, one parser
// per worker, so that module construction stays sequential afterwards.
func (b *Bundle) preload(entryAbs string) error {
	pending := []string{entryAbs}
	var tracker *progress.Tracker
	if b.opts.Verbose {
		tracker = progress.NewSpinner("Loading modules")
		defer tracker.Finish()
	}

	for len(pending) > 0 {
		var batch []string
		for _, path := range pending {
			if _, seen := b.preparsed[path]; !seen {
				batch = append(batch, path)
			}
		}
		if len(batch) == 0 {
			break
		}

		var loadErr error
		results := fileproc.MapFilesWithErrors(batch,
			func(p *parser.Parser, path string) (*parser.ParseResult, error) {
				return p.ParseFile(path)
			},
			func(path string, err error) {
				if loadErr == nil {
					loadErr = fmt.Errorf("loading %s: %w", path, err)
				}
			})
		if loadErr != nil {
			return loadErr
		}

		pending = pending[:0]
		for _, result := range results {
			b.preparsed[result.Path] = result
			if tracker != nil {
				tracker.Tick()
			}
			for _, source := range importSources(result) {
				if path := resolveModulePath(source, result.Path); path != "" {
					pending = append(pending, path)
				}
			}
		}
	}
	return nil
}

// importSources scans a parsed file's top level for import specifiers.
func importSources(result *parser.ParseResult) []string {
	var sources []string
	root := result.Tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() != "import_statement" {
			continue
		}
		if source := importSource(node, result.Source); source != "" {
			sources = append(sources, source)
		}
	}
	return sources
}

// fetchModule resolves an import specifier relative to the importing file
// and returns the module, constructing it on first request. Bare specifiers
// are external; they resolve to nil with no error.
func (b *Bundle) fetchModule(source, importerPath string) (*Module, error) {
	path := resolveModulePath(source, importerPath)
	if path == "" {
		return nil, nil
	}
	return b.loadModule(path)
}

func (b *Bundle) loadModule(path string) (*Module, error) {
	if m, ok := b.modules[path]; ok {
		return m, nil
	}

	result, ok := b.preparsed[path]
	if !ok {
		var err error
		result, err = b.parser.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		b.preparsed[path] = result
	}

	m, err := newModule(b, result)
	if err != nil {
		return nil, err
	}
	b.modules[path] = m
	b.moduleOrder = append(b.moduleOrder, m)
	return m, nil
}

// resolveModulePath maps a relative specifier to an absolute file path.
// Anything that is not relative is treated as external.
func resolveModulePath(source, importerPath string) string {
	if !strings.HasPrefix(source, "./") && !strings.HasPrefix(source, "../") {
		return ""
	}
	path := filepath.Join(filepath.Dir(importerPath), source)
	if filepath.Ext(path) == "" {
		path += ".js"
	}
	return path
}

// addNamespaceModule records a module whose namespace object must be
// materialised in the output.
func (b *Bundle) addNamespaceModule(m *Module) {
	for _, existing := range b.namespaceModules {
		if existing == m {
			return
		}
	}
	b.namespaceModules = append(b.namespaceModules, m)
}

// deconflict renames top-level bindings defined by more than one module.
// The module that reached the bundle last keeps the original name; earlier
// definers are renamed with underscore prefixes.
func (b *Bundle) deconflict() {
	definers := make(map[string][]*Module)
	var order []string
	for _, statement := range b.statements {
		module, ok := statement.Module().(*Module)
		if !ok {
			continue
		}
	nextName:
		for _, name := range statement.DefinedNames() {
			mods := definers[name]
			if len(mods) == 0 {
				order = append(order, name)
			}
			for _, seen := range mods {
				if seen == module {
					continue nextName
				}
			}
			definers[name] = append(mods, module)
		}
	}

	taken := make(map[string]bool, len(definers))
	for name := range definers {
		taken[name] = true
	}

	for _, name := range order {
		mods := definers[name]
		if len(mods) < 2 {
			continue
		}
		for _, module := range mods[:len(mods)-1] {
			replacement := name
			for taken[replacement] {
				replacement = "_" + replacement
			}
			taken[replacement] = true
			module.Rename(name, replacement)
		}
	}

	// synthesised default and namespace names must not collide either
	for _, module := range b.moduleOrder {
		if module.defaultName != "" {
			for taken[module.defaultName] {
				module.defaultName = "_" + module.defaultName
			}
			taken[module.defaultName] = true
		}
		if ns := module.namespaceName; ns != "" && module.renames[ns] == "" {
			replacement := ns
			for taken[replacement] {
				replacement = "_" + replacement
			}
			if replacement != ns {
				module.renames[ns] = replacement
			}
			taken[replacement] = true
		}
	}
}

// Statements returns the included statements in bundle order.
func (b *Bundle) Statements() []*analyzer.Statement { return b.statements }

// EntryModule returns the bundle's entry module.
func (b *Bundle) EntryModule() *Module { return b.entryModule }

// ModulePaths returns every loaded module's path, in load order.
func (b *Bundle) ModulePaths() []string {
	paths := make([]string, 0, len(b.moduleOrder))
	for _, m := range b.moduleOrder {
		paths = append(paths, m.path)
	}
	return paths
}

// Generate renders the included statements as bundle source in the
// configured output format.
func (b *Bundle) Generate() (string, error) {
	lastOfModule := make(map[*Module]int)
	for i, statement := range b.statements {
		if module, ok := statement.Module().(*Module); ok {
			lastOfModule[module] = i
		}
	}

	var parts []string

	// a namespace module with no included statements (an empty file, or one
	// holding only import or bare export syntax) still needs its object; it
	// has nothing to wait on, so it goes first
	for _, module := range b.namespaceModules {
		if _, ok := lastOfModule[module]; !ok {
			parts = append(parts, b.namespaceBlock(module))
		}
	}
	for i, statement := range b.statements {
		module, ok := statement.Module().(*Module)
		if !ok {
			continue
		}

		replacements := make(map[string]string)
		for _, name := range statement.DependencyNames() {
			if canonical := module.CanonicalName(name); canonical != name {
				replacements[name] = canonical
			}
		}
		for _, name := range statement.DefinedNames() {
			if canonical := module.CanonicalName(name); canonical != name {
				replacements[name] = canonical
			}
		}

		// `export default f` only aliases an existing binding; the alias is
		// resolved through the module's default name, so the statement itself
		// leaves no text behind
		aliasOnly := statement.IsExportDeclaration() && isPassthroughDefault(statement.Node())

		if !aliasOnly {
			exportTargets := b.exportTargetsFor(statement, module)
			buf := statement.ReplaceIdentifiers(replacements, exportTargets)
			if statement.IsExportDeclaration() {
				if err := rewriteExportSyntax(statement, buf, module); err != nil {
					return "", err
				}
			}
			parts = append(parts, strings.TrimSpace(buf.String()))
		}

		if module == b.entryModule && b.opts.Format == FormatCJS {
			parts = append(parts, b.declarationExportAssignments(statement, module)...)
		}

		if ns := module.NamespaceName(); ns != "" && lastOfModule[module] == i {
			parts = append(parts, b.namespaceBlock(module))
		}
	}

	if b.opts.Format == FormatES {
		if footer := b.esExportFooter(); footer != "" {
			parts = append(parts, footer)
		}
	}

	// bare export clauses never reach the statement list, so their cjs
	// assignments are emitted at the end
	if b.opts.Format == FormatCJS && b.entryModule != nil {
		entry := b.entryModule
		for _, exported := range entry.exportOrder {
			exp := entry.exports[exported]
			if exp.LocalName == "" || !isBareExportClause(exp.Statement.Node()) {
				continue
			}
			parts = append(parts, fmt.Sprintf("exports.%s = %s;", exported, entry.CanonicalName(exp.LocalName)))
		}
	}

	body := strings.Join(parts, "\n\n")
	if b.opts.Format == FormatCJS {
		body = "'use strict';\n\n" + body
	}
	return body + "\n", nil
}

// exportTargetsFor computes the cjs export targets covered by a statement's
// variable declarations. Function and class declaration exports are handled
// by declarationExportAssignments instead.
func (b *Bundle) exportTargetsFor(statement *analyzer.Statement, module *Module) map[string]string {
	if b.opts.Format != FormatCJS || module != b.entryModule {
		return nil
	}
	targets := make(map[string]string)
	for _, exported := range module.exportOrder {
		exp := module.exports[exported]
		if exp.Statement != statement || exported == "default" || exp.LocalName == "" {
			continue
		}
		node := statement.Node()
		declaration := node.ChildByFieldName("declaration")
		if declaration == nil {
			declaration = node
		}
		switch declaration.Type() {
		case "variable_declaration", "lexical_declaration":
			targets[exp.LocalName] = "exports." + exported
		}
	}
	return targets
}

// declarationExportAssignments surfaces exported function and class
// declarations, bare export clauses and the default export as cjs
// assignments after the defining statement.
func (b *Bundle) declarationExportAssignments(statement *analyzer.Statement, module *Module) []string {
	var assignments []string
	for _, exported := range module.exportOrder {
		exp := module.exports[exported]
		if exp.Statement != statement {
			continue
		}
		if exported == "default" {
			assignments = append(assignments,
				fmt.Sprintf("module.exports = %s;", module.DefaultName()))
			continue
		}
		if exp.LocalName == "" {
			continue
		}
		node := statement.Node()
		declaration := node.ChildByFieldName("declaration")
		if declaration == nil {
			declaration = node
		}
		switch declaration.Type() {
		case "variable_declaration", "lexical_declaration":
			// handled in place by the identifier rewrite
		default:
			assignments = append(assignments,
				fmt.Sprintf("exports.%s = %s;", exported, module.CanonicalName(exp.LocalName)))
		}
	}
	return assignments
}

// esExportFooter re-exports the entry module's bindings.
func (b *Bundle) esExportFooter() string {
	entry := b.entryModule
	if entry == nil || len(entry.exportOrder) == 0 {
		return ""
	}

	var specifiers []string
	var lines []string
	for _, exported := range entry.exportOrder {
		exp := entry.exports[exported]
		if exported == "default" {
			lines = append(lines, fmt.Sprintf("export default %s;", entry.DefaultName()))
			continue
		}
		local := entry.CanonicalName(exp.LocalName)
		if local == exported {
			specifiers = append(specifiers, exported)
		} else {
			specifiers = append(specifiers, fmt.Sprintf("%s as %s", local, exported))
		}
	}
	if len(specifiers) > 0 {
		lines = append([]string{fmt.Sprintf("export { %s };", strings.Join(specifiers, ", "))}, lines...)
	}
	return strings.Join(lines, "\n")
}

// rewriteExportSyntax strips or rewrites the export syntax of an included
// export statement: named declarations lose their `export ` prefix, a
// default export of an expression becomes a var declaration bound to the
// module's default name.
func rewriteExportSyntax(statement *analyzer.Statement, buf *edit.Buffer, module *Module) error {
	node := statement.Node()
	declaration := node.ChildByFieldName("declaration")
	value := node.ChildByFieldName("value")

	if parser.HasChildToken(node, "default") {
		if declaration != nil {
			if declaration.ChildByFieldName("name") != nil {
				// a named declaration keeps its own binding
				return buf.Remove(node.StartByte(), declaration.StartByte())
			}
			return buf.Overwrite(node.StartByte(), declaration.StartByte(),
				fmt.Sprintf("var %s = ", module.DefaultName()))
		}
		if value != nil {
			return buf.Overwrite(node.StartByte(), value.StartByte(),
				fmt.Sprintf("var %s = ", module.DefaultName()))
		}
		return nil
	}

	if declaration != nil {
		return buf.Remove(node.StartByte(), declaration.StartByte())
	}
	return nil
}

// isPassthroughDefault reports whether a default export merely re-exports an
// existing top-level binding (`export default f;`).
func isPassthroughDefault(node *sitter.Node) bool {
	if !parser.HasChildToken(node, "default") {
		return false
	}
	value := node.ChildByFieldName("value")
	return node.ChildByFieldName("declaration") == nil &&
		value != nil && value.Type() == "identifier"
}

// namespaceBlock materialises a module's namespace object as a frozen
// object literal.
func (b *Bundle) namespaceBlock(module *Module) string {
	var members []string
	for _, exported := range module.exportOrder {
		exp := module.exports[exported]
		var canonical string
		if exported == "default" {
			canonical = module.DefaultName()
		} else {
			canonical = module.CanonicalName(exp.LocalName)
		}
		members = append(members, fmt.Sprintf("\t%s: %s", exported, canonical))
	}
	return fmt.Sprintf("var %s = Object.freeze({\n%s\n});",
		module.NamespaceName(), strings.Join(members, ",\n"))
}

// Report summarises what tree shaking kept and removed, per module.
func (b *Bundle) Report() *report.Report {
	r := report.New()
	for _, module := range b.moduleOrder {
		stats := report.ModuleStats{Path: module.Path()}
		for _, statement := range module.Statements() {
			id := r.NextID()
			stats.Statements++
			if statement.IsIncluded() {
				r.MarkIncluded(id)
				stats.Included++
			} else {
				stats.RemovedBytes += int(statement.End() - statement.Start())
			}
		}
		r.AddModule(stats)
	}
	return r
}
