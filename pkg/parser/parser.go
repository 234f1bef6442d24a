// Package parser wraps tree-sitter for JavaScript module parsing.
package parser

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Parser wraps a tree-sitter parser configured for JavaScript.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and its source.
type ParseResult struct {
	Tree   *sitter.Tree
	Source []byte
	Path   string
}

// New creates a new parser instance.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &Parser{parser: p}
}

// ParseFile parses a source file and returns the AST.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(source, path)
}

// Parse parses JavaScript source.
func (p *Parser) Parse(source []byte, path string) (*ParseResult, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &ParseResult{Tree: tree, Source: source, Path: path}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// NodeVisitor is a function that visits AST nodes.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the AST calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(i), source, visitor)
	}
}

// Cursor carries the callbacks for a traversal that needs to track state on
// the way in and out of a subtree, such as the active lexical scope. A false
// return from Enter prunes the node's children; Leave still runs for the
// pruned node so stacked state can be restored.
type Cursor struct {
	Enter func(node, parent *sitter.Node, nodeType string) bool
	Leave func(node, parent *sitter.Node, nodeType string)
}

// WalkScoped traverses the AST with enter/leave callbacks and cached node
// types.
func WalkScoped(node *sitter.Node, cursor Cursor) {
	walkScoped(node, nil, cursor)
}

func walkScoped(node, parent *sitter.Node, cursor Cursor) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	descend := true
	if cursor.Enter != nil {
		descend = cursor.Enter(node, parent, nodeType)
	}
	if descend {
		for i := 0; i < int(node.ChildCount()); i++ {
			walkScoped(node.Child(i), node, cursor)
		}
	}
	if cursor.Leave != nil {
		cursor.Leave(node, parent, nodeType)
	}
}

// FindNodes returns all nodes matching a predicate.
func FindNodes(root *sitter.Node, source []byte, predicate func(*sitter.Node) bool) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(node *sitter.Node, source []byte) bool {
		if predicate(node) {
			results = append(results, node)
		}
		return true
	})
	return results
}

// FindNodesByType returns all nodes of a specific type.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	return FindNodes(root, source, func(n *sitter.Node) bool {
		return n.Type() == nodeType
	})
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// FirstNamedChildOfType returns the first named child with the given type,
// or nil.
func FirstNamedChildOfType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// HasChildToken reports whether node has an anonymous child token with the
// given text, such as the `default` keyword of an export statement.
func HasChildToken(node *sitter.Node, token string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.IsNamed() && child.Type() == token {
			return true
		}
	}
	return false
}
