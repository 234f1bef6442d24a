package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeDepth(t *testing.T) {
	root := newScope(nil, false)
	fn := newScope(root, false)
	block := newScope(fn, true)

	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 1, fn.Depth())
	assert.Equal(t, 2, block.Depth())
}

func TestAddDeclarationHoisting(t *testing.T) {
	root := newScope(nil, false)
	fn := newScope(root, false)
	block := newScope(fn, true)

	// var hoists past the block to the enclosing function scope
	block.addDeclaration("hoisted", nil, false)
	assert.False(t, block.declares("hoisted"))
	assert.True(t, fn.declares("hoisted"))
	assert.False(t, root.declares("hoisted"))

	// let and const stay in the block
	block.addDeclaration("local", nil, true)
	assert.True(t, block.declares("local"))
	assert.False(t, fn.declares("local"))
}

func TestAddDeclarationNestedBlocks(t *testing.T) {
	root := newScope(nil, false)
	outer := newScope(root, true)
	inner := newScope(outer, true)

	inner.addDeclaration("v", nil, false)
	assert.True(t, root.declares("v"), "var hoists past every block scope")

	assert.Equal(t, []string{"v"}, root.names)
}

func TestFindDefiningScope(t *testing.T) {
	root := newScope(nil, false)
	fn := newScope(root, false)

	root.addDeclaration("outer", nil, false)
	fn.addDeclaration("inner", nil, false)

	assert.Equal(t, root, fn.findDefiningScope("outer"))
	assert.Equal(t, fn, fn.findDefiningScope("inner"))
	assert.Nil(t, fn.findDefiningScope("global"))

	// shadowing resolves to the nearest scope
	fn.addDeclaration("outer", nil, false)
	assert.Equal(t, fn, fn.findDefiningScope("outer"))
}

func TestContains(t *testing.T) {
	root := newScope(nil, false)
	fn := newScope(root, false)
	root.addDeclaration("a", nil, false)

	assert.True(t, fn.contains("a"))
	assert.True(t, root.contains("a"))
	assert.False(t, fn.contains("b"))
}

func TestNamesKeepInsertionOrder(t *testing.T) {
	root := newScope(nil, false)
	root.addDeclaration("b", nil, false)
	root.addDeclaration("a", nil, false)
	root.addDeclaration("b", nil, false) // re-declaration keeps first position

	assert.Equal(t, []string{"b", "a"}, root.names)
}
