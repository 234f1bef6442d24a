package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementIDs(t *testing.T) {
	r := New()

	assert.Equal(t, uint32(0), r.NextID())
	assert.Equal(t, uint32(1), r.NextID())
	assert.Equal(t, uint32(2), r.NextID())
	assert.Equal(t, 3, r.TotalStatements())
}

func TestMarkIncluded(t *testing.T) {
	r := New()
	a := r.NextID()
	b := r.NextID()
	c := r.NextID()

	r.MarkIncluded(a)
	r.MarkIncluded(c)

	assert.True(t, r.Included(a))
	assert.False(t, r.Included(b))
	assert.True(t, r.Included(c))
	assert.Equal(t, 2, r.IncludedStatements())
}

func TestMarkIncludedIsIdempotent(t *testing.T) {
	r := New()
	id := r.NextID()

	r.MarkIncluded(id)
	r.MarkIncluded(id)

	assert.Equal(t, 1, r.IncludedStatements())
}

func TestRemovedBytes(t *testing.T) {
	r := New()
	r.AddModule(ModuleStats{Path: "a.js", Statements: 3, Included: 2, RemovedBytes: 40})
	r.AddModule(ModuleStats{Path: "b.js", Statements: 1, Included: 1})

	assert.Equal(t, 40, r.RemovedBytes())
	assert.Len(t, r.Modules, 2)
}

func TestTable(t *testing.T) {
	r := New()
	r.MarkIncluded(r.NextID())
	r.NextID()
	r.AddModule(ModuleStats{Path: "main.js", Statements: 2, Included: 1, RemovedBytes: 12})

	table := r.Table()
	assert.Equal(t, r, table.RenderData(), "table serialization exposes the report itself")
}
