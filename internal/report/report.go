// Package report summarises the outcome of tree shaking: which statements
// each module contributed to the bundle and how much source was removed.
package report

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/curran/rollup/internal/output"
)

// ModuleStats describes one module's contribution to the bundle.
type ModuleStats struct {
	Path         string `json:"path" toon:"path"`
	Statements   int    `json:"statements" toon:"statements"`
	Included     int    `json:"included" toon:"included"`
	RemovedBytes int    `json:"removed_bytes" toon:"removed_bytes"`
}

// Report aggregates per-module shaking statistics. Statement inclusion is
// tracked in a Roaring bitmap over bundle-wide statement indices, which
// stays compact for the sparse inclusion sets large graphs produce.
type Report struct {
	Modules []ModuleStats `json:"modules" toon:"modules"`

	included *roaring.Bitmap
	next     uint32
}

// New creates an empty report.
func New() *Report {
	return &Report{included: roaring.New()}
}

// NextID allocates the next bundle-wide statement index.
func (r *Report) NextID() uint32 {
	id := r.next
	r.next++
	return id
}

// MarkIncluded records a statement index as included in the bundle.
func (r *Report) MarkIncluded(id uint32) {
	r.included.Add(id)
}

// Included reports whether a statement index made it into the bundle.
func (r *Report) Included(id uint32) bool {
	return r.included.Contains(id)
}

// AddModule appends one module's statistics.
func (r *Report) AddModule(stats ModuleStats) {
	r.Modules = append(r.Modules, stats)
}

// TotalStatements returns the number of statements across all modules.
func (r *Report) TotalStatements() int {
	return int(r.next)
}

// IncludedStatements returns the number of statements kept in the bundle.
func (r *Report) IncludedStatements() int {
	return int(r.included.GetCardinality())
}

// RemovedBytes returns the total source bytes eliminated by shaking.
func (r *Report) RemovedBytes() int {
	total := 0
	for _, m := range r.Modules {
		total += m.RemovedBytes
	}
	return total
}

// Table renders the report as a formattable table.
func (r *Report) Table() *output.Table {
	rows := make([][]string, 0, len(r.Modules))
	for _, m := range r.Modules {
		rows = append(rows, []string{
			m.Path,
			fmt.Sprintf("%d", m.Statements),
			fmt.Sprintf("%d", m.Included),
			fmt.Sprintf("%d", m.RemovedBytes),
		})
	}
	footer := []string{
		"Total",
		fmt.Sprintf("%d", r.TotalStatements()),
		fmt.Sprintf("%d", r.IncludedStatements()),
		fmt.Sprintf("%d", r.RemovedBytes()),
	}
	return output.NewTable(
		"Tree Shaking",
		[]string{"Module", "Statements", "Included", "Removed Bytes"},
		rows,
		footer,
		r,
	)
}
