package analyzer

import (
	"fmt"
)

// ReassignmentError reports an attempt to reassign an imported binding, or
// an imported namespace object or one of its direct properties. It aborts
// analysis of the offending module.
type ReassignmentError struct {
	Name   string
	File   string
	Line   uint32
	Column uint32
}

func (e *ReassignmentError) Error() string {
	return fmt.Sprintf("%s:%d:%d: illegal reassignment to import %q", e.File, e.Line, e.Column, e.Name)
}
