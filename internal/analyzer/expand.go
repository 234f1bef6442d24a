package analyzer

// Expand performs dependency expansion for tree shaking: it returns the
// ordered statement list required to establish this statement's bindings.
// Dependencies precede the statement; statements that mutate one of its
// bindings later in program order follow it, themselves transitively
// expanded. Expansion is strictly sequential so that the output order is a
// valid execution order.
//
// Expand is idempotent. The inclusion flag is set before any recursion, so a
// cyclic dependency chain terminates instead of looping; a second call on
// the same statement returns nothing.
func (s *Statement) Expand() ([]*Statement, error) {
	if s.isIncluded {
		return nil, nil
	}
	s.isIncluded = true

	var result []*Statement

	for _, name := range s.dependsOnOrder {
		definition, err := s.module.Define(name)
		if err != nil {
			return nil, err
		}
		result = append(result, definition...)
	}

	result = append(result, s)

	for _, name := range s.definesOrder {
		for _, modifier := range s.module.Modifications(name) {
			if modifier.isIncluded {
				continue
			}
			expanded, err := modifier.Expand()
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
		}
	}

	return result, nil
}
