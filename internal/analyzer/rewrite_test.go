package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replace(t *testing.T, source string, names, exportTargets map[string]string) string {
	t.Helper()
	host := mustAnalyse(t, source, nil)
	require.Len(t, host.statements, 1)
	return host.statements[0].ReplaceIdentifiers(names, exportTargets).String()
}

func TestReplaceIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		names    map[string]string
		expected string
	}{
		{
			name:     "simple rename",
			source:   `var a = b;`,
			names:    map[string]string{"b": "c"},
			expected: `var a = c;`,
		},
		{
			name:     "rename to namespace member",
			source:   `var total = add(x, y);`,
			names:    map[string]string{"add": "math.add", "x": "math.x"},
			expected: `var total = math.add(math.x, y);`,
		},
		{
			name:     "identity replacement leaves source untouched",
			source:   `var a = b;`,
			names:    map[string]string{"b": "b"},
			expected: `var a = b;`,
		},
		{
			name:     "property position is never renamed",
			source:   `var v = obj.b + {b: b}.b;`,
			names:    map[string]string{"b": "c"},
			expected: `var v = obj.b + {b: c}.b;`,
		},
		{
			name:     "shorthand property keeps its key",
			source:   `var o = {b};`,
			names:    map[string]string{"b": "c"},
			expected: `var o = {b: c};`,
		},
		{
			name:     "locally declared name is not renamed",
			source:   `function f() { var b = 1; return b + c; }`,
			names:    map[string]string{"b": "x", "c": "y"},
			expected: `function f() { var b = 1; return b + y; }`,
		},
		{
			name:     "parameter shadows replacement",
			source:   `var g = b => b + c;`,
			names:    map[string]string{"b": "x", "c": "y"},
			expected: `var g = b => b + y;`,
		},
		{
			name:     "deshadow replacement root",
			source:   `function f(bundle) { return foo + bundle.x; }`,
			names:    map[string]string{"foo": "bundle.foo"},
			expected: `function f(bundle$$) { return bundle.foo + bundle$$.x; }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, replace(t, tt.source, tt.names, nil))
		})
	}
}

func TestReplaceIdentifiersDoesNotMutate(t *testing.T) {
	host := mustAnalyse(t, `var a = b;`, nil)
	s := host.statements[0]

	first := s.ReplaceIdentifiers(map[string]string{"b": "c"}, nil)
	second := s.ReplaceIdentifiers(map[string]string{"b": "d"}, nil)

	assert.Equal(t, `var a = c;`, first.String())
	assert.Equal(t, `var a = d;`, second.String())
}

func TestReplaceIdentifiersSourcemapLocation(t *testing.T) {
	host := mustAnalyse(t, "var a = 1;\nvar b = 2;", nil)
	buf := host.statements[1].ReplaceIdentifiers(nil, nil)

	assert.Equal(t, []uint32{host.statements[1].Start()}, buf.Locations())
}

func TestExportTargetInjection(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		names    map[string]string
		targets  map[string]string
		expected string
	}{
		{
			name:     "single declarator rewritten in place",
			source:   `var answer = 42;`,
			targets:  map[string]string{"answer": "exports.answer"},
			expected: `exports.answer = 42;`,
		},
		{
			name:     "lexical declaration rewritten in place",
			source:   `const answer = 42;`,
			targets:  map[string]string{"answer": "exports.answer"},
			expected: `exports.answer = 42;`,
		},
		{
			name:     "multiple declarators get trailing assignments",
			source:   `var a = 1, b = 2;`,
			targets:  map[string]string{"a": "exports.a"},
			expected: "var a = 1, b = 2;\nexports.a = a;",
		},
		{
			name:     "renamed export uses the replacement value",
			source:   `var a = 1, b = 2;`,
			names:    map[string]string{"a": "_a"},
			targets:  map[string]string{"a": "exports.a"},
			expected: "var _a = 1, b = 2;\nexports.a = _a;",
		},
		{
			name:     "no matching target leaves the declaration alone",
			source:   `var a = 1;`,
			targets:  map[string]string{"other": "exports.other"},
			expected: `var a = 1;`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, replace(t, tt.source, tt.names, tt.targets))
		})
	}
}
