package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPullsInDependencies(t *testing.T) {
	host := mustAnalyse(t, `
function a() { return b(); }
function b() { return 1; }
function unused() { return 2; }
`, nil)
	require.Len(t, host.statements, 3)

	result, err := host.statements[0].Expand()
	require.NoError(t, err)

	assert.Equal(t, []*Statement{host.statements[1], host.statements[0]}, result,
		"a's dependency b precedes a")
	assert.True(t, host.statements[0].IsIncluded())
	assert.True(t, host.statements[1].IsIncluded())
	assert.False(t, host.statements[2].IsIncluded())
}

func TestExpandIsIdempotent(t *testing.T) {
	host := mustAnalyse(t, `var a = 1;`, nil)

	first, err := host.statements[0].Expand()
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := host.statements[0].Expand()
	require.NoError(t, err)
	assert.Nil(t, second, "an included statement expands to nothing")
}

func TestExpandBreaksCycles(t *testing.T) {
	host := mustAnalyse(t, `
function even(n) { return n === 0 ? true : odd(n - 1); }
function odd(n) { return n === 0 ? false : even(n - 1); }
`, nil)

	result, err := host.statements[0].Expand()
	require.NoError(t, err)

	assert.Equal(t, []*Statement{host.statements[1], host.statements[0]}, result)
}

func TestExpandIncludesLaterModifiers(t *testing.T) {
	host := mustAnalyse(t, `
var count = 0;
count += 1;
var snapshot = count;
`, nil)
	require.Len(t, host.statements, 3)

	result, err := host.statements[2].Expand()
	require.NoError(t, err)

	assert.Equal(t, []*Statement{host.statements[0], host.statements[1], host.statements[2]}, result,
		"the definition and its post-definition modifier precede the reader")
}

func TestExpandSkipsExternalNames(t *testing.T) {
	host := mustAnalyse(t, `console.log(1);`, nil)

	result, err := host.statements[0].Expand()
	require.NoError(t, err)

	assert.Equal(t, []*Statement{host.statements[0]}, result,
		"names with no definer resolve to nothing extra")
}
