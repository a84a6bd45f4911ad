package lock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

func chainOf(t *testing.T, err error) []string {
	t.Helper()
	var ke *kerrors.KilnError
	require.True(t, errors.As(err, &ke))
	chain, ok := ke.Context["chain"].([]string)
	require.True(t, ok)
	return chain
}

func TestClaimSelf(t *testing.T) {
	g := New()
	err := g.Claim("/a.js", "/a.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrCircularDependency)
	assert.Contains(t, err.Error(), "into itself")
	assert.Equal(t, 0, g.Len())
}

func TestClaimCycleThroughRoot(t *testing.T) {
	g := New()
	g.Enter("A")
	require.NoError(t, g.Claim("A", "B"))

	err := g.Claim("B", "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrCircularDependency)
	assert.Equal(t, []string{"A", "B", "A"}, chainOf(t, err))
	assert.Contains(t, err.Error(), "circular dependency on [A] -> [B] -> [A]")
}

func TestClaimDeepCycle(t *testing.T) {
	g := New()
	g.Enter("A")
	require.NoError(t, g.Claim("A", "B"))
	require.NoError(t, g.Claim("B", "C"))
	require.NoError(t, g.Claim("C", "D"))

	err := g.Claim("D", "B")
	require.Error(t, err)
	assert.Equal(t, []string{"B", "C", "D", "B"}, chainOf(t, err))
}

func TestReleaseAllowsReuse(t *testing.T) {
	g := New()
	g.Enter("A")
	require.NoError(t, g.Claim("A", "B"))
	g.Release("B")
	require.NoError(t, g.Claim("A", "B"), "siblings may reference the same target")

	holder, ok := g.Holder("B")
	assert.True(t, ok)
	assert.Equal(t, "A", holder)

	holder, ok = g.Holder("A")
	assert.True(t, ok)
	assert.Empty(t, holder)
}

func TestReset(t *testing.T) {
	g := New()
	g.Enter("A")
	require.NoError(t, g.Claim("A", "B"))
	g.Reset()
	assert.Equal(t, 0, g.Len())
	assert.NoError(t, g.Claim("B", "A"))
}

func TestGuardsAreIndependent(t *testing.T) {
	first, second := New(), New()
	first.Enter("A")
	require.NoError(t, first.Claim("A", "B"))

	second.Enter("B")
	assert.NoError(t, second.Claim("B", "A"))
}
