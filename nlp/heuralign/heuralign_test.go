package heuralign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignExactMatches(t *testing.T) {
	a := New()
	alignment, err := a.Align(
		[]string{"Berlin", "2024", "report"},
		[]string{"report", "Berlin", "2024"})
	require.NoError(t, err)

	assert.True(t, alignment.Contains(0, 1))
	assert.True(t, alignment.Contains(1, 2))
	assert.True(t, alignment.Contains(2, 0))
}

func TestAlignCaseInsensitive(t *testing.T) {
	a := New()
	alignment, err := a.Align([]string{"haus"}, []string{"Haus"})
	require.NoError(t, err)
	assert.True(t, alignment.Contains(0, 0))
}

func TestAlignSharedPrefix(t *testing.T) {
	a := New()
	alignment, err := a.Align([]string{"President"}, []string{"Präsident", "Presidentin"})
	require.NoError(t, err)
	// "Presidentin" shares a 9-rune prefix, well past MinPrefix.
	assert.True(t, alignment.Contains(0, 1))

	disabled := &Aligner{MinPrefix: 0}
	alignment, err = disabled.Align([]string{"President"}, []string{"Presidentin"})
	require.NoError(t, err)
	assert.Empty(t, alignment)
}

func TestAlignOneToOne(t *testing.T) {
	a := New()
	alignment, err := a.Align(
		[]string{"die", "die"},
		[]string{"die"})
	require.NoError(t, err)
	// One target word can only absorb one source word.
	assert.Len(t, alignment, 1)
}

func TestAlignPrefersDiagonal(t *testing.T) {
	a := New()
	// Identical candidates on both ends; the positionally closer one wins.
	alignment, err := a.Align(
		[]string{"x", "die", "y"},
		[]string{"a", "die", "b", "die"})
	require.NoError(t, err)
	assert.True(t, alignment.Contains(1, 1))
}

func TestAlignEmpty(t *testing.T) {
	a := New()
	alignment, err := a.Align(nil, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, alignment)
}
