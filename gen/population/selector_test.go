package population

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSelector_StableAndMonotonic verifies membership is stable across calls
// and that raising a ratio only ever adds actors.
func TestSelector_StableAndMonotonic(t *testing.T) {
	p, err := Build(Config{ActorCount: 300}, 11, buildAt)
	require.NoError(t, err)

	half, err := NewSelector(SelectorConfig{SourceID: "signin", HumanRatio: 0.5, ServiceRatio: 0.5}, 11)
	require.NoError(t, err)

	first := half.Select(p)
	second := half.Select(p)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
	assert.Less(t, len(first), p.Len())

	raised, err := NewSelector(SelectorConfig{SourceID: "signin", HumanRatio: 0.8, ServiceRatio: 0.8}, 11)
	require.NoError(t, err)
	member := make(map[string]bool)
	for _, a := range raised.Select(p) {
		member[a.ID] = true
	}
	for _, a := range first {
		assert.True(t, member[a.ID], "actor %s dropped when ratio raised", a.ID)
	}
}

// TestSelector_RatioExtremes verifies 0 selects nothing and 1 everything,
// per kind.
func TestSelector_RatioExtremes(t *testing.T) {
	p, err := Build(Config{ActorCount: 100}, 2, buildAt)
	require.NoError(t, err)

	none, err := NewSelector(SelectorConfig{SourceID: "audit"}, 2)
	require.NoError(t, err)
	assert.Empty(t, none.Select(p))

	humansOnly, err := NewSelector(SelectorConfig{SourceID: "audit", HumanRatio: 1}, 2)
	require.NoError(t, err)
	for _, a := range humansOnly.Select(p) {
		assert.Equal(t, KindHuman, a.Kind)
	}

	all, err := NewSelector(SelectorConfig{SourceID: "audit", HumanRatio: 1, ServiceRatio: 1}, 2)
	require.NoError(t, err)
	assert.Len(t, all.Select(p), p.Len())
}

// TestSelector_SeedAndSourceVary verifies distinct sources and seeds carve
// distinct subsets from the same population.
func TestSelector_SeedAndSourceVary(t *testing.T) {
	p, err := Build(Config{ActorCount: 400}, 6, buildAt)
	require.NoError(t, err)

	ids := func(s *Selector) []string {
		var out []string
		for _, a := range s.Select(p) {
			out = append(out, a.ID)
		}
		return out
	}

	a, err := NewSelector(SelectorConfig{SourceID: "signin", HumanRatio: 0.5, ServiceRatio: 0.5}, 6)
	require.NoError(t, err)
	b, err := NewSelector(SelectorConfig{SourceID: "audit", HumanRatio: 0.5, ServiceRatio: 0.5}, 6)
	require.NoError(t, err)
	assert.NotEqual(t, ids(a), ids(b))

	seed := int64(99)
	c, err := NewSelector(SelectorConfig{SourceID: "signin", HumanRatio: 0.5, ServiceRatio: 0.5, Seed: &seed}, 6)
	require.NoError(t, err)
	assert.NotEqual(t, ids(a), ids(c))
}

// TestNewSelector_Validation rejects empty ids and out-of-range ratios.
func TestNewSelector_Validation(t *testing.T) {
	_, err := NewSelector(SelectorConfig{HumanRatio: 0.5}, 0)
	assert.Error(t, err)

	_, err = NewSelector(SelectorConfig{SourceID: "s", HumanRatio: 1.5}, 0)
	assert.Error(t, err)

	_, err = NewSelector(SelectorConfig{SourceID: "s", ServiceRatio: -0.1}, 0)
	assert.Error(t, err)
}
