package population

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_RoundTrip verifies a built population survives a Parquet
// write/read cycle intact, including the JSON-encoded list and map columns.
func TestStore_RoundTrip(t *testing.T) {
	bias := map[string]float64{"ConsoleLogin": 3}
	cfg := Config{
		ActorCount: 25,
		Actors: []ExplicitActor{{
			ID:            "pinned",
			Kind:          "human",
			Role:          RoleAuditor,
			EventsPerHour: fptr(4),
			Tags:          []string{"red-team"},
			EventBias:     bias,
		}},
	}
	p, err := Build(cfg, 77, buildAt)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "actors.parquet")
	require.NoError(t, WriteFile(path, p))

	loaded, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, p.Len(), loaded.Len())

	for i, want := range p.Actors {
		got := loaded.Actors[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.EventsPerHour, got.EventsPerHour)
		assert.Equal(t, want.ErrorRate, got.ErrorRate)
		assert.Equal(t, want.UserAgents, got.UserAgents)
		assert.Equal(t, want.SourceIPs, got.SourceIPs)
		assert.Equal(t, want.TimezoneOffset, got.TimezoneOffset)
	}

	pinned := loaded.Get("pinned")
	require.NotNil(t, pinned)
	assert.Equal(t, []string{"red-team"}, pinned.Tags)
	assert.Equal(t, bias, pinned.EventBias)
}

// TestReadFile_Missing surfaces a useful error for absent files.
func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"))
	assert.Error(t, err)
}
