package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noumenal/ckg/internal/registry"
)

func TestIndex_SaveAndLoad_RoundTrip(t *testing.T) {
	ix, err := New(4, registry.MetricCosine, testConfig())
	require.NoError(t, err)
	_, err = ix.Insert(Item{ID: "a", Vector: []float32{1, 0, 0, 0}, Metadata: map[string]any{"source": "x"}})
	require.NoError(t, err)
	_, err = ix.Insert(Item{ID: "b", Vector: []float32{0, 1, 0, 0}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vectors.idx")
	require.NoError(t, ix.Save(path))

	reloaded, err := New(4, registry.MetricCosine, testConfig())
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(path))

	results, err := reloaded.Search([]float32{1, 0, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "x", results[0].Metadata["source"])
	assert.Equal(t, 2, reloaded.Stats().TotalItems)
}
