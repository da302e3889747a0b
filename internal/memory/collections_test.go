package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noumenal/ckg/internal/registry"
)

func TestCreateListDeleteCollection(t *testing.T) {
	m := newTestMemory(t)

	info, err := m.CreateCollection("alt", 64, registry.MetricCosine, map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "alt", info.Name)
	assert.Equal(t, 64, info.Dimension)

	names := map[string]bool{}
	for _, c := range m.ListCollections() {
		names[c.Name] = true
	}
	assert.True(t, names["alt"])

	require.NoError(t, m.DeleteCollection("alt", ""))

	names = map[string]bool{}
	for _, c := range m.ListCollections() {
		names[c.Name] = true
	}
	assert.False(t, names["alt"])
}

func TestDeleteCollection_MigratesDocuments(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	_, err := m.CreateCollection("src", 64, registry.MetricCosine, nil)
	require.NoError(t, err)
	_, err = m.CreateCollection("dst", 64, registry.MetricCosine, nil)
	require.NoError(t, err)

	_, err = m.AddDocument(ctx, Document{ID: "doc1", Text: "migration content", Title: "T"}, "src")
	require.NoError(t, err)

	require.NoError(t, m.DeleteCollection("src", "dst"))

	h, err := m.resolveCollection("dst", false)
	require.NoError(t, err)
	_, err = h.graph.GetNode("dst:doc1")
	assert.NoError(t, err)

	results, err := m.Search(ctx, "migration content", SearchOptions{K: 5, Collections: []string{"dst"}})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "dst:doc1", results[0].ID)
}

func TestDeleteCollection_RejectsIncompatibleTarget(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.CreateCollection("src2", 64, registry.MetricCosine, nil)
	require.NoError(t, err)
	_, err = m.CreateCollection("dst2", 128, registry.MetricCosine, nil)
	require.NoError(t, err)

	err = m.DeleteCollection("src2", "dst2")
	assert.Error(t, err)
}
