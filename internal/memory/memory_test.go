package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/noumenal/ckg/internal/config"
	"github.com/noumenal/ckg/internal/embedding"
	"github.com/noumenal/ckg/internal/logging"
	"github.com/noumenal/ckg/internal/registry"
)

func newTestMemory(t *testing.T) *UnifiedMemory {
	t.Helper()
	reg, err := registry.NewRegistry(t.TempDir())
	require.NoError(t, err)

	cfg := config.NewDefaultConfig()
	cfg.Storage.DefaultCollection = "default"

	m, err := New(cfg, Deps{
		Registry: reg,
		Embedder: embedding.NewDeterministicProvider(64),
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAddDocument_CreatesVectorAndGraphNode(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	id, err := m.AddDocument(ctx, Document{ID: "doc1", Text: "hello world", Title: "Doc One"}, "")
	require.NoError(t, err)
	assert.Equal(t, "default:doc1", id)

	h, err := m.resolveCollection("default", false)
	require.NoError(t, err)
	_, err = h.graph.GetNode(id)
	assert.NoError(t, err)
}

func TestAddDocument_AutoGeneratesIDWhenEmpty(t *testing.T) {
	m := newTestMemory(t)
	id, err := m.AddDocument(context.Background(), Document{Text: "no explicit id"}, "")
	require.NoError(t, err)
	assert.Contains(t, id, "default:")
}

func TestAddDocuments_PartialFailureIsolated(t *testing.T) {
	m := newTestMemory(t)
	docs := []Document{
		{ID: "a", Text: "first document"},
		{ID: "", Text: ""}, // empty text -> embedding error for this one only
		{ID: "c", Text: "third document"},
	}
	outcomes := m.AddDocuments(context.Background(), docs, "")
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)
}

func TestSearch_FindsInsertedDocument(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	id, err := m.AddDocument(ctx, Document{ID: "doc1", Text: "caching strategies for databases"}, "")
	require.NoError(t, err)

	results, err := m.Search(ctx, "caching strategies for databases", SearchOptions{K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].ID)
	// spec.md §8's round-trip law: a single-document store's own text,
	// searched back through a deterministic embedder, must return with
	// combinedScore >= 0.9.
	assert.GreaterOrEqual(t, results[0].CombinedScore, float32(0.9))
}

func TestDeleteDocument_RemovesFromBothStores(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	id, err := m.AddDocument(ctx, Document{ID: "doc1", Text: "ephemeral content"}, "")
	require.NoError(t, err)

	require.NoError(t, m.DeleteDocument(id, "default"))

	h, err := m.resolveCollection("default", false)
	require.NoError(t, err)
	_, err = h.graph.GetNode(id)
	assert.Error(t, err)
}

func TestAddRelationshipAndFindRelated(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	a, err := m.AddDocument(ctx, Document{ID: "a", Text: "document a content"}, "")
	require.NoError(t, err)
	b, err := m.AddDocument(ctx, Document{ID: "b", Text: "document b content"}, "")
	require.NoError(t, err)

	require.NoError(t, m.AddRelationship("default", a, b, "CITES", nil))

	related, err := m.FindRelated("default", a, 1, nil)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, b, related[0].ID)
}

func TestGraphQuery_Passthrough(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	_, err := m.AddDocument(ctx, Document{ID: "doc1", Text: "queryable content"}, "")
	require.NoError(t, err)

	rows, err := m.GraphQuery("default", `MATCH (n:Document) RETURN n`)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestGetStats_ReportsOpenedCollections(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.AddDocument(context.Background(), Document{ID: "doc1", Text: "stats content"}, "")
	require.NoError(t, err)

	stats, err := m.GetStats()
	require.NoError(t, err)
	require.Contains(t, stats.Collections, "default")
	assert.Equal(t, 1, stats.Collections["default"].Vector.TotalItems)
}

func TestTick_RunsWithoutError(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.AddDocument(context.Background(), Document{ID: "doc1", Text: "tick content"}, "")
	require.NoError(t, err)
	assert.NoError(t, m.Tick(time.Now()))
}

func TestCreateCollection_LogsCreation(t *testing.T) {
	reg, err := registry.NewRegistry(t.TempDir())
	require.NoError(t, err)
	tl := logging.NewTestLogger()

	cfg := config.NewDefaultConfig()
	cfg.Storage.DefaultCollection = "default"
	m, err := New(cfg, Deps{
		Registry: reg,
		Embedder: embedding.NewDeterministicProvider(64),
		Logger:   tl.Logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	_, err = m.CreateCollection("notes", 64, registry.MetricCosine, nil)
	require.NoError(t, err)

	tl.AssertLogged(t, zapcore.InfoLevel, "created collection")
	tl.AssertField(t, "created collection", "collection", "notes")
}
