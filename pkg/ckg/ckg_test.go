package ckg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noumenal/ckg/internal/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Storage.Root = t.TempDir()
	cfg.Embedding.Provider = "deterministic"
	cfg.Cognitive.Enabled = true
	cfg.Cognitive.PatternMinCluster = 2

	e, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpen_RejectsNilStorageRoot(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Storage.Root = ""
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestEngine_DocumentLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	id, err := e.AddDocument(ctx, Document{ID: "doc1", Text: "graph traversal algorithms"}, "")
	require.NoError(t, err)

	results, err := e.Search(ctx, "graph traversal algorithms", SearchOptions{K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].ID)

	require.NoError(t, e.DeleteDocument(id, ""))
}

func TestEngine_CollectionLifecycle(t *testing.T) {
	e := newTestEngine(t)

	info, err := e.CreateCollection("notes", 64, MetricCosine, nil)
	require.NoError(t, err)
	assert.Equal(t, "notes", info.Name)

	found := false
	for _, c := range e.ListCollections() {
		if c.Name == "notes" {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, e.DeleteCollection("notes", ""))
}

func TestEngine_TrajectoryAndPatterns(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.BeginTrajectory("plan X", "retrieval")
	require.NoError(t, err)
	require.NoError(t, e.RecordStep(id, "step1", RewardFor(FeedbackGood)))
	require.NoError(t, e.EndTrajectory(id, 0.9))

	err = e.RecordStep(id, "step2", 0.1)
	assert.Error(t, err)
}

func TestEngine_GetStatsAndTick(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.AddDocument(ctx, Document{ID: "doc1", Text: "stats content"}, "")
	require.NoError(t, err)

	stats, err := e.GetStats()
	require.NoError(t, err)
	assert.Contains(t, stats.Collections, "default")

	assert.NoError(t, e.Tick(time.Now()))
}
