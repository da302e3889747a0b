package memory

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noumenal/ckg/internal/cognitive"
	"github.com/noumenal/ckg/internal/config"
	"github.com/noumenal/ckg/internal/embedding"
	"github.com/noumenal/ckg/internal/registry"
)

func newTestMemoryWithCognition(t *testing.T) *UnifiedMemory {
	t.Helper()
	reg, err := registry.NewRegistry(t.TempDir())
	require.NoError(t, err)

	db, err := bolt.Open(filepath.Join(t.TempDir(), "cog.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	recorder, err := cognitive.OpenTrajectoryRecorder(db)
	require.NoError(t, err)
	bank := cognitive.NewPatternBank(2)

	cfg := config.NewDefaultConfig()
	cfg.Storage.DefaultCollection = "default"

	m, err := New(cfg, Deps{
		Registry:     reg,
		Embedder:     embedding.NewDeterministicProvider(64),
		Trajectories: recorder,
		Patterns:     bank,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestBeginTrajectory_DisabledWithoutRecorder(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.BeginTrajectory("plan X", "")
	assert.ErrorIs(t, err, ErrCognitionDisabled)
}

func TestTrajectoryLifecycleAndFindPatterns(t *testing.T) {
	m := newTestMemoryWithCognition(t)

	id, err := m.BeginTrajectory("plan X", "retrieval")
	require.NoError(t, err)

	require.NoError(t, m.RecordStep(id, "step1", 0.8))
	require.NoError(t, m.RecordStep(id, "step2", 0.4))
	require.NoError(t, m.EndTrajectory(id, 0.7))

	err = m.RecordStep(id, "step3", 0.1)
	assert.Error(t, err)

	completed, err := m.cognates.ListCompleted()
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.NoError(t, m.patterns.Fit(completed))

	matches, err := m.FindPatterns("plan", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestFindPatterns_NoMatchingTrajectory(t *testing.T) {
	m := newTestMemoryWithCognition(t)
	id, err := m.BeginTrajectory("unrelated topic", "")
	require.NoError(t, err)
	require.NoError(t, m.EndTrajectory(id, 1.0))

	completed, err := m.cognates.ListCompleted()
	require.NoError(t, err)
	require.NoError(t, m.patterns.Fit(completed))

	_, err = m.FindPatterns("nonexistent query text", 1)
	assert.ErrorIs(t, err, ErrNoMatchingTrajectory)
}
