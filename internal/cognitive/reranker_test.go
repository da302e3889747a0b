package cognitive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noumenal/ckg/internal/graphstore"
)

func TestNeutralReranker_PassthroughAndTruncate(t *testing.T) {
	r := NewNeutralReranker()
	docs := []Document{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}, {ID: "c", Score: 0.1}}
	out, err := r.Rerank(context.Background(), "q", docs, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, float32(0.9), out[0].RerankerScore)
	assert.Equal(t, 0, out[0].OriginalRank)
	require.NoError(t, r.Close())
}

func TestGraphAttentionReranker_NoGraphFallsBackToBaseScore(t *testing.T) {
	r := NewGraphAttentionReranker(nil, 0)
	docs := []Document{{ID: "a", Score: 0.7}}
	out, err := r.Rerank(context.Background(), "q", docs, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.7, out[0].RerankerScore, 1e-6)
}

func TestGraphAttentionReranker_BlendsWithNeighbourSignal(t *testing.T) {
	s, err := graphstore.Open(filepath.Join(t.TempDir(), "g.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateNode(graphstore.Node{ID: "doc:1", Type: "Document"}))
	require.NoError(t, s.CreateNode(graphstore.Node{ID: "doc:2", Type: "Document"}))
	require.NoError(t, s.CreateEdge(graphstore.Edge{From: "doc:1", To: "doc:2", Type: "CITES"}))

	r := NewGraphAttentionReranker(s, DefaultAlpha)
	docs := []Document{{ID: "doc:1", Content: "x", Score: 0.6}, {ID: "doc:2", Content: "y", Score: 0.4}}
	out, err := r.Rerank(context.Background(), "q", docs, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "doc:1", out[0].ID) // higher base score wins after blending
}

func TestGraphAttentionReranker_DefaultAlphaAppliedWhenNonPositive(t *testing.T) {
	r := NewGraphAttentionReranker(nil, -1)
	assert.Equal(t, DefaultAlpha, r.alpha)
}
