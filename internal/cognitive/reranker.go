// Package cognitive implements the Cognitive Engine (C6): trajectory
// recording, graph-attention reranking, and reasoning-pattern
// clustering. Each capability is independently disableable by config
// without affecting the correctness of the other two or of C7's search
// algorithm -- reranking only reorders a candidate set C7 already
// assembled, and trajectories/patterns are observational.
package cognitive

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/noumenal/ckg/internal/graphstore"
)

// Document mirrors the teacher's reranker input shape exactly.
type Document struct {
	ID      string
	Content string
	Score   float32
}

// ScoredDocument mirrors the teacher's reranker output shape exactly.
type ScoredDocument struct {
	Document
	RerankerScore float32
	OriginalRank  int
}

// Reranker is the capability interface, unchanged from the teacher's
// internal/reranker/interface.go.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error)
	Close() error
}

// NeutralReranker is the null-object implementation used whenever no
// graph-attention reranker is configured (spec.md §4.6: reranking must
// be disableable without changing correctness). It passes scores
// through unchanged and only truncates to topK.
type NeutralReranker struct{}

const gnnBoost = 1.0

// NewNeutralReranker constructs the no-op reranker.
func NewNeutralReranker() *NeutralReranker { return &NeutralReranker{} }

func (n *NeutralReranker) Rerank(_ context.Context, _ string, docs []Document, topK int) ([]ScoredDocument, error) {
	out := make([]ScoredDocument, 0, len(docs))
	for i, d := range docs {
		out = append(out, ScoredDocument{
			Document:      d,
			RerankerScore: d.Score * gnnBoost,
			OriginalRank:  i,
		})
	}
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out, nil
}

func (n *NeutralReranker) Close() error { return nil }

// GraphAttentionReranker blends each candidate's base retrieval score
// with a soft-attention score computed over its 1-hop graph
// neighbourhood: alpha*baseScore + (1-alpha)*graphAttentionScore
// (spec.md §4.6).
type GraphAttentionReranker struct {
	graph    *graphstore.Store
	alpha    float64
	maxHops  int
	maxPeers int
}

// DefaultAlpha is spec.md §4.6's default blend weight.
const DefaultAlpha = 0.7

// NewGraphAttentionReranker constructs a reranker backed by the shared
// graph store. alpha <= 0 uses DefaultAlpha.
func NewGraphAttentionReranker(graph *graphstore.Store, alpha float64) *GraphAttentionReranker {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	return &GraphAttentionReranker{graph: graph, alpha: alpha, maxHops: 1, maxPeers: 32}
}

func (g *GraphAttentionReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	// Neighbours are looked up by id against this same candidate set --
	// a node's graph neighbour is only worth attending to here if it is
	// itself something the caller retrieved, with its own base score.
	scoreByID := make(map[string]float32, len(docs))
	for _, d := range docs {
		scoreByID[d.ID] = d.Score
	}

	scored := make([]ScoredDocument, len(docs))
	for i, d := range docs {
		attn := g.attentionScore(d, scoreByID)
		blended := float32(g.alpha)*d.Score + float32(1-g.alpha)*attn
		scored[i] = ScoredDocument{Document: d, RerankerScore: blended, OriginalRank: i}
	}
	sortByRerankerScoreDesc(scored)
	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// attentionScore approximates graph attention as a softmax-weighted
// average of a node's 1-hop neighbours' own base relevance, using
// inverse hop-depth as the attention logit. Neighbours outside the
// current candidate set carry no retrieval score of their own, so they
// fall back to the node's own base score. With no graph store, or an
// isolated node, the whole thing degrades to the document's own base
// score.
func (g *GraphAttentionReranker) attentionScore(d Document, scoreByID map[string]float32) float32 {
	if g.graph == nil {
		return d.Score
	}
	reached, err := g.graph.Neighbours(d.ID, "", graphstore.DirectionBoth, g.maxHops, g.maxPeers)
	if err != nil || len(reached) == 0 {
		return d.Score
	}

	logits := mat.NewVecDense(len(reached), nil)
	for i, r := range reached {
		logits.SetVec(i, 1.0/float64(r.Depth))
	}
	weights := softmax(logits)

	var sum float64
	for i, r := range reached {
		neighbourScore, ok := scoreByID[r.Node.ID]
		if !ok {
			neighbourScore = d.Score
		}
		sum += weights.AtVec(i) * float64(neighbourScore)
	}
	return float32(sum)
}

func softmax(v *mat.VecDense) *mat.VecDense {
	n := v.Len()
	out := mat.NewVecDense(n, nil)
	maxV := v.AtVec(0)
	for i := 1; i < n; i++ {
		if v.AtVec(i) > maxV {
			maxV = v.AtVec(i)
		}
	}
	var sum float64
	for i := 0; i < n; i++ {
		e := math.Exp(v.AtVec(i) - maxV)
		out.SetVec(i, e)
		sum += e
	}
	if sum == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		out.SetVec(i, out.AtVec(i)/sum)
	}
	return out
}

func sortByRerankerScoreDesc(docs []ScoredDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].RerankerScore > docs[j].RerankerScore
	})
}

func (g *GraphAttentionReranker) Close() error { return nil }
