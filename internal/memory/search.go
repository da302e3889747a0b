package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noumenal/ckg/internal/cognitive"
	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/router"
	"github.com/noumenal/ckg/internal/vectorindex"
)

// rrfK is spec.md §4.7's reciprocal-rank-fusion constant.
const rrfK = 60

// RelatedNode is one entry in UnifiedResult.RelatedNodes.
type RelatedNode struct {
	ID    string
	Type  string
	Depth int
}

// UnifiedResult is search's output shape (spec.md §4.7).
type UnifiedResult struct {
	ID            string
	Title         string
	Text          string
	Source        string
	VectorScore   float32
	GraphScore    float32
	CombinedScore float32
	RelatedNodes  []RelatedNode
	Metadata      map[string]any
}

// SearchOptions parameterises Search (spec.md §4.7).
type SearchOptions struct {
	K              int
	VectorWeight   float64 // alpha; <= 0 uses config default
	IncludeRelated bool
	GraphDepth     int // 0 uses the routed plan's depth
	Filter         *vectorindex.Filter
	Rerank         bool
	Collections    []string // empty fans out to [defaultCollection]
	AllowPartial   bool
	Plan           *router.Plan // caller-pinned plan, bypasses routing
}

type candidate struct {
	nsID         string
	collection   string
	vectorScore  float32
	relatedNodes []RelatedNode
	graphScore   float32
	rank         int // 1-based rank within its collection's vector result list
	item         vectorindex.Result
}

// Search implements spec.md §4.7's seven-step algorithm. Concurrent
// calls with the same collection set, query text, and result size
// collapse onto a single in-flight execution via singleflight, rather
// than each redoing the same embed+index+graph work.
func (m *UnifiedMemory) Search(ctx context.Context, query string, opts SearchOptions) ([]UnifiedResult, error) {
	key := fmt.Sprintf("%s\x00%s\x00%d\x00%v\x00%v", strings.Join(opts.Collections, ","), query, opts.K, opts.Rerank, opts.IncludeRelated)
	v, err, _ := m.searchGroup.Do(key, func() (any, error) {
		return m.search(ctx, query, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.([]UnifiedResult), nil
}

func (m *UnifiedMemory) search(ctx context.Context, query string, opts SearchOptions) ([]UnifiedResult, error) {
	start := time.Now()
	if opts.K <= 0 {
		opts.K = 10
	}
	alpha := opts.VectorWeight
	if alpha <= 0 {
		alpha = m.cfg.Search.RerankAlpha
	}

	plan := opts.Plan
	if plan == nil {
		cls := m.router.Classify(query)
		plan = &cls.Plan
		m.metrics.RecordRouterClassification(ctx, string(cls.Intent))
		if !opts.Rerank {
			opts.Rerank = plan.Rerank
		}
		if opts.GraphDepth == 0 {
			opts.GraphDepth = plan.GraphDepth
		}
	}

	collections := opts.Collections
	if len(collections) == 0 {
		collections = []string{m.cfg.Storage.DefaultCollection}
	}

	oversample := m.cfg.Search.Oversample
	if opts.Rerank {
		oversample = m.cfg.Search.RerankOversample
	}
	kPrime := opts.K * oversample

	type perCollection struct {
		collection string
		results    []vectorindex.Result
	}

	// Per-collection vector search is embarrassingly parallel -- each
	// collection owns its own index and embedding call -- so fan out
	// with errgroup rather than walking collections one at a time.
	// opts.AllowPartial controls whether one collection's failure
	// should cancel the group or just be dropped from the fused result.
	var (
		lists   []perCollection
		listsMu sync.Mutex
	)
	group, gctx := errgroup.WithContext(ctx)
	for _, name := range collections {
		name := name
		group.Go(func() error {
			h, err := m.resolveCollection(name, false)
			if err != nil {
				if opts.AllowPartial {
					return nil
				}
				return err
			}

			vec, err := m.embedder.EmbedOne(gctx, query, h.entry.Dimension)
			if err != nil {
				if opts.AllowPartial {
					return nil
				}
				return fmt.Errorf("search: %w: %v", ErrEmbeddingBackendUnavailable, err)
			}

			res, err := h.index.Search(vec, kPrime, opts.Filter)
			if err != nil {
				if opts.AllowPartial {
					m.logger.Warn(gctx, "dropping collection from partial search",
						zap.String("collection", name), zap.Error(err))
					return nil
				}
				return fmt.Errorf("search: %w: %v", ErrRetrievalFailed, err)
			}

			// Items Tick has evicted to the cold tier are no longer in the
			// live graph; search them by brute force so tiering never hides a hit.
			if h.cold != nil {
				coldRes, err := h.cold.ExactSearch(vec, kPrime, opts.Filter)
				if err != nil && !opts.AllowPartial {
					return fmt.Errorf("search: %w: %v", ErrRetrievalFailed, err)
				}
				res = append(res, coldRes...)
				sort.SliceStable(res, func(i, j int) bool { return res[i].Score > res[j].Score })
			}

			listsMu.Lock()
			lists = append(lists, perCollection{collection: name, results: res})
			listsMu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	candidates := map[string]*candidate{}
	for _, pc := range lists {
		for i, r := range pc.results {
			c := &candidate{
				nsID:        r.ID,
				collection:  pc.collection,
				vectorScore: r.Score,
				rank:        i + 1,
				item:        r,
			}
			candidates[r.ID] = c
		}
	}

	// graphScore defaults to neutral (1) rather than 0 when the graph
	// step is skipped entirely (includeRelated=false): an un-measured
	// dimension should not drag combinedScore down, only a measured-and-
	// poor one should. This is what makes the single-document round-
	// trip law (combinedScore >= 0.9 off a deterministic embed, with no
	// related nodes requested) hold with the default alpha.
	for _, c := range candidates {
		c.graphScore = 1
	}

	if opts.IncludeRelated && opts.GraphDepth > 0 {
		for _, c := range candidates {
			h, err := m.resolveCollection(c.collection, false)
			if err != nil {
				continue
			}
			reached, err := h.graph.Neighbours(c.nsID, "", graphstore.DirectionOut, opts.GraphDepth, m.cfg.Graph.MaxTraversalNodes)
			if err != nil {
				if errors.Is(err, graphstore.ErrTraversalBudgetExceeded) {
					continue
				}
				continue
			}
			maxRelated := m.cfg.Search.MaxExpectedNeighbours
			for i, rn := range reached {
				if i >= maxRelated {
					break
				}
				c.relatedNodes = append(c.relatedNodes, RelatedNode{ID: rn.Node.ID, Type: rn.Node.Type, Depth: rn.Depth})
			}
			c.graphScore = graphScoreFor(len(c.relatedNodes), maxRelated)
		}
	}

	// Step 3: reciprocal-rank fusion. This produces a per-id rank-based
	// score used only to break combinedScore/graphScore ties across
	// collections in the final sort (sortUnifiedResults) -- it does not
	// replace the real vectorScore a collection's index returned, which
	// is what step 4's combinedScore formula is defined over.
	fused := map[string]float64{}
	for id, c := range candidates {
		fused[id] += 1.0 / float64(c.rank+rrfK)
	}

	results := make([]UnifiedResult, 0, len(candidates))
	for id, c := range candidates {
		combined := float32(alpha)*c.vectorScore + float32(1-alpha)*c.graphScore
		results = append(results, UnifiedResult{
			ID:            id,
			Title:         fmt.Sprint(c.item.Metadata["title"]),
			Text:          fmt.Sprint(c.item.Metadata["text"]),
			Source:        fmt.Sprint(c.item.Metadata["source"]),
			VectorScore:   c.vectorScore,
			GraphScore:    c.graphScore,
			CombinedScore: combined,
			RelatedNodes:  c.relatedNodes,
			Metadata:      c.item.Metadata,
		})
	}

	if opts.Rerank {
		docs := make([]cognitive.Document, len(results))
		for i, r := range results {
			docs[i] = cognitive.Document{ID: r.ID, Content: r.Text, Score: r.CombinedScore}
		}
		scored, err := m.reranker.Rerank(ctx, query, docs, 0)
		if err == nil {
			byID := make(map[string]float32, len(scored))
			for _, s := range scored {
				byID[s.ID] = s.RerankerScore
			}
			for i := range results {
				if v, ok := byID[results[i].ID]; ok {
					results[i].CombinedScore = v
				}
			}
		}
	}

	sortUnifiedResults(results, fused)

	if opts.K < len(results) {
		results = results[:opts.K]
	}

	for i := range results {
		if h, err := m.resolveCollection(collectionOf(results[i].ID), false); err == nil {
			h.index.Touch(results[i].ID)
		}
	}

	m.metrics.RecordSearch(ctx, time.Since(start), len(results), opts.Rerank)
	m.logger.Debug(ctx, "search completed",
		zap.Int("result_count", len(results)), zap.Duration("elapsed", time.Since(start)), zap.Bool("reranked", opts.Rerank))

	return results, nil
}

// graphScoreFor implements spec.md §4.7 step 4's default graphScore:
// min(1, relatedNodeCount / maxExpectedNeighbours).
func graphScoreFor(count, maxExpected int) float32 {
	if maxExpected <= 0 {
		return 0
	}
	score := float32(count) / float32(maxExpected)
	if score > 1 {
		return 1
	}
	return score
}

// sortUnifiedResults applies spec.md §4.7 step 6: combinedScore desc,
// then higher graphScore, then step 3's cross-collection reciprocal-rank
// score (fused), then id ascending. Access count and recency are not
// consulted here.
func sortUnifiedResults(results []UnifiedResult, fused map[string]float64) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.GraphScore != b.GraphScore {
			return a.GraphScore > b.GraphScore
		}
		if fused[a.ID] != fused[b.ID] {
			return fused[a.ID] > fused[b.ID]
		}
		return a.ID < b.ID
	})
}

func collectionOf(nsID string) string {
	for i, r := range nsID {
		if r == ':' {
			return nsID[:i]
		}
	}
	return nsID
}
