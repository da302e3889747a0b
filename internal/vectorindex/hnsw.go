package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/noumenal/ckg/internal/registry"
)

// Index is a single collection's vector index: an HNSW graph plus the
// id mapping, tiering metadata, and hot-result cache that ride along
// with it. One Index exists per open collection.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	cfg    Config
	dim    int
	metric registry.Metric

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64
	items   map[string]*Item // metadata/tiering state, keyed by string id

	cache *lru.Cache[string, []Result]

	insertNanos, insertCount int64
	searchNanos, searchCount int64

	closed bool
}

// New creates an empty per-collection index.
func New(dim int, metric registry.Metric, cfg Config) (*Index, error) {
	graph := hnsw.NewGraph[uint64]()
	switch metric {
	case registry.MetricL2:
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	cache, err := lru.New[string, []Result](max(cfg.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: creating result cache: %v", ErrIndexUnavailable, err)
	}

	return &Index{
		graph:   graph,
		cfg:     cfg,
		dim:     dim,
		metric:  metric,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
		items:   make(map[string]*Item),
		cache:   cache,
	}, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Insert adds one item (spec.md §4.2 "insert").
func (ix *Index) Insert(item Item) (string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.insertLocked(item)
}

func (ix *Index) insertLocked(item Item) (string, error) {
	if ix.closed {
		return "", ErrIndexUnavailable
	}
	if len(item.Vector) != ix.dim {
		return "", fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(item.Vector), ix.dim)
	}
	if _, exists := ix.idToKey[item.ID]; exists {
		return "", fmt.Errorf("%w: id %q", ErrDuplicateID, item.ID)
	}

	vec := make([]float32, len(item.Vector))
	copy(vec, item.Vector)
	if ix.metric != registry.MetricL2 {
		normalize(vec)
	}

	start := time.Now()
	key := ix.nextKey
	ix.nextKey++
	ix.graph.Add(hnsw.MakeNode(key, vec))
	ix.insertNanos += time.Since(start).Nanoseconds()
	ix.insertCount++

	if item.Tier == "" {
		item.Tier = TierUntiered
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	stored := item
	stored.Vector = vec
	ix.idToKey[item.ID] = key
	ix.keyToID[key] = item.ID
	ix.items[item.ID] = &stored

	ix.cache.Purge()
	return item.ID, nil
}

// InsertBatchOutcome reports the per-item result of a batch insert
// (spec.md §4.2 "insertBatch" — "partial failure allowed, reported").
type InsertBatchOutcome struct {
	ID  string
	Err error
}

// InsertBatch inserts a homogeneous batch, continuing past per-item
// failures and reporting each outcome.
func (ix *Index) InsertBatch(items []Item) []InsertBatchOutcome {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	outcomes := make([]InsertBatchOutcome, len(items))
	for i, item := range items {
		_, err := ix.insertLocked(item)
		outcomes[i] = InsertBatchOutcome{ID: item.ID, Err: err}
	}
	return outcomes
}

// Search returns the k best matches for query, optionally filtered
// (spec.md §4.2 "search").
func (ix *Index) Search(query []float32, k int, filter *Filter) ([]Result, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil, ErrIndexUnavailable
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	if ix.graph.Len() == 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if ix.metric != registry.MetricL2 {
		normalize(q)
	}

	cacheKey := resultCacheKey(q, k, filter)
	results, hit := ix.cache.Get(cacheKey)
	if !hit {
		start := time.Now()
		results = ix.searchFiltered(q, k, filter)
		ix.searchNanos += time.Since(start).Nanoseconds()
		ix.searchCount++
		ix.cache.Add(cacheKey, results)
	}

	now := time.Now()
	for _, r := range results {
		if it, ok := ix.items[r.ID]; ok {
			it.AccessCount++
			it.LastAccessAt = now
		}
	}
	return results, nil
}

// searchFiltered over-samples the candidate set (default 2k, expanding
// to 8k) so filtering on metadata doesn't starve the result set (spec.md
// §4.2 "Filtering").
func (ix *Index) searchFiltered(q []float32, k int, filter *Filter) []Result {
	candidatePool := k * 2
	const maxPool = 8
	for mult := 2; ; mult *= 2 {
		nodes := ix.graph.Search(q, candidatePool)
		results := make([]Result, 0, len(nodes))
		for _, node := range nodes {
			id, ok := ix.keyToID[node.Key]
			if !ok {
				continue // lazily-deleted orphan
			}
			it := ix.items[id]
			if filter != nil && !filter.matches(it) {
				continue
			}
			dist := ix.graph.Distance(q, node.Value)
			results = append(results, Result{
				ID:       id,
				Score:    distanceToScore(dist, ix.metric),
				Metadata: it.Metadata,
				Tier:     it.Tier,
			})
		}
		sortResults(results, ix.items)
		if len(results) >= k || mult >= maxPool || candidatePool >= ix.graph.Len() {
			if len(results) > k {
				results = results[:k]
			}
			return results
		}
		candidatePool = k * mult * 2
	}
}

func sortResults(results []Result, items map[string]*Item) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ii, ij := items[results[i].ID], items[results[j].ID]
		if ii.AccessCount != ij.AccessCount {
			return ii.AccessCount > ij.AccessCount
		}
		if !ii.CreatedAt.Equal(ij.CreatedAt) {
			return ii.CreatedAt.After(ij.CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
}

// Delete removes an item (spec.md §4.2 "delete"). Uses lazy deletion:
// the node orphans in the HNSW graph (coder/hnsw cannot safely delete
// its last node) and is skipped on future searches via keyToID/idToKey.
func (ix *Index) Delete(id string) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key, exists := ix.idToKey[id]
	if !exists {
		return false, nil
	}
	delete(ix.idToKey, id)
	delete(ix.keyToID, key)
	delete(ix.items, id)
	ix.cache.Purge()
	return true, nil
}

// Touch increments an item's access count and refreshes its last-access
// timestamp (spec.md §4.7 search step 7, invariant 6 — monotonic access
// count). Deliberately does not purge the result cache: accessCount
// updates are allowed to be eventually consistent with concurrent
// searches (spec.md §5), so a stale cached count is not a correctness
// bug.
func (ix *Index) Touch(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if it, ok := ix.items[id]; ok {
		it.AccessCount++
		it.LastAccessAt = time.Now().UTC()
	}
}

// UpdateMetadata shallow-merges patch into the item's metadata (spec.md
// §4.2 "updateMetadata").
func (ix *Index) UpdateMetadata(id string, patch map[string]any) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	it, exists := ix.items[id]
	if !exists {
		return false, nil
	}
	if it.Metadata == nil {
		it.Metadata = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		it.Metadata[k] = v
	}
	ix.cache.Purge()
	return true, nil
}

// Stats reports per-tier counts and timing (spec.md §4.2 "stats").
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	counts := make(map[Tier]int, 4)
	for _, it := range ix.items {
		counts[it.Tier]++
	}

	var avgInsert, avgSearch int64
	if ix.insertCount > 0 {
		avgInsert = ix.insertNanos / ix.insertCount
	}
	if ix.searchCount > 0 {
		avgSearch = ix.searchNanos / ix.searchCount
	}

	return Stats{
		Dimension:      ix.dim,
		Metric:         ix.metric,
		CountByTier:    counts,
		TotalItems:     len(ix.items),
		OrphanCount:    ix.graph.Len() - len(ix.items),
		AvgInsertNanos: avgInsert,
		AvgSearchNanos: avgSearch,
	}
}

// Items returns a snapshot of every item currently in the index,
// whatever its tier; items that Tick has moved into a ColdStore are no
// longer in the index and are not included. Callers that need to move items between
// collections (deleteCollection's migration path) use this instead of
// re-deriving ids from the graph mirror, since a vector item can exist
// without ever having been reachable from a traversal.
func (ix *Index) Items() []Item {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Item, 0, len(ix.items))
	for _, it := range ix.items {
		out = append(out, *it)
	}
	return out
}

// Close releases index resources. It does not persist to disk; callers
// use Save first if they want durability.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.graph = nil
	return nil
}

// hnswSidecar persists the id mapping and tiering state alongside the
// exported graph (Aman-CERP-amanmcp/internal/store/hnsw.go's
// hnswMetadata pattern).
type hnswSidecar struct {
	IDToKey map[string]uint64
	NextKey uint64
	Items   map[string]*Item
	Dim     int
	Metric  registry.Metric
}

// Save persists the graph (vectors.idx) and its sidecar (vectors.idx.meta)
// with an atomic temp-file-then-rename, exactly as the teacher's
// HNSWStore.Save.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return ErrIndexUnavailable
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	if err := ix.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("exporting graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming index file: %w", err)
	}

	return ix.saveSidecar(path + ".meta")
}

func (ix *Index) saveSidecar(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating sidecar file: %w", err)
	}
	sidecar := hnswSidecar{
		IDToKey: ix.idToKey,
		NextKey: ix.nextKey,
		Items:   ix.items,
		Dim:     ix.dim,
		Metric:  ix.metric,
	}
	if err := gob.NewEncoder(f).Encode(sidecar); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing sidecar file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load populates ix from a previously Saved path.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrIndexUnavailable
	}

	if err := ix.loadSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("loading sidecar: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	if err := ix.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("importing graph: %w", err)
	}
	return nil
}

func (ix *Index) loadSidecar(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening sidecar file: %w", err)
	}
	defer f.Close()

	var sidecar hnswSidecar
	if err := gob.NewDecoder(f).Decode(&sidecar); err != nil {
		return fmt.Errorf("decoding sidecar: %w", err)
	}

	ix.idToKey = sidecar.IDToKey
	ix.nextKey = sidecar.NextKey
	ix.items = sidecar.Items
	ix.dim = sidecar.Dim
	ix.metric = sidecar.Metric
	ix.keyToID = make(map[uint64]string, len(ix.idToKey))
	for id, key := range ix.idToKey {
		ix.keyToID[key] = id
	}
	return nil
}

// resultCacheKey derives a cache key from the normalized query, k, and
// filter so identical repeated searches hit the hot-result cache (a
// performance aid only -- every write path Purges it, so staleness
// cannot leak into a correctness-relevant result).
func resultCacheKey(q []float32, k int, filter *Filter) string {
	h := fnv.New64a()
	buf := make([]byte, 4)
	for _, f := range q {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		h.Write(buf)
	}
	binary.LittleEndian.PutUint32(buf, uint32(k))
	h.Write(buf)
	if filter != nil {
		fmt.Fprintf(h, "%+v", *filter)
	}
	return fmt.Sprintf("%x", h.Sum64())
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore normalises a raw HNSW distance to a [0,1] score (spec.md
// §4.2 "Scoring"): higher is better for Cosine/Dot, and for Euclidean the
// distance is mapped via score = 1 / (1 + distance).
func distanceToScore(distance float32, metric registry.Metric) float32 {
	switch metric {
	case registry.MetricL2:
		return 1.0 / (1.0 + distance)
	default:
		// coder/hnsw's CosineDistance returns 1-cos(theta), range [0,2].
		score := 1.0 - distance/2.0
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		return score
	}
}
