package vectorindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/noumenal/ckg/internal/registry"
)

var coldBucket = []byte("cold_vectors")

// coldEntry is the gob-encoded value stored per id in the cold bucket.
type coldEntry struct {
	Vector   []float32
	Metadata map[string]any
	Item     Item
}

// ColdStore holds items reclassified to Tier Cold: removed from the
// live HNSW graph to bound memory, queryable only via brute-force exact
// search, grounded on the teacher's pkg/vectorstore/exact_search.go
// fallback for small collections.
type ColdStore struct {
	db     *bolt.DB
	metric registry.Metric
}

// OpenColdStore opens (creating if absent) the bbolt-backed cold tier
// at path.
func OpenColdStore(path string, metric registry.Metric) (*ColdStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening cold store: %v", ErrIndexUnavailable, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(coldBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating cold bucket: %v", ErrIndexUnavailable, err)
	}
	return &ColdStore{db: db, metric: metric}, nil
}

// Put moves an item into the cold store.
func (c *ColdStore) Put(item Item) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(coldEntry{Vector: item.Vector, Metadata: item.Metadata, Item: item}); err != nil {
		return fmt.Errorf("encoding cold entry: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(coldBucket).Put([]byte(item.ID), buf.Bytes())
	})
}

// Delete removes an item from the cold store, if present.
func (c *ColdStore) Delete(id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(coldBucket).Delete([]byte(id))
	})
}

// Get retrieves one cold item, or ok=false if absent.
func (c *ColdStore) Get(id string) (Item, bool, error) {
	var entry coldEntry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(coldBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&entry)
	})
	if err != nil {
		return Item{}, false, fmt.Errorf("reading cold entry: %w", err)
	}
	return entry.Item, found, nil
}

// ExactSearch performs brute-force cosine/L2 search over every item in
// the cold store, the fallback path the teacher's Service.ExactSearch
// uses for collections too small for its HNSW index to serve -- here
// used instead for items the tiering pass has evicted from the live
// graph to bound memory.
func (c *ColdStore) ExactSearch(query []float32, k int, filter *Filter) ([]Result, error) {
	type scored struct {
		item  Item
		score float32
	}
	var candidates []scored

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(coldBucket)
		return b.ForEach(func(k, v []byte) error {
			var entry coldEntry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&entry); err != nil {
				return err
			}
			if filter != nil && !filter.matches(&entry.Item) {
				return nil
			}
			score := exactScore(query, entry.Vector, c.metric)
			candidates = append(candidates, scored{item: entry.Item, score: score})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scanning cold store: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]Result, len(candidates))
	for i, cd := range candidates {
		results[i] = Result{ID: cd.item.ID, Score: cd.score, Metadata: cd.item.Metadata, Tier: TierCold}
	}
	return results, nil
}

func exactScore(a, b []float32, metric registry.Metric) float32 {
	if len(a) != len(b) {
		return 0
	}
	switch metric {
	case registry.MetricL2:
		var sumSq float64
		for i := range a {
			d := float64(a[i] - b[i])
			sumSq += d * d
		}
		return float32(1.0 / (1.0 + sumSq))
	case registry.MetricDot:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return float32(dot)
	default:
		var dot, magA, magB float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			magA += float64(a[i]) * float64(a[i])
			magB += float64(b[i]) * float64(b[i])
		}
		if magA == 0 || magB == 0 {
			return 0
		}
		cos := dot / (math.Sqrt(magA) * math.Sqrt(magB))
		return float32((cos + 1) / 2)
	}
}

// Close closes the underlying bbolt database.
func (c *ColdStore) Close() error {
	return c.db.Close()
}
