// Package vectorindex implements the Vector Index (C2): a per-collection
// HNSW approximate nearest-neighbour index with metadata filtering and
// recency/frequency tiering, built on github.com/coder/hnsw the way
// Aman-CERP-amanmcp/internal/store/hnsw.go builds its HNSWStore.
package vectorindex

import (
	"fmt"
	"time"

	"github.com/noumenal/ckg/internal/ckgerr"
	"github.com/noumenal/ckg/internal/registry"
)

// Tier classifies an item by recency/frequency of access. Tier is
// advisory: it drives eviction and serialization strategy, never search
// correctness (spec.md §4.2).
type Tier string

const (
	TierUntiered Tier = "untiered"
	TierHot      Tier = "hot"
	TierWarm     Tier = "warm"
	TierCold     Tier = "cold"
)

// Config parameterises the HNSW graph and the tiering policy.
type Config struct {
	M              int
	EfConstruction int
	EfSearch       int

	// HotThreshold is the access count (within HotWindow) at which an
	// item is classified Hot.
	HotThreshold int
	HotWindow    time.Duration
	WarmWindow   time.Duration

	// OrphanCompactionRatio triggers a graph rebuild once lazily-deleted
	// orphans exceed this fraction of total graph nodes.
	OrphanCompactionRatio float64

	// CacheSize bounds the hot-result LRU cache entry count.
	CacheSize int
}

// DefaultConfig returns the spec's documented defaults: M=16,
// efConstruction=200, efSearch=64 (spec.md §4.2).
func DefaultConfig() Config {
	return Config{
		M:                     16,
		EfConstruction:        200,
		EfSearch:              64,
		HotThreshold:          5,
		HotWindow:             7 * 24 * time.Hour,
		WarmWindow:            30 * 24 * time.Hour,
		OrphanCompactionRatio: 0.3,
		CacheSize:             256,
	}
}

// Item is a vector entry as carried through insert/search (spec.md §3).
type Item struct {
	ID           string
	Vector       []float32
	Metadata     map[string]any
	Tier         Tier
	AccessCount  int
	LastAccessAt time.Time
	CreatedAt    time.Time
}

// Result is one ranked hit from search, normalised to [0,1] (spec.md
// §4.2 "Scoring").
type Result struct {
	ID       string
	Score    float32
	Metadata map[string]any
	Tier     Tier
}

// Filter is a metadata predicate applied after approximate retrieval
// (spec.md §4.2 "Filtering").
type Filter struct {
	Source         string
	Category       string
	Tags           []string
	DateFrom       time.Time
	DateTo         time.Time
	MinAccessCount int
	Tier           Tier
	IDPrefix       string
}

func (f *Filter) empty() bool {
	return f == nil || (f.Source == "" && f.Category == "" && len(f.Tags) == 0 &&
		f.DateFrom.IsZero() && f.DateTo.IsZero() && f.MinAccessCount == 0 &&
		f.Tier == "" && f.IDPrefix == "")
}

func (f *Filter) matches(it *Item) bool {
	if f.empty() {
		return true
	}
	if f.Source != "" && fmt.Sprint(it.Metadata["source"]) != f.Source {
		return false
	}
	if f.Category != "" && fmt.Sprint(it.Metadata["category"]) != f.Category {
		return false
	}
	if len(f.Tags) > 0 && !hasAllTags(it.Metadata["tags"], f.Tags) {
		return false
	}
	if !f.DateFrom.IsZero() && it.CreatedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && it.CreatedAt.After(f.DateTo) {
		return false
	}
	if f.MinAccessCount > 0 && it.AccessCount < f.MinAccessCount {
		return false
	}
	if f.Tier != "" && it.Tier != f.Tier {
		return false
	}
	if f.IDPrefix != "" && !hasPrefix(it.ID, f.IDPrefix) {
		return false
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func hasAllTags(raw any, want []string) bool {
	tags, ok := raw.([]string)
	if !ok {
		return false
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// Stats reports per-tier counts and timing (spec.md §4.2 "stats()").
type Stats struct {
	Dimension      int
	Metric         registry.Metric
	CountByTier    map[Tier]int
	TotalItems     int
	OrphanCount    int
	AvgInsertNanos int64
	AvgSearchNanos int64
}

// Errors wrap the matching ckgerr.Kind so callers can branch on kind
// without caring about the leaf sentinel.
var (
	ErrDuplicateID       = fmt.Errorf("duplicate id: %w", ckgerr.ErrConflict)
	ErrDimensionMismatch = fmt.Errorf("vector dimension mismatch: %w", ckgerr.ErrInvalidInput)
	ErrIndexUnavailable  = fmt.Errorf("index unavailable: %w", ckgerr.ErrBackend)
	ErrItemNotFound      = fmt.Errorf("item not found: %w", ckgerr.ErrNotFound)
)
