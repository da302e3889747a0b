package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/registry"
	"github.com/noumenal/ckg/internal/vectorindex"
)

// CollectionStats rolls up C2/C3/C4 stats for one collection.
type CollectionStats struct {
	Registry registry.Stats
	Vector   vectorindex.Stats
	Graph    graphstore.Stats
}

// Stats is the composite getStats() result (spec.md §4.7).
type Stats struct {
	Collections map[string]CollectionStats
	Patterns    int
}

// GetStats returns composite stats for every opened collection plus
// the cognitive engine's pattern count.
func (m *UnifiedMemory) GetStats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Stats{Collections: make(map[string]CollectionStats, len(m.collections))}
	if m.patterns != nil {
		out.Patterns = m.patterns.Count()
	}
	for name, h := range m.collections {
		regStats, err := m.registry.Stats(name)
		if err != nil {
			return Stats{}, fmt.Errorf("getStats %q: %w", name, err)
		}
		graphStats, err := h.graph.Stats()
		if err != nil {
			return Stats{}, fmt.Errorf("getStats %q: %w", name, err)
		}
		out.Collections[name] = CollectionStats{
			Registry: regStats,
			Vector:   h.index.Stats(),
			Graph:    graphStats,
		}
	}
	return out, nil
}

// Tick drives the background passes spec.md §4.7 names: tier
// reclassification, trajectory-derived pattern clustering, and
// compaction. It is safe to call from a single low-priority scheduler
// goroutine (spec.md §5) since every store operation it touches
// already serialises itself.
func (m *UnifiedMemory) Tick(now time.Time) error {
	m.mu.RLock()
	handles := make([]*collectionHandle, 0, len(m.collections))
	for _, h := range m.collections {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	for _, h := range handles {
		evicted, err := h.index.Tick(now, h.cold)
		if err != nil {
			return fmt.Errorf("tick: vector index: %w", err)
		}
		m.metrics.RecordTierEvictions(context.Background(), h.entry.Name, evicted)
	}

	if m.cognates != nil && m.patterns != nil {
		completed, err := m.cognates.ListCompleted()
		if err == nil && len(completed) > 0 {
			_ = m.patterns.Fit(completed) // best-effort: pattern refresh never aborts tick
		}
	}

	return nil
}

// Close performs an orderly shutdown, flushing and releasing every
// open collection's handles (spec.md §4.7 "close()").
func (m *UnifiedMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, h := range m.collections {
		if err := h.graph.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %q: graph: %w", name, err)
		}
		if err := h.cold.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %q: cold: %w", name, err)
		}
		if err := h.index.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %q: index: %w", name, err)
		}
	}
	m.metrics.RecordCollectionsClosed(context.Background(), len(m.collections))
	m.collections = make(map[string]*collectionHandle)

	if m.rootLock != nil {
		if err := m.rootLock.Release(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close: release root lock: %w", err)
		}
	}
	return firstErr
}
