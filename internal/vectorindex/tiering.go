package vectorindex

import "time"

// Tick runs one tiering classification pass (spec.md §4.2 "Tiering"):
// each item's tier is reclassified from its accessCount/lastAccessAt,
// and items falling to Cold are evicted from the live HNSW graph into
// cold, bounding live-graph memory at the cost of brute-force search
// for those items. Tier never changes search correctness, only where a
// hit is served from.
//
// cold may be nil, in which case Cold items are reclassified in place
// (still searchable through the live graph) -- useful for collections
// too small to bother evicting, or when no cold store is configured.
//
// Returns the number of items evicted to cold, for callers that report
// tiering activity (e.g. internal/telemetry).
func (ix *Index) Tick(now time.Time, cold *ColdStore) (int, error) {
	ix.mu.Lock()
	toEvict := ix.classifyLocked(now)
	ix.mu.Unlock()

	if cold == nil || len(toEvict) == 0 {
		return 0, nil
	}

	for _, it := range toEvict {
		if err := cold.Put(it); err != nil {
			return 0, err
		}
		if _, err := ix.Delete(it.ID); err != nil {
			return 0, err
		}
	}

	if ix.orphanRatio() > ix.cfg.OrphanCompactionRatio {
		if err := ix.compact(); err != nil {
			return len(toEvict), err
		}
	}
	return len(toEvict), nil
}

// classifyLocked reassigns every item's tier and returns the items newly
// classified Cold, for the caller to evict. Caller holds ix.mu.
func (ix *Index) classifyLocked(now time.Time) []Item {
	var toEvict []Item
	for _, it := range ix.items {
		since := now.Sub(it.LastAccessAt)
		if it.LastAccessAt.IsZero() {
			since = now.Sub(it.CreatedAt)
		}

		var tier Tier
		switch {
		case it.AccessCount >= ix.cfg.HotThreshold && since <= ix.cfg.HotWindow:
			tier = TierHot
		case since <= ix.cfg.WarmWindow:
			tier = TierWarm
		default:
			tier = TierCold
		}

		wasHotOrWarm := it.Tier != TierCold
		it.Tier = tier
		if tier == TierCold && wasHotOrWarm {
			toEvict = append(toEvict, *it)
		}
	}
	return toEvict
}

func (ix *Index) orphanRatio() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	total := ix.graph.Len()
	if total == 0 {
		return 0
	}
	orphans := total - len(ix.items)
	return float64(orphans) / float64(total)
}

// compact rebuilds the HNSW graph from the live (non-orphaned) items,
// discarding lazily-deleted nodes. Grounded on the teacher's Stats/orphan
// accounting (Aman-CERP-amanmcp/internal/store/hnsw.go), which tracks
// orphans for exactly this decision but leaves the rebuild itself to the
// caller; ckg performs it here during the periodic tick.
func (ix *Index) compact() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	fresh, err := New(ix.dim, ix.metric, ix.cfg)
	if err != nil {
		return err
	}
	for _, it := range ix.items {
		if _, err := fresh.insertLocked(*it); err != nil {
			return err
		}
	}

	ix.graph = fresh.graph
	ix.idToKey = fresh.idToKey
	ix.keyToID = fresh.keyToID
	ix.nextKey = fresh.nextKey
	ix.cache.Purge()
	return nil
}
