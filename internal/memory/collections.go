package memory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noumenal/ckg/internal/registry"
)

// CollectionInfo is listCollections/createCollection's result shape
// (spec.md §4.7).
type CollectionInfo struct {
	Name      string
	Dimension int
	Metric    registry.Metric
	CreatedAt time.Time
	Metadata  map[string]string
}

func collectionInfoOf(e *registry.Entry) CollectionInfo {
	return CollectionInfo{
		Name:      e.Name,
		Dimension: e.Dimension,
		Metric:    e.Metric,
		CreatedAt: e.CreatedAt,
		Metadata:  e.Metadata,
	}
}

// CreateCollection registers a new collection and eagerly opens its
// stores, so the handle returned by resolveCollection on first use is
// already warm (spec.md §4.7 "createCollection").
func (m *UnifiedMemory) CreateCollection(name string, dimension int, metric registry.Metric, metadata map[string]string) (CollectionInfo, error) {
	entry, err := m.registry.Create(name, dimension, metric, metadata)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("createCollection %q: %w", name, err)
	}

	m.mu.Lock()
	handle, err := m.openCollection(entry)
	if err != nil {
		m.mu.Unlock()
		m.registry.Delete(name, "")
		return CollectionInfo{}, fmt.Errorf("createCollection %q: %w", name, err)
	}
	m.collections[name] = handle
	m.mu.Unlock()

	m.logger.Info(context.Background(), "created collection",
		zap.String("collection", name), zap.Int("dimension", dimension))
	return collectionInfoOf(entry), nil
}

// ListCollections returns every registered collection, opened or not
// (spec.md §4.7 "listCollections").
func (m *UnifiedMemory) ListCollections() []CollectionInfo {
	entries := m.registry.List()
	out := make([]CollectionInfo, len(entries))
	for i, e := range entries {
		out[i] = collectionInfoOf(e)
	}
	return out
}

// DeleteCollection removes a collection (spec.md §4.7
// "deleteCollection"). When migrateTo is non-empty, every document
// currently in name is re-inserted into migrateTo before name's
// storage root is removed; incident relationships are not carried
// over, since deleting name also discards its graph database wholesale
// and there is no destination edge to anchor them to beyond the
// migrated node itself.
func (m *UnifiedMemory) DeleteCollection(name, migrateTo string) error {
	if migrateTo != "" {
		if err := m.registry.ValidateMigrationTarget(name, migrateTo); err != nil {
			return fmt.Errorf("deleteCollection %q: %w", name, err)
		}
		if err := m.migrateDocuments(name, migrateTo); err != nil {
			return fmt.Errorf("deleteCollection %q: migrate to %q: %w", name, migrateTo, err)
		}
	}

	m.mu.Lock()
	h, open := m.collections[name]
	delete(m.collections, name)
	m.mu.Unlock()

	if open {
		h.graph.Close()
		h.cold.Close()
		h.index.Close()
		m.metrics.RecordCollectionsClosed(context.Background(), 1)
	}

	if err := m.registry.Delete(name, migrateTo); err != nil {
		return fmt.Errorf("deleteCollection %q: %w", name, err)
	}
	m.logger.Info(context.Background(), "deleted collection",
		zap.String("collection", name), zap.String("migrated_to", migrateTo))
	return nil
}

// migrateDocuments copies every vector item and its mirrored graph
// node from src into dst ahead of a deleteCollection migration. Items
// already namespaced under src keep their local id, re-namespaced
// under dst, so callers addressing a migrated document by its old
// local id find it unchanged at <dst>:<localID>.
func (m *UnifiedMemory) migrateDocuments(src, dst string) error {
	srcHandle, err := m.resolveCollection(src, false)
	if err != nil {
		return err
	}
	dstHandle, err := m.resolveCollection(dst, false)
	if err != nil {
		return err
	}

	srcHandle.writeMu.Lock()
	defer srcHandle.writeMu.Unlock()
	dstHandle.writeMu.Lock()
	defer dstHandle.writeMu.Unlock()

	for _, item := range srcHandle.index.Items() {
		localID := item.ID
		if i := indexOfColon(localID); i >= 0 {
			localID = localID[i+1:]
		}
		nsID := namespacedID(dst, localID)

		node, err := srcHandle.graph.GetNode(item.ID)
		if err != nil {
			return fmt.Errorf("migrate %q: read node: %w", item.ID, err)
		}

		item.ID = nsID
		if _, err := dstHandle.index.Insert(item); err != nil {
			return fmt.Errorf("migrate %q -> %q: vector insert: %w", localID, dst, err)
		}
		node.ID = nsID
		if err := dstHandle.graph.CreateNode(node); err != nil {
			dstHandle.index.Delete(nsID)
			return fmt.Errorf("migrate %q -> %q: graph node: %w", localID, dst, err)
		}
	}
	return nil
}

func indexOfColon(s string) int {
	for i, r := range s {
		if r == ':' {
			return i
		}
	}
	return -1
}
