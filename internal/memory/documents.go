package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/store"
	"github.com/noumenal/ckg/internal/vectorindex"
)

func documentMetadata(doc Document, collection string) map[string]any {
	meta := map[string]any{
		"text":       doc.Text,
		"title":      doc.Title,
		"source":     doc.Source,
		"category":   doc.Category,
		"tags":       doc.Tags,
		"collection": collection,
	}
	if doc.Timestamp.IsZero() {
		meta["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	} else {
		meta["timestamp"] = doc.Timestamp.Format(time.RFC3339)
	}
	for k, v := range doc.Extra {
		meta[k] = v
	}
	return meta
}

func nodeProperties(doc Document) map[string]any {
	props := map[string]any{
		"title":    doc.Title,
		"source":   doc.Source,
		"category": doc.Category,
		"tags":     doc.Tags,
	}
	for k, v := range doc.Extra {
		props[k] = v
	}
	return props
}

// AddDocument implements spec.md §4.7's addDocument algorithm: embed,
// namespace the id, insert the vector item, create the mirrored graph
// node, and roll back the vector side if the graph side fails so
// invariant 1 (unified identity) holds on return.
func (m *UnifiedMemory) AddDocument(ctx context.Context, doc Document, collection string) (string, error) {
	h, err := m.resolveCollection(collection, true)
	if err != nil {
		return "", err
	}
	collection = h.entry.Name

	vec, err := m.embedder.EmbedOne(ctx, doc.Text, h.entry.Dimension)
	if err != nil {
		return "", fmt.Errorf("addDocument: %w: %v", ErrEmbeddingBackendUnavailable, err)
	}

	localID := doc.ID
	if localID == "" {
		localID = uuid.NewString()
	}
	nsID := namespacedID(collection, localID)

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	now := time.Now().UTC()
	item := vectorindex.Item{
		ID:           nsID,
		Vector:       vec,
		Metadata:     documentMetadata(doc, collection),
		Tier:         vectorindex.TierUntiered,
		CreatedAt:    now,
		LastAccessAt: now,
	}
	node := graphstore.Node{
		ID:         nsID,
		Type:       "Document",
		Properties: nodeProperties(doc),
		CreatedAt:  now,
	}

	txn, err := h.journal.Begin(collection, store.OpAddDocument, nsID, &item, &node)
	if err != nil {
		return "", fmt.Errorf("addDocument %q: %w: %v", nsID, ErrStorageFailure, err)
	}

	// Fixed lock ordering (vector, graph) per spec.md §5: the vector
	// index is always mutated before the graph store on the write
	// path, so two concurrent transactions can never acquire these
	// stores' internal locks in opposite orders.
	if _, err := h.index.Insert(item); err != nil {
		h.journal.Discard(txn.ID)
		m.metrics.RecordDocumentError(ctx, collection, "add_document")
		m.logger.Error(ctx, "vector insert failed", zap.String("id", nsID), zap.Error(err))
		if errors.Is(err, vectorindex.ErrDuplicateID) {
			return "", fmt.Errorf("addDocument %q: %w", nsID, ErrDuplicateID)
		}
		return "", fmt.Errorf("addDocument %q: %w: %v", nsID, ErrStorageFailure, err)
	}
	h.journal.MarkVectorCommitted(txn)

	if err := h.graph.CreateNode(node); err != nil {
		// Compensating action: the graph side failed, so the vector
		// side must be reverted to preserve invariant 1.
		h.index.Delete(nsID)
		h.journal.Discard(txn.ID)
		m.metrics.RecordDocumentError(ctx, collection, "add_document")
		m.logger.Error(ctx, "graph node create failed, vector insert rolled back",
			zap.String("id", nsID), zap.Error(err))
		return "", fmt.Errorf("addDocument %q: %w: %v", nsID, ErrStorageFailure, err)
	}
	h.journal.MarkGraphCommitted(txn)
	h.journal.Commit(txn)
	m.metrics.RecordDocumentAdded(ctx, collection)

	return nsID, nil
}

// DocumentOutcome reports the per-item result of AddDocuments: each
// document is its own atomic unit, so a batch never fails as a whole
// (spec.md §4.7).
type DocumentOutcome struct {
	ID  string
	Err error
}

// AddDocuments is the batched variant of AddDocument.
func (m *UnifiedMemory) AddDocuments(ctx context.Context, docs []Document, collection string) []DocumentOutcome {
	outcomes := make([]DocumentOutcome, len(docs))
	for i, doc := range docs {
		id, err := m.AddDocument(ctx, doc, collection)
		outcomes[i] = DocumentOutcome{ID: id, Err: err}
	}
	return outcomes
}

// DeleteDocument implements spec.md §4.7's deleteDocument algorithm:
// remove incident edges and the graph node (one cascading operation in
// internal/graphstore), then remove the vector item.
func (m *UnifiedMemory) DeleteDocument(id, collection string) error {
	h, err := m.resolveCollection(collection, false)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	txn, err := h.journal.Begin(h.entry.Name, store.OpDeleteDocument, id, nil, nil)
	if err != nil {
		return fmt.Errorf("deleteDocument %q: %w: %v", id, ErrStorageFailure, err)
	}

	if err := h.graph.DeleteNode(id); err != nil && !errors.Is(err, graphstore.ErrNodeNotFound) {
		h.journal.Discard(txn.ID)
		m.metrics.RecordDocumentError(context.Background(), h.entry.Name, "delete_document")
		m.logger.Error(context.Background(), "graph node delete failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("deleteDocument %q: %w: %v", id, ErrStorageFailure, err)
	}
	h.journal.MarkGraphCommitted(txn)

	if _, err := h.index.Delete(id); err != nil {
		// The graph side already committed; a crash here leaves the
		// transaction record on disk with GraphCommitted set, which
		// Recover redoes on next open by deleting the vector item
		// again (Delete is idempotent).
		m.metrics.RecordDocumentError(context.Background(), h.entry.Name, "delete_document")
		m.logger.Error(context.Background(), "vector delete failed after graph commit",
			zap.String("id", id), zap.Error(err))
		return fmt.Errorf("deleteDocument %q: %w: %v", id, ErrStorageFailure, err)
	}
	h.journal.MarkVectorCommitted(txn)
	h.journal.Commit(txn)
	m.metrics.RecordDocumentDeleted(context.Background(), h.entry.Name)

	if h.cold != nil {
		h.cold.Delete(id)
	}

	return nil
}
