package memory

import (
	"fmt"
	"time"

	"github.com/noumenal/ckg/internal/graphstore"
)

// AddRelationship creates a graph edge between two documents, validating
// endpoint existence (spec.md §4.7 "addRelationship").
func (m *UnifiedMemory) AddRelationship(collection, fromID, toID, edgeType string, properties map[string]any) error {
	h, err := m.resolveCollection(collection, false)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if err := h.graph.CreateEdge(graphstore.Edge{
		From:       fromID,
		To:         toID,
		Type:       edgeType,
		Properties: properties,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("addRelationship %s->%s: %w: %v", fromID, toID, ErrStorageFailure, err)
	}
	return nil
}

// CreateGraphNode upserts a graph-only node that has no vector mirror
// (e.g. a `Section` node from C8's markdown heading hierarchy) --
// invariant 1's vector/graph parity applies only to `Document` nodes
// (spec.md §3).
func (m *UnifiedMemory) CreateGraphNode(collection string, node graphstore.Node) error {
	h, err := m.resolveCollection(collection, true)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if err := h.graph.CreateNode(node); err != nil {
		return fmt.Errorf("createGraphNode %q: %w: %v", node.ID, ErrStorageFailure, err)
	}
	return nil
}

// FindRelated is a thin wrapper over graph neighbour traversal,
// returning the same UnifiedResult shape as Search for document nodes
// (spec.md §4.7 "findRelated").
func (m *UnifiedMemory) FindRelated(collection, id string, depth int, edgeTypes []string) ([]UnifiedResult, error) {
	if depth <= 0 {
		depth = 1
	}
	h, err := m.resolveCollection(collection, false)
	if err != nil {
		return nil, err
	}

	edgeType := ""
	if len(edgeTypes) == 1 {
		edgeType = edgeTypes[0]
	}

	reached, err := h.graph.Neighbours(id, edgeType, graphstore.DirectionOut, depth, m.cfg.Graph.MaxTraversalNodes)
	if err != nil {
		return nil, fmt.Errorf("findRelated %q: %w: %v", id, ErrRetrievalFailed, err)
	}

	results := make([]UnifiedResult, 0, len(reached))
	for _, r := range reached {
		if r.Node.Type != "Document" {
			continue
		}
		item, ok, err := h.cold.Get(r.Node.ID)
		title, text, source := "", "", ""
		if ok && err == nil {
			title = fmt.Sprint(item.Metadata["title"])
			text = fmt.Sprint(item.Metadata["text"])
			source = fmt.Sprint(item.Metadata["source"])
		} else {
			title = fmt.Sprint(r.Node.Properties["title"])
			source = fmt.Sprint(r.Node.Properties["source"])
		}
		results = append(results, UnifiedResult{
			ID:       r.Node.ID,
			Title:    title,
			Text:     text,
			Source:   source,
			Metadata: r.Node.Properties,
		})
	}
	return results, nil
}

// GraphQuery is a validated passthrough to C3's Cypher-subset executor
// (spec.md §4.7 "graphQuery").
func (m *UnifiedMemory) GraphQuery(collection, cypher string) ([]graphstore.Row, error) {
	h, err := m.resolveCollection(collection, false)
	if err != nil {
		return nil, err
	}
	rows, err := h.graph.Query(cypher, m.cfg.Graph.MaxTraversalNodes)
	if err != nil {
		return nil, fmt.Errorf("graphQuery: %w: %v", ErrRetrievalFailed, err)
	}
	return rows, nil
}
