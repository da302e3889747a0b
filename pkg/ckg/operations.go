package ckg

import (
	"context"
	"time"
)

// CreateCollection registers and opens a new collection (spec.md §6
// "createCollection").
func (e *Engine) CreateCollection(name string, dimension int, metric Metric, metadata map[string]string) (CollectionInfo, error) {
	return e.memory.CreateCollection(name, dimension, metric, metadata)
}

// DeleteCollection removes a collection, optionally migrating its
// documents into migrateTo first (spec.md §6 "deleteCollection").
func (e *Engine) DeleteCollection(name, migrateTo string) error {
	return e.memory.DeleteCollection(name, migrateTo)
}

// ListCollections returns every registered collection (spec.md §6
// "listCollections").
func (e *Engine) ListCollections() []CollectionInfo {
	return e.memory.ListCollections()
}

// AddDocument embeds and stores one document, mirroring it into the
// graph (spec.md §6 "addDocument").
func (e *Engine) AddDocument(ctx context.Context, doc Document, collection string) (string, error) {
	return e.memory.AddDocument(ctx, doc, collection)
}

// AddDocuments is the batched variant of AddDocument; each document
// succeeds or fails independently (spec.md §6 "addDocuments").
func (e *Engine) AddDocuments(ctx context.Context, docs []Document, collection string) []DocumentOutcome {
	return e.memory.AddDocuments(ctx, docs, collection)
}

// DeleteDocument removes a document from both the vector index and
// the graph (spec.md §6 "deleteDocument").
func (e *Engine) DeleteDocument(id, collection string) error {
	return e.memory.DeleteDocument(id, collection)
}

// Search runs the unified hybrid retrieval algorithm across one or
// more collections (spec.md §6 "search").
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]UnifiedResult, error) {
	return e.memory.Search(ctx, query, opts)
}

// AddRelationship creates a graph edge between two documents (spec.md
// §6 "addRelationship").
func (e *Engine) AddRelationship(collection, fromID, toID, edgeType string, properties map[string]any) error {
	return e.memory.AddRelationship(collection, fromID, toID, edgeType, properties)
}

// FindRelated traverses the graph outward from id (spec.md §6
// "findRelated").
func (e *Engine) FindRelated(collection, id string, depth int, edgeTypes []string) ([]UnifiedResult, error) {
	return e.memory.FindRelated(collection, id, depth, edgeTypes)
}

// GraphQuery executes a Cypher-subset query against a collection's
// graph (spec.md §6 "graphQuery").
func (e *Engine) GraphQuery(collection, cypher string) ([]GraphRow, error) {
	return e.memory.GraphQuery(collection, cypher)
}

// BeginTrajectory starts a new reasoning trajectory (spec.md §6
// "beginTrajectory").
func (e *Engine) BeginTrajectory(query, route string) (string, error) {
	return e.memory.BeginTrajectory(query, route)
}

// RecordStep appends a reasoning step to an in-progress trajectory
// (spec.md §6 "recordStep").
func (e *Engine) RecordStep(trajectoryID, text string, reward float64) error {
	return e.memory.RecordStep(trajectoryID, text, reward)
}

// EndTrajectory completes a trajectory with its overall quality,
// quality ∈ [0,1] (spec.md §6 "endTrajectory(trajectoryId, quality)").
func (e *Engine) EndTrajectory(trajectoryID string, quality float64) error {
	return e.memory.EndTrajectory(trajectoryID, quality)
}

// FindPatterns returns the reasoning patterns nearest to query (spec.md
// §6 "findPatterns").
func (e *Engine) FindPatterns(query string, k int) ([]Match, error) {
	return e.memory.FindPatterns(query, k)
}

// GetStats returns composite stats across every opened collection
// (spec.md §6 "getStats").
func (e *Engine) GetStats() (Stats, error) {
	return e.memory.GetStats()
}

// Tick drives the engine's background passes: tier reclassification,
// compaction, and pattern refitting (spec.md §6 "tick()"). Callers
// embedding ckg own the scheduling; a low-frequency goroutine calling
// this once a minute matches spec.md §5's single-process model.
func (e *Engine) Tick(now time.Time) error {
	return e.memory.Tick(now)
}
