// Package graphstore implements the Graph Store (C3): a persisted
// property graph over bbolt with a Cypher-subset query surface,
// grounded on evalgo-org-eve/db/bolt/bolt.go's bucket/JSON-value idiom.
package graphstore

import (
	"fmt"
	"time"

	"github.com/noumenal/ckg/internal/ckgerr"
)

// Node is a graph node (spec.md §3): type is an open set
// (Document/Section/Concept/Tag/...), properties are JSON-serialisable.
// A Document node shares its id with its corresponding vector item
// (unified-identity invariant).
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Edge is a directed graph edge (spec.md §3). Parallel edges of the
// same type between the same endpoints are idempotent: a second
// insertion updates properties rather than duplicating the edge.
type Edge struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// edgeKey derives the bbolt key for an edge: idempotent parallel edges
// of the same type between the same endpoints share a key.
func edgeKey(from, to, typ string) string {
	return from + "\x00" + typ + "\x00" + to
}

// Direction constrains neighbour traversal.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// Stats reports node/edge counts (spec.md §4.3 "stats()").
type Stats struct {
	NodeCount int
	EdgeCount int
	ByType    map[string]int
}

// Errors wrap the matching ckgerr.Kind so callers can branch on kind
// without caring about the leaf sentinel.
var (
	ErrNodeNotFound            = fmt.Errorf("node not found: %w", ckgerr.ErrNotFound)
	ErrEdgeEndpointMissing     = fmt.Errorf("edge endpoint missing: %w", ckgerr.ErrInvalidInput)
	ErrTraversalBudgetExceeded = fmt.Errorf("traversal budget exceeded: %w", ckgerr.ErrRetrievalFailed)
	ErrStoreUnavailable        = fmt.Errorf("graph store unavailable: %w", ckgerr.ErrBackend)
	ErrInvalidQuery            = fmt.Errorf("invalid query: %w", ckgerr.ErrInvalidInput)
)
