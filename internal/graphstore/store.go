package graphstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	nodesBucket     = []byte("nodes")
	edgesOutBucket  = []byte("edges_out")  // key: from\x00type\x00to -> Edge JSON
	edgesInBucket   = []byte("edges_in")   // key: to\x00type\x00from -> Edge JSON
	typeIndexBucket = []byte("type_index") // key: type\x00id -> nil (hash index on (type,id))
)

// Store is a persisted property graph for one collection.
type Store struct {
	mu sync.RWMutex
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt-backed graph at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening graph store: %v", ErrStoreUnavailable, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{nodesBucket, edgesOutBucket, edgesInBucket, typeIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating buckets: %v", ErrStoreUnavailable, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// CreateNode upserts a node (spec.md §4.3 "createNode").
func (s *Store) CreateNode(n Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling node: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(nodesBucket).Put([]byte(n.ID), data); err != nil {
			return err
		}
		return tx.Bucket(typeIndexBucket).Put([]byte(n.Type+"\x00"+n.ID), nil)
	})
}

// GetNode returns a node by id (spec.md §4.3 "getNode").
func (s *Store) GetNode(id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n Node
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(nodesBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &n)
	})
	if err != nil {
		return Node{}, fmt.Errorf("reading node: %w", err)
	}
	if !found {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

func (s *Store) nodeExists(tx *bolt.Tx, id string) bool {
	return tx.Bucket(nodesBucket).Get([]byte(id)) != nil
}

// FindNodes returns every node of typ satisfying predicate (spec.md
// §4.3 "findNodes"), using the hash index on (type, id). An empty typ
// matches nodes of any type.
func (s *Store) FindNodes(typ string, predicate func(Node) bool) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Node
	err := s.db.View(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(nodesBucket)

		if typ == "" {
			return nodes.ForEach(func(_, v []byte) error {
				var n Node
				if err := json.Unmarshal(v, &n); err != nil {
					return err
				}
				if predicate == nil || predicate(n) {
					results = append(results, n)
				}
				return nil
			})
		}

		idx := tx.Bucket(typeIndexBucket)
		cursor := idx.Cursor()
		prefix := []byte(typ + "\x00")
		for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
			id := bytes.TrimPrefix(k, prefix)
			v := nodes.Get(id)
			if v == nil {
				continue
			}
			var n Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if predicate == nil || predicate(n) {
				results = append(results, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning nodes: %w", err)
	}
	return results, nil
}

// DeleteNode removes a node and, cascading, every edge incident to it
// (spec.md §4.3 "deleteNode").
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(nodesBucket)
		v := nodes.Get([]byte(id))
		if v == nil {
			return nil
		}
		var n Node
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		if err := nodes.Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(typeIndexBucket).Delete([]byte(n.Type + "\x00" + id)); err != nil {
			return err
		}
		return s.cascadeDeleteEdges(tx, id)
	})
}

func (s *Store) cascadeDeleteEdges(tx *bolt.Tx, id string) error {
	out := tx.Bucket(edgesOutBucket)
	in := tx.Bucket(edgesInBucket)

	var toDelete []string
	outPrefix := []byte(id + "\x00")
	c := out.Cursor()
	for k, _ := c.Seek(outPrefix); k != nil && bytes.HasPrefix(k, outPrefix); k, _ = c.Next() {
		toDelete = append(toDelete, string(k))
	}
	for _, k := range toDelete {
		if err := out.Delete([]byte(k)); err != nil {
			return err
		}
		if err := in.Delete([]byte(mirrorKey(k))); err != nil {
			return err
		}
	}

	// edges_in is keyed to\x00type\x00from, so edges targeting id share
	// the same id+"\x00" prefix there.
	toDelete = toDelete[:0]
	inPrefix := []byte(id + "\x00")
	c = in.Cursor()
	for k, _ := c.Seek(inPrefix); k != nil && bytes.HasPrefix(k, inPrefix); k, _ = c.Next() {
		toDelete = append(toDelete, string(k))
	}
	for _, k := range toDelete {
		if err := in.Delete([]byte(k)); err != nil {
			return err
		}
		if err := out.Delete([]byte(mirrorKey(k))); err != nil {
			return err
		}
	}
	return nil
}

// mirrorKey converts an edges_out key (from\x00type\x00to) to its
// edges_in counterpart (to\x00type\x00from), and vice versa (the
// format is symmetric under swapping the outer two fields).
func mirrorKey(k []byte) []byte {
	parts := bytes.SplitN(k, []byte("\x00"), 3)
	if len(parts) != 3 {
		return k
	}
	return bytes.Join([][]byte{parts[2], parts[1], parts[0]}, []byte("\x00"))
}

// CreateEdge upserts an edge (spec.md §4.3 "createEdge"). Parallel
// edges of the same type between the same endpoints update properties
// idempotently rather than duplicating (spec.md §3 edge validity note).
func (s *Store) CreateEdge(e Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if !s.nodeExists(tx, e.From) || !s.nodeExists(tx, e.To) {
			return fmt.Errorf("%w: %s -> %s", ErrEdgeEndpointMissing, e.From, e.To)
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling edge: %w", err)
		}
		outKey := edgeKey(e.From, e.To, e.Type)
		inKey := edgeKey(e.To, e.From, e.Type)
		if err := tx.Bucket(edgesOutBucket).Put([]byte(outKey), data); err != nil {
			return err
		}
		return tx.Bucket(edgesInBucket).Put([]byte(inKey), data)
	})
}

// Edge returns one edge by its endpoints and type, if present.
func (s *Store) Edge(from, to, typ string) (Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Edge
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(edgesOutBucket).Get([]byte(edgeKey(from, to, typ)))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	return e, found
}

// DeleteEdge removes one edge (spec.md §4.3 "deleteEdge").
func (s *Store) DeleteEdge(from, to, typ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(edgesOutBucket).Delete([]byte(edgeKey(from, to, typ))); err != nil {
			return err
		}
		return tx.Bucket(edgesInBucket).Delete([]byte(edgeKey(to, from, typ)))
	})
}

// Reached is one node returned by Neighbours, with its shortest-path
// depth from the traversal origin.
type Reached struct {
	Node  Node
	Depth int
}

// Neighbours returns all nodes reachable in exactly 1..depth hops along
// edges of the permitted type (spec.md §4.3 "Traversal semantics"):
// cycles are dropped by visited-set, and the walk is bounded by
// maxNodes; exceeding the budget fails with ErrTraversalBudgetExceeded
// without returning the partial frontier (to avoid non-determinism).
func (s *Store) Neighbours(id string, edgeType string, direction Direction, depth int, maxNodes int) ([]Reached, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if depth <= 0 {
		return nil, nil
	}

	var results []Reached
	err := s.db.View(func(tx *bolt.Tx) error {
		visited := map[string]bool{id: true}
		frontier := []string{id}

		for d := 1; d <= depth; d++ {
			var next []string
			for _, cur := range frontier {
				ids, err := s.adjacent(tx, cur, edgeType, direction)
				if err != nil {
					return err
				}
				for _, nid := range ids {
					if visited[nid] {
						continue
					}
					visited[nid] = true
					if len(visited)-1 > maxNodes {
						return ErrTraversalBudgetExceeded
					}
					n, err := s.getNodeTx(tx, nid)
					if err != nil {
						continue
					}
					results = append(results, Reached{Node: n, Depth: d})
					next = append(next, nid)
				}
			}
			frontier = next
			if len(frontier) == 0 {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) getNodeTx(tx *bolt.Tx, id string) (Node, error) {
	v := tx.Bucket(nodesBucket).Get([]byte(id))
	if v == nil {
		return Node{}, ErrNodeNotFound
	}
	var n Node
	if err := json.Unmarshal(v, &n); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (s *Store) adjacent(tx *bolt.Tx, id, edgeType string, direction Direction) ([]string, error) {
	var ids []string
	if direction == DirectionOut || direction == DirectionBoth {
		out, err := scanAdjacency(tx.Bucket(edgesOutBucket), id, edgeType)
		if err != nil {
			return nil, err
		}
		ids = append(ids, out...)
	}
	if direction == DirectionIn || direction == DirectionBoth {
		in, err := scanAdjacency(tx.Bucket(edgesInBucket), id, edgeType)
		if err != nil {
			return nil, err
		}
		ids = append(ids, in...)
	}
	return ids, nil
}

// scanAdjacency scans a from\x00type\x00to (or to\x00type\x00from)
// bucket for every entry whose first key component is id, optionally
// constrained to edgeType, yielding the other endpoint.
func scanAdjacency(bucket *bolt.Bucket, id, edgeType string) ([]string, error) {
	var out []string
	prefix := []byte(id + "\x00")
	c := bucket.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		parts := bytes.SplitN(k, []byte("\x00"), 3)
		if len(parts) != 3 {
			continue
		}
		if edgeType != "" && string(parts[1]) != edgeType {
			continue
		}
		out = append(out, string(parts[2]))
	}
	return out, nil
}

// Stats reports node/edge counts (spec.md §4.3 "stats()").
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ByType: make(map[string]int)}
	err := s.db.View(func(tx *bolt.Tx) error {
		nb := tx.Bucket(nodesBucket)
		c := nb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			stats.NodeCount++
			var n Node
			if err := json.Unmarshal(v, &n); err == nil {
				stats.ByType[n.Type]++
			}
		}
		stats.EdgeCount = tx.Bucket(edgesOutBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return stats, nil
}
