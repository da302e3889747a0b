package graphstore

import "fmt"

// Row is one result row from Query, keyed by the variable names named
// in the statement's RETURN clause.
type Row map[string]any

// Query runs a parsed Cypher-subset statement (spec.md §4.3 "query(cypherSubset)").
// It is built entirely on Store's already-locking public operations
// (FindNodes, Neighbours, Edge) rather than taking its own lock, so
// it never nests acquisitions of Store.mu.
func (s *Store) Query(cypher string, maxNodes int) ([]Row, error) {
	q, err := Parse(cypher)
	if err != nil {
		return nil, err
	}

	var rows []Row
	switch q.Kind {
	case KindNodePattern:
		rows, err = s.execNodePattern(q)
	case KindEdgePattern:
		rows, err = s.execEdgePattern(q)
	case KindVariableDepth:
		rows, err = s.execVariableDepth(q, maxNodes)
	default:
		return nil, fmt.Errorf("%w: unknown query kind", ErrInvalidQuery)
	}
	if err != nil {
		return nil, err
	}

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func (s *Store) execNodePattern(q *Query) ([]Row, error) {
	nodes, err := s.FindNodes(q.NodeLabel, func(n Node) bool { return q.Where.matches(n) })
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, Row{q.NodeVar: n})
	}
	return rows, nil
}

// execEdgePattern iterates every node as a candidate "a" and expands
// one hop out along q.EdgeType, matching spec.md §4.3's
// "MATCH (a)-[r[:TYPE]]->(b) RETURN a, r, b" shape.
func (s *Store) execEdgePattern(q *Query) ([]Row, error) {
	candidates, err := s.FindNodes("", func(n Node) bool { return q.Where.matches(n) })
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, a := range candidates {
		reached, err := s.Neighbours(a.ID, q.EdgeType, DirectionOut, 1, defaultMaxNodes)
		if err != nil {
			return nil, err
		}
		for _, r := range reached {
			row := Row{q.FromVar: a, q.ToVar: r.Node}
			if q.EdgeVar != "" {
				if e, ok := s.Edge(a.ID, r.Node.ID, q.EdgeType); ok {
					row[q.EdgeVar] = e
				}
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *Store) execVariableDepth(q *Query, maxNodes int) ([]Row, error) {
	origins, err := s.FindNodes("", func(n Node) bool {
		if q.Where != nil && q.Where.Variable == q.FromVar {
			return q.Where.matches(n)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, origin := range origins {
		reached, err := s.Neighbours(origin.ID, q.EdgeType, DirectionOut, q.MaxHops, maxNodes)
		if err != nil {
			return nil, err
		}
		for _, r := range reached {
			if r.Depth < q.MinHops {
				continue
			}
			rows = append(rows, Row{q.ToVar: r.Node})
		}
	}
	return rows, nil
}

// defaultMaxNodes bounds single-hop edge-pattern expansion, which has
// no explicit traversal budget parameter of its own in the Cypher
// subset (only the variable-depth form does).
const defaultMaxNodes = 100000
