package graphstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Query is a parsed Cypher-subset statement. Exactly one of the three
// shapes spec.md §4.3 enumerates is populated, distinguished by Kind.
type Query struct {
	Kind Kind

	// NodePattern form: MATCH (n[:Label]) [WHERE ...] RETURN n [LIMIT k]
	NodeVar   string
	NodeLabel string

	// EdgePattern / VariableDepth forms share a relationship
	FromVar  string
	ToVar    string
	EdgeVar  string
	EdgeType string
	MinHops  int
	MaxHops  int // 1 for EdgePattern, D for VariableDepth

	Where   *Predicate
	Returns []string
	Limit   int
}

// Kind distinguishes the three query shapes spec.md §4.3 enumerates.
type Kind string

const (
	KindNodePattern    Kind = "node_pattern"
	KindEdgePattern    Kind = "edge_pattern"
	KindVariableDepth  Kind = "variable_depth"
)

// Predicate is a single equality or containment test against a
// variable's property (spec.md §4.3 "Equality and containment
// predicates on properties").
type Predicate struct {
	Variable string
	Property string
	Op       string // "=" or "CONTAINS"
	Value    string
}

var (
	reNodePattern = regexp.MustCompile(`(?i)^MATCH\s*\(\s*(\w+)\s*(?::\s*(\w+)\s*)?\)\s*(?:WHERE\s+(.+?)\s+)?RETURN\s+(.+?)(?:\s+LIMIT\s+(\d+))?$`)
	reEdgePattern = regexp.MustCompile(`(?i)^MATCH\s*\(\s*(\w+)\s*\)\s*-\s*\[\s*(\w+)?\s*(?::\s*(\w+)\s*)?\]\s*->\s*\(\s*(\w+)\s*\)\s*(?:WHERE\s+(.+?)\s+)?RETURN\s+(.+?)(?:\s+LIMIT\s+(\d+))?$`)
	reVarDepth    = regexp.MustCompile(`(?i)^MATCH\s*\(\s*(\w+)\s*\)\s*-\s*\[\s*:\s*(\w+)\s*\*\s*(\d+)\s*\.\.\s*(\d+)\s*\]\s*->\s*\(\s*(\w+)\s*\)\s*(?:WHERE\s+(.+?)\s+)?RETURN\s+(.+?)(?:\s+LIMIT\s+(\d+))?$`)
	rePredicate   = regexp.MustCompile(`(?i)^(\w+)\.(\w+)\s*(=|CONTAINS)\s*"([^"]*)"$`)
)

// Parse recognizes exactly the Cypher subset spec.md §4.3 documents:
//
//	MATCH (n[:Label]) [WHERE ...] RETURN n [LIMIT k]
//	MATCH (a)-[r[:TYPE]]->(b) RETURN a, r, b [LIMIT k]
//	MATCH (a)-[:TYPE*1..D]->(b) WHERE a.id = "..." RETURN b
func Parse(query string) (*Query, error) {
	q := strings.TrimSpace(query)
	q = strings.Join(strings.Fields(q), " ")

	if m := reVarDepth.FindStringSubmatch(q); m != nil {
		min, _ := strconv.Atoi(m[3])
		max, _ := strconv.Atoi(m[4])
		pred, err := parseWhere(m[6])
		if err != nil {
			return nil, err
		}
		limit, err := parseLimit(m[8])
		if err != nil {
			return nil, err
		}
		return &Query{
			Kind: KindVariableDepth, FromVar: m[1], EdgeType: m[2],
			MinHops: min, MaxHops: max, ToVar: m[5],
			Where: pred, Returns: parseReturns(m[7]), Limit: limit,
		}, nil
	}

	if m := reEdgePattern.FindStringSubmatch(q); m != nil {
		pred, err := parseWhere(m[5])
		if err != nil {
			return nil, err
		}
		limit, err := parseLimit(m[7])
		if err != nil {
			return nil, err
		}
		return &Query{
			Kind: KindEdgePattern, FromVar: m[1], EdgeVar: m[2], EdgeType: m[3],
			ToVar: m[4], MinHops: 1, MaxHops: 1,
			Where: pred, Returns: parseReturns(m[6]), Limit: limit,
		}, nil
	}

	if m := reNodePattern.FindStringSubmatch(q); m != nil {
		pred, err := parseWhere(m[3])
		if err != nil {
			return nil, err
		}
		limit, err := parseLimit(m[5])
		if err != nil {
			return nil, err
		}
		return &Query{
			Kind: KindNodePattern, NodeVar: m[1], NodeLabel: m[2],
			Where: pred, Returns: parseReturns(m[4]), Limit: limit,
		}, nil
	}

	return nil, fmt.Errorf("%w: unrecognized query shape", ErrInvalidQuery)
}

func parseReturns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid LIMIT %q", ErrInvalidQuery, s)
	}
	return n, nil
}

func parseWhere(s string) (*Predicate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	m := rePredicate.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: unsupported WHERE clause %q", ErrInvalidQuery, s)
	}
	return &Predicate{Variable: m[1], Property: m[2], Op: strings.ToUpper(m[3]), Value: m[4]}, nil
}

// matches evaluates the predicate against a node's properties. An empty
// predicate (nil) always matches.
func (p *Predicate) matches(n Node) bool {
	if p == nil {
		return true
	}
	if p.Property == "id" {
		return p.evalOp(n.ID)
	}
	raw, ok := n.Properties[p.Property]
	if !ok {
		return false
	}
	switch v := raw.(type) {
	case string:
		return p.evalOp(v)
	case []string:
		if p.Op == "CONTAINS" {
			for _, item := range v {
				if item == p.Value {
					return true
				}
			}
		}
		return false
	case []any:
		if p.Op == "CONTAINS" {
			for _, item := range v {
				if fmt.Sprint(item) == p.Value {
					return true
				}
			}
		}
		return false
	default:
		return p.evalOp(fmt.Sprint(raw))
	}
}

func (p *Predicate) evalOp(actual string) bool {
	switch p.Op {
	case "CONTAINS":
		return strings.Contains(actual, p.Value)
	default:
		return actual == p.Value
	}
}
