package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NodePattern(t *testing.T) {
	q, err := Parse(`MATCH (n:Document) WHERE n.category = "paper" RETURN n LIMIT 5`)
	require.NoError(t, err)
	assert.Equal(t, KindNodePattern, q.Kind)
	assert.Equal(t, "n", q.NodeVar)
	assert.Equal(t, "Document", q.NodeLabel)
	require.NotNil(t, q.Where)
	assert.Equal(t, "category", q.Where.Property)
	assert.Equal(t, "paper", q.Where.Value)
	assert.Equal(t, 5, q.Limit)
}

func TestParse_NodePattern_NoLabelNoWhere(t *testing.T) {
	q, err := Parse(`MATCH (n) RETURN n`)
	require.NoError(t, err)
	assert.Equal(t, "n", q.NodeVar)
	assert.Empty(t, q.NodeLabel)
	assert.Nil(t, q.Where)
	assert.Equal(t, 0, q.Limit)
}

func TestParse_EdgePattern(t *testing.T) {
	q, err := Parse(`MATCH (a)-[r:CITES]->(b) RETURN a, r, b LIMIT 10`)
	require.NoError(t, err)
	assert.Equal(t, KindEdgePattern, q.Kind)
	assert.Equal(t, "a", q.FromVar)
	assert.Equal(t, "r", q.EdgeVar)
	assert.Equal(t, "CITES", q.EdgeType)
	assert.Equal(t, "b", q.ToVar)
	assert.Equal(t, []string{"a", "r", "b"}, q.Returns)
}

func TestParse_VariableDepth(t *testing.T) {
	q, err := Parse(`MATCH (a)-[:CITES*1..3]->(b) WHERE a.id = "doc:1" RETURN b`)
	require.NoError(t, err)
	assert.Equal(t, KindVariableDepth, q.Kind)
	assert.Equal(t, 1, q.MinHops)
	assert.Equal(t, 3, q.MaxHops)
	require.NotNil(t, q.Where)
	assert.Equal(t, "id", q.Where.Property)
	assert.Equal(t, "doc:1", q.Where.Value)
}

func TestParse_UnrecognizedShape(t *testing.T) {
	_, err := Parse(`CREATE (n:Foo)`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestPredicate_ContainsOnTagList(t *testing.T) {
	p := &Predicate{Variable: "n", Property: "tags", Op: "CONTAINS", Value: "ml"}
	n := Node{Properties: map[string]any{"tags": []string{"ml", "nlp"}}}
	assert.True(t, p.matches(n))

	n2 := Node{Properties: map[string]any{"tags": []string{"db"}}}
	assert.False(t, p.matches(n2))
}

func TestPredicate_NilAlwaysMatches(t *testing.T) {
	var p *Predicate
	assert.True(t, p.matches(Node{}))
}
