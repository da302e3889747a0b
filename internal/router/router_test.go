package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Retrieval(t *testing.T) {
	r := New(0)
	c := r.Classify("find the Kubernetes deployment guide")
	assert.Equal(t, IntentRetrieval, c.Intent)
	assert.GreaterOrEqual(t, c.Confidence, DefaultTauIntent)
	assert.Equal(t, 6, c.Plan.VectorK)
	assert.False(t, c.Plan.Rerank)
}

func TestClassify_Relational(t *testing.T) {
	r := New(0)
	c := r.Classify("what papers are related to transformer architectures")
	assert.Equal(t, IntentRelational, c.Intent)
	assert.Equal(t, 2, c.Plan.GraphDepth)
	assert.True(t, c.Plan.Rerank)
}

func TestClassify_Summary(t *testing.T) {
	r := New(0)
	c := r.Classify("give me a summary of this quarter's incidents")
	assert.Equal(t, IntentSummary, c.Intent)
	assert.Equal(t, 15, c.Plan.VectorK)
}

func TestClassify_HybridOnMultipleSignals(t *testing.T) {
	r := New(0)
	c := r.Classify("find documents related to caching and summarize them")
	assert.Equal(t, IntentHybrid, c.Intent)
	assert.True(t, c.Plan.Parallel)
}

func TestClassify_FallbackToHybridWhenNoSignal(t *testing.T) {
	r := New(0)
	c := r.Classify("hello there")
	assert.Equal(t, IntentHybrid, c.Intent)
	assert.Contains(t, c.Rationale, "fallback")
}

func TestClassify_FallbackBelowConfidenceThreshold(t *testing.T) {
	r := New(0.9) // raise threshold so proper-noun-only match (0.45) always falls back
	c := r.Classify("Kubernetes")
	assert.Equal(t, IntentHybrid, c.Intent)
}

func TestComplexity_IncreasesWithPredicatesAndLength(t *testing.T) {
	r := New(0)
	simple := r.Classify("find docs")
	complexQuery := r.Classify("find documents about caching and eviction but not about networking where the collection is large")
	assert.Greater(t, complexQuery.Complexity, simple.Complexity)
}

func TestDefaultTauIntent_UsedWhenNonPositive(t *testing.T) {
	r := New(-1)
	assert.Equal(t, DefaultTauIntent, r.tauIntent)
}
