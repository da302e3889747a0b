// Package router implements the Semantic Router (C5): a heuristic
// intent classifier over query text, emitting an execution plan. Kept
// dependency-free and table-driven in the style of the teacher's
// internal/reranker package (small interface, no third-party NLP
// dependency) -- no pack example targets intent classification
// directly, so this stays on stdlib regexp/strings (see DESIGN.md).
package router

import (
	"regexp"
	"strings"
)

// Intent is one of the four classes spec.md §4.5 defines.
type Intent string

const (
	IntentRetrieval  Intent = "retrieval"
	IntentRelational Intent = "relational"
	IntentSummary    Intent = "summary"
	IntentHybrid     Intent = "hybrid"
)

// Plan is the suggested execution shape for an Intent (spec.md §4.5
// table).
type Plan struct {
	VectorK    int
	GraphDepth int
	Rerank     bool
	Parallel   bool
}

// Classification is the router's full output contract (spec.md §4.5):
// "(intent, confidence, complexity, suggested plan, rationale)".
type Classification struct {
	Intent     Intent
	Confidence float64 // [0,1]
	Complexity float64 // [0,1]
	Plan       Plan
	Rationale  string
}

// DefaultTauIntent is the confidence floor below which the router
// falls back to Hybrid (spec.md §4.5, default 0.35).
const DefaultTauIntent = 0.35

var (
	retrievalVerbs  = regexp.MustCompile(`(?i)\b(find|search|look ?up|locate|get)\b`)
	relationalVerbs = regexp.MustCompile(`(?i)\b(related to|relates to|cites|cited by|connected to|linked to|depends on)\b`)
	summaryVerbs    = regexp.MustCompile(`(?i)\b(summar(y|ise|ize)|overview|tl;?dr|recap)\b`)
	properNoun      = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)
	complexPredicate = regexp.MustCompile(`(?i)\b(and|or|but not|excluding|where)\b`)
)

// Router classifies query text into an Intent and execution Plan.
type Router struct {
	tauIntent float64
	plans     map[Intent]Plan
}

// New constructs a Router. tauIntent <= 0 uses DefaultTauIntent.
func New(tauIntent float64) *Router {
	if tauIntent <= 0 {
		tauIntent = DefaultTauIntent
	}
	return &Router{
		tauIntent: tauIntent,
		plans: map[Intent]Plan{
			IntentRetrieval:  {VectorK: 6, GraphDepth: 0, Rerank: false, Parallel: false},
			IntentRelational: {VectorK: 10, GraphDepth: 2, Rerank: true, Parallel: false},
			IntentSummary:    {VectorK: 15, GraphDepth: 1, Rerank: true, Parallel: false},
			IntentHybrid:     {VectorK: 10, GraphDepth: 2, Rerank: true, Parallel: true},
		},
	}
}

// Classify implements spec.md §4.5's classifier contract.
func (r *Router) Classify(query string) Classification {
	signals := r.matchSignals(query)

	switch {
	case len(signals) == 0:
		return r.fallback("no intent signal matched")
	case len(signals) > 1:
		return Classification{
			Intent:     IntentHybrid,
			Confidence: 0.6,
			Complexity: r.complexity(query, true),
			Plan:       r.plans[IntentHybrid],
			Rationale:  "multiple intent signals: " + strings.Join(signalNames(signals), ", "),
		}
	}

	intent := signals[0]
	confidence := r.confidenceFor(query, intent)
	if confidence < r.tauIntent {
		return r.fallback("single signal below confidence threshold")
	}
	return Classification{
		Intent:     intent,
		Confidence: confidence,
		Complexity: r.complexity(query, false),
		Plan:       r.plans[intent],
		Rationale:  "matched " + string(intent) + " signal",
	}
}

func (r *Router) matchSignals(query string) []Intent {
	var signals []Intent
	if retrievalVerbs.MatchString(query) || properNoun.MatchString(query) {
		signals = append(signals, IntentRetrieval)
	}
	if relationalVerbs.MatchString(query) {
		signals = append(signals, IntentRelational)
	}
	if summaryVerbs.MatchString(query) {
		signals = append(signals, IntentSummary)
	}
	return signals
}

func signalNames(signals []Intent) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = string(s)
	}
	return out
}

// confidenceFor gives a higher score to verb-phrase matches than to the
// weaker proper-noun-only Retrieval heuristic.
func (r *Router) confidenceFor(query string, intent Intent) float64 {
	switch intent {
	case IntentRetrieval:
		if retrievalVerbs.MatchString(query) {
			return 0.8
		}
		return 0.45 // proper-noun-only match
	case IntentRelational, IntentSummary:
		return 0.75
	default:
		return 0.5
	}
}

func (r *Router) complexity(query string, multiSignal bool) float64 {
	score := 0.2
	if multiSignal {
		score += 0.3
	}
	if complexPredicate.MatchString(query) {
		score += 0.3
	}
	if len(strings.Fields(query)) > 20 {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (r *Router) fallback(reason string) Classification {
	return Classification{
		Intent:     IntentHybrid,
		Confidence: r.tauIntent,
		Complexity: 0.5,
		Plan:       r.plans[IntentHybrid],
		Rationale:  "fallback to hybrid: " + reason,
	}
}
