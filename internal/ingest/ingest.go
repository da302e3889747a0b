// Package ingest implements the Ingestion Pipeline (C8): a transducer
// from a parsed document's text into UnifiedMemory calls (spec.md
// §4.8). It chunks on paragraph boundaries without splitting
// mid-sentence, extracts citations and a markdown section hierarchy,
// and reports coarse progress to an external observer as it runs.
package ingest

import "context"

// Stage names one phase of a single Ingest call.
type Stage string

const (
	StageParsing   Stage = "parsing"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageInserting Stage = "inserting"
	StageLearning  Stage = "learning"
)

// Progress is one point-in-time report of a pipeline run (spec.md
// §4.8 "Progress reporting").
type Progress struct {
	Stage   Stage
	Percent int // 0-100, monotonic within a stage
}

// Reporter receives progress updates. A nil Reporter is valid: Report
// is a no-op.
type Reporter interface {
	Report(Progress)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

func report(ctx context.Context, r Reporter, stage Stage, percent int) {
	if r == nil || ctx.Err() != nil {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	r.Report(Progress{Stage: stage, Percent: percent})
}
