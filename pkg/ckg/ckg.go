// Package ckg is the embeddable entrypoint for the Cognitive Knowledge
// Graph engine: a local-first retrieval substrate combining a
// dense-vector index, a property graph, a collection registry, a
// semantic router, and a trajectory-driven cognitive layer behind one
// atomic facade.
//
// Example usage:
//
//	cfg := config.NewDefaultConfig()
//	cfg.Storage.Root = "./data"
//	engine, err := ckg.Open(cfg)
//	if err != nil {
//	    // handle error
//	}
//	defer engine.Close()
//
//	id, err := engine.AddDocument(ctx, ckg.Document{Text: "hello world"}, "")
//	results, err := engine.Search(ctx, "hello", ckg.SearchOptions{K: 5})
package ckg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/noumenal/ckg/internal/cognitive"
	"github.com/noumenal/ckg/internal/config"
	"github.com/noumenal/ckg/internal/embedding"
	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/logging"
	"github.com/noumenal/ckg/internal/memory"
	"github.com/noumenal/ckg/internal/registry"
	"github.com/noumenal/ckg/internal/router"
	"github.com/noumenal/ckg/internal/telemetry"
)

// defaultEmbeddingDimension is the fallback dimension for providers
// that cannot discover their own (remote, deterministic); spec.md
// leaves D a per-collection parameter rather than picking a single
// global default, so this only matters until a collection's own
// dimension is registered.
const defaultEmbeddingDimension = 384

// Engine is the facade every caller of this module interacts with. It
// owns the storage root's exclusive lock for its lifetime; Close
// releases it.
type Engine struct {
	memory    *memory.UnifiedMemory
	embedder  embedding.Port
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	cogDB     *bolt.DB
}

// Document, DocumentOutcome, CollectionInfo, SearchOptions,
// UnifiedResult, RelatedNode, Stats, CollectionStats are re-exported
// from internal/memory so callers of this package never import an
// internal path.
type (
	Document        = memory.Document
	DocumentOutcome = memory.DocumentOutcome
	CollectionInfo  = memory.CollectionInfo
	SearchOptions   = memory.SearchOptions
	UnifiedResult   = memory.UnifiedResult
	RelatedNode     = memory.RelatedNode
	Stats           = memory.Stats
	CollectionStats = memory.CollectionStats
	Metric          = registry.Metric
	Feedback        = cognitive.Feedback
	Pattern         = cognitive.Pattern
	Match           = cognitive.Match
	GraphNode       = graphstore.Node
	GraphRow        = graphstore.Row
)

const (
	MetricCosine = registry.MetricCosine
	MetricL2     = registry.MetricL2
	MetricDot    = registry.MetricDot

	FeedbackGood      = cognitive.FeedbackGood
	FeedbackNeutral   = cognitive.FeedbackNeutral
	FeedbackBad       = cognitive.FeedbackBad
	FeedbackIncorrect = cognitive.FeedbackIncorrect
)

// RewardFor maps a qualitative Feedback label to the numeric reward
// spec.md's reward contract assigns it, for callers deriving a
// RecordStep reward from user feedback rather than supplying one
// directly. It has no bearing on EndTrajectory's quality argument.
var RewardFor = cognitive.RewardFor

// Open constructs every store component under cfg and returns a ready
// Engine. The storage root is created if absent, then locked
// exclusively for the Engine's lifetime (spec.md §4.9, §5).
func Open(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ckg: invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.Root, 0o700); err != nil {
		return nil, fmt.Errorf("ckg: create storage root: %w", err)
	}

	logLevel, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("ckg: logging: %w", err)
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = logLevel
	logCfg.Format = cfg.Logging.Format
	logger, err := logging.NewLogger(logCfg, map[string]string{"service.name": "ckg"})
	if err != nil {
		return nil, fmt.Errorf("ckg: logging: %w", err)
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Telemetry.Enabled
	tel, err := telemetry.New(telCfg)
	if err != nil {
		return nil, fmt.Errorf("ckg: telemetry: %w", err)
	}

	metrics, err := telemetry.NewMetrics(tel.Meter(telemetry.InstrumentationName))
	if err != nil {
		tel.Shutdown(context.Background())
		return nil, fmt.Errorf("ckg: metrics: %w", err)
	}

	reg, err := registry.NewRegistry(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("ckg: registry: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding, defaultEmbeddingDimension)
	if err != nil {
		return nil, fmt.Errorf("ckg: embedding: %w", err)
	}

	r := router.New(cfg.Router.IntentThreshold)

	deps := memory.Deps{
		Registry: reg,
		Embedder: embedder,
		Router:   r,
		Metrics:  metrics,
		Logger:   logger,
	}

	var cogDB *bolt.DB
	if cfg.Cognitive.Enabled {
		cogDB, err = bolt.Open(filepath.Join(cfg.Storage.Root, "cognitive.db"), 0o600, nil)
		if err != nil {
			return nil, fmt.Errorf("ckg: cognitive store: %w", err)
		}
		recorder, err := cognitive.OpenTrajectoryRecorder(cogDB)
		if err != nil {
			cogDB.Close()
			return nil, fmt.Errorf("ckg: trajectory recorder: %w", err)
		}
		deps.Trajectories = recorder
		deps.Patterns = cognitive.NewPatternBank(cfg.Cognitive.PatternMinCluster)
	}

	m, err := memory.New(cfg, deps)
	if err != nil {
		if cogDB != nil {
			cogDB.Close()
		}
		return nil, fmt.Errorf("ckg: %w", err)
	}

	return &Engine{memory: m, embedder: embedder, logger: logger, telemetry: tel, cogDB: cogDB}, nil
}

// Close performs an orderly shutdown of every store and the telemetry
// provider (spec.md §4.7 "close()").
func (e *Engine) Close() error {
	err := e.memory.Close()
	if cerr := e.embedder.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if e.cogDB != nil {
		e.cogDB.Close()
	}
	e.telemetry.Shutdown(context.Background())
	e.logger.Sync()
	return err
}
