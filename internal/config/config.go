// Package config provides configuration loading for ckg.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults as the final fallback. This mirrors the
// layering contract documented on Load (see loader.go).
package config

import (
	"fmt"
)

// Config holds the complete engine configuration (spec.md §6).
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	HNSW      HNSWConfig      `koanf:"hnsw"`
	Tiering   TieringConfig   `koanf:"tiering"`
	Search    SearchConfig    `koanf:"search"`
	Router    RouterConfig    `koanf:"router"`
	Graph     GraphConfig     `koanf:"graph"`
	Cognitive CognitiveConfig `koanf:"cognitive"`
	Logging   LoggingRef      `koanf:"logging"`
	Telemetry TelemetryRef    `koanf:"telemetry"`
}

// StorageConfig controls the on-disk layout (spec.md §4.9, §7).
type StorageConfig struct {
	// Root is the directory that holds one subdirectory per collection.
	Root string `koanf:"root"`

	// DefaultCollection is created on first use (spec.md §4.4).
	DefaultCollection string `koanf:"default_collection"`

	// ManifestVersion is the on-disk manifest format this engine writes and
	// the highest version it will open.
	ManifestVersion int `koanf:"manifest_version"`
}

// EmbeddingConfig selects and configures the embedding port (C1).
type EmbeddingConfig struct {
	// Provider selects the backend: "local" (fastembed ONNX), "remote"
	// (HTTP embedding service), or "deterministic" (test-only hashing
	// embedder used by the package's own round-trip tests).
	Provider string `koanf:"provider"`

	Local    LocalEmbeddingConfig  `koanf:"local"`
	Remote   RemoteEmbeddingConfig `koanf:"remote"`
	MaxRetry int                   `koanf:"max_retry"`
	Backoff  Duration              `koanf:"backoff"`
}

// LocalEmbeddingConfig configures the fastembed-go local provider.
type LocalEmbeddingConfig struct {
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
}

// RemoteEmbeddingConfig configures a TEI-compatible HTTP embedding service.
type RemoteEmbeddingConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
	Timeout Duration `koanf:"timeout"`
}

// HNSWConfig controls the ANN index (spec.md §4.2 defaults 16/200/64).
type HNSWConfig struct {
	M              int `koanf:"m"`
	EfConstruction int `koanf:"ef_construction"`
	EfSearch       int `koanf:"ef_search"`
}

// TieringConfig controls hot/warm/cold classification (spec.md §4.2).
type TieringConfig struct {
	WHotDays  int `koanf:"w_hot_days"`
	WWarmDays int `koanf:"w_warm_days"`
	ThetaHot  int `koanf:"theta_hot"`
}

// SearchConfig controls default search behaviour (spec.md §4.7).
type SearchConfig struct {
	Oversample          int     `koanf:"oversample"`
	RerankOversample     int     `koanf:"rerank_oversample"`
	RerankAlpha          float64 `koanf:"rerank_alpha"`
	MaxExpectedNeighbours int    `koanf:"max_expected_neighbours"`
}

// RouterConfig controls the semantic router (spec.md §4.5).
type RouterConfig struct {
	IntentThreshold float64 `koanf:"intent_threshold"`
}

// GraphConfig controls graph traversal bounds (spec.md §4.3).
type GraphConfig struct {
	MaxTraversalNodes int `koanf:"max_traversal_nodes"`
}

// CognitiveConfig controls the cognitive engine (spec.md §4.6).
type CognitiveConfig struct {
	Enabled          bool `koanf:"enabled"`
	PatternMinCluster int `koanf:"pattern_min_cluster"`
}

// LoggingRef and TelemetryRef are thin koanf-addressable pointers into the
// sibling logging/telemetry packages' own Config types, following the
// teacher's pattern of namespacing every subsystem under one root config
// while letting each package own its schema.
type LoggingRef struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type TelemetryRef struct {
	Enabled bool `koanf:"enabled"`
}

// NewDefaultConfig returns production-ready defaults for every field in
// Config, mirroring spec.md's documented defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Root:              "./ckg-data",
			DefaultCollection: "default",
			ManifestVersion:   1,
		},
		Embedding: EmbeddingConfig{
			Provider: "local",
			Local: LocalEmbeddingConfig{
				Model:    "BAAI/bge-small-en-v1.5",
				CacheDir: "./ckg-data/.cache/models",
			},
			Remote: RemoteEmbeddingConfig{
				Timeout: Duration(defaultRemoteTimeoutSeconds),
			},
			MaxRetry: 3,
			Backoff:  Duration(defaultBackoff),
		},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
		},
		Tiering: TieringConfig{
			WHotDays:  7,
			WWarmDays: 30,
			ThetaHot:  10,
		},
		Search: SearchConfig{
			Oversample:            2,
			RerankOversample:      3,
			RerankAlpha:           0.7,
			MaxExpectedNeighbours: 10,
		},
		Router: RouterConfig{
			IntentThreshold: 0.35,
		},
		Graph: GraphConfig{
			MaxTraversalNodes: 5000,
		},
		Cognitive: CognitiveConfig{
			Enabled:           true,
			PatternMinCluster: 4,
		},
		Logging: LoggingRef{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryRef{
			Enabled: false,
		},
	}
}

const (
	defaultRemoteTimeoutSeconds = 30_000_000_000 // 30s, in nanoseconds (time.Duration)
	defaultBackoff              = 200_000_000    // 200ms
)

// Validate checks the configuration for structurally invalid values.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root must not be empty")
	}
	switch c.Embedding.Provider {
	case "local", "remote", "deterministic":
	default:
		return fmt.Errorf("embedding.provider must be local, remote, or deterministic, got %q", c.Embedding.Provider)
	}
	if c.HNSW.M <= 0 || c.HNSW.EfConstruction <= 0 || c.HNSW.EfSearch <= 0 {
		return fmt.Errorf("hnsw.m, hnsw.ef_construction, hnsw.ef_search must be positive")
	}
	if c.Search.Oversample < 1 {
		return fmt.Errorf("search.oversample must be >= 1")
	}
	if c.Search.RerankAlpha < 0 || c.Search.RerankAlpha > 1 {
		return fmt.Errorf("search.rerank_alpha must be in [0,1]")
	}
	if c.Router.IntentThreshold < 0 || c.Router.IntentThreshold > 1 {
		return fmt.Errorf("router.intent_threshold must be in [0,1]")
	}
	if c.Graph.MaxTraversalNodes <= 0 {
		return fmt.Errorf("graph.max_traversal_nodes must be positive")
	}
	return nil
}

// ValidateDimension checks a collection dimension against spec.md's bound
// (64 ≤ D ≤ 4096, spec.md §3, §4.4).
func ValidateDimension(d int) error {
	if d < 64 || d > 4096 {
		return fmt.Errorf("dimension must be in [64, 4096], got %d", d)
	}
	return nil
}
