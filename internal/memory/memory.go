// Package memory implements the Unified Memory facade (C7): the
// atomic boundary composing the embedding port (C1), vector index
// (C2), graph store (C3), collection registry (C4), semantic router
// (C5), and cognitive engine (C6) into the single transactional view
// spec.md §4.7 describes.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noumenal/ckg/internal/ckgerr"
	"github.com/noumenal/ckg/internal/cognitive"
	"github.com/noumenal/ckg/internal/config"
	"github.com/noumenal/ckg/internal/embedding"
	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/logging"
	"github.com/noumenal/ckg/internal/registry"
	"github.com/noumenal/ckg/internal/router"
	"github.com/noumenal/ckg/internal/store"
	"github.com/noumenal/ckg/internal/telemetry"
	"github.com/noumenal/ckg/internal/vectorindex"
)

// Document is the caller-facing unit addDocument/addDocuments accept
// (spec.md §3 "Vector item" metadata plus the text to embed).
type Document struct {
	ID        string // local id; auto-generated if empty
	Text      string
	Title     string
	Source    string
	Category  string
	Tags      []string
	Timestamp time.Time
	Extra     map[string]any
}

// Errors wrap the matching ckgerr.Kind, per spec.md §4.7's named error
// set.
var (
	ErrDimensionMismatch           = fmt.Errorf("unified memory: dimension mismatch: %w", ckgerr.ErrInvalidInput)
	ErrCollectionNotFound          = fmt.Errorf("unified memory: collection not found: %w", ckgerr.ErrNotFound)
	ErrDuplicateID                 = fmt.Errorf("unified memory: duplicate id: %w", ckgerr.ErrConflict)
	ErrEmbeddingBackendUnavailable = fmt.Errorf("unified memory: embedding backend unavailable: %w", ckgerr.ErrBackend)
	ErrStorageFailure              = fmt.Errorf("unified memory: storage failure: %w", ckgerr.ErrBackend)
	ErrRetrievalFailed             = fmt.Errorf("unified memory: retrieval failed: %w", ckgerr.ErrRetrievalFailed)
	ErrCognitionDisabled           = fmt.Errorf("unified memory: cognitive engine not configured: %w", ckgerr.ErrInvalidInput)
	ErrNoMatchingTrajectory        = fmt.Errorf("unified memory: no completed trajectory matches query: %w", ckgerr.ErrNotFound)
)

// collectionHandle bundles the per-collection stores that back one
// registry entry. spec.md §4.9: "two storage roots per collection: a
// vector-index file and a graph database file" -- the cold tier shares
// the vector-index root as a second bbolt file.
type collectionHandle struct {
	writeMu sync.Mutex // serialises writers per collection (spec.md §5)
	index   *vectorindex.Index
	cold    *vectorindex.ColdStore
	graph   *graphstore.Store
	journal *store.Journal
	entry   *registry.Entry
}

// UnifiedMemory is the C7 facade. One instance owns one storage root
// and every collection opened beneath it.
type UnifiedMemory struct {
	mu          sync.RWMutex
	collections map[string]*collectionHandle

	registry *registry.Registry
	embedder embedding.Port
	router   *router.Router
	reranker cognitive.Reranker
	cognates *cognitive.TrajectoryRecorder
	patterns *cognitive.PatternBank

	cfg      *config.Config
	manifest *store.Manifest
	rootLock *store.RootLock
	metrics  *telemetry.Metrics
	logger   *logging.Logger

	searchGroup singleflight.Group
}

// Deps are the already-constructed components UnifiedMemory composes.
// Reranker and Trajectories may be nil: cognition is optional by
// config (spec.md §4.6). Metrics may be nil, in which case every
// instrumentation call along the facade's write/search paths is a
// no-op (internal/telemetry's Metrics is nil-safe by design). Logger
// may be nil, in which case New substitutes a logger over a nop Zap
// core so call sites never need a nil check.
type Deps struct {
	Registry     *registry.Registry
	Embedder     embedding.Port
	Router       *router.Router
	Reranker     cognitive.Reranker
	Trajectories *cognitive.TrajectoryRecorder
	Patterns     *cognitive.PatternBank
	Metrics      *telemetry.Metrics
	Logger       *logging.Logger
}

// New constructs a facade over already-open dependencies, taking the
// storage root's exclusive lock and loading (or creating) its manifest
// (spec.md §4.9). The lock is released by Close.
func New(cfg *config.Config, deps Deps) (*UnifiedMemory, error) {
	r := deps.Router
	if r == nil {
		r = router.New(cfg.Router.IntentThreshold)
	}
	reranker := deps.Reranker
	if reranker == nil {
		reranker = cognitive.NewNeutralReranker()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}

	root := deps.Registry.BasePath()
	lock, err := store.AcquireRootLock(root)
	if err != nil {
		return nil, fmt.Errorf("unified memory: %w", err)
	}
	manifest, err := store.LoadOrCreateManifest(root, cfg.Storage.ManifestVersion)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("unified memory: %w", err)
	}

	return &UnifiedMemory{
		collections: make(map[string]*collectionHandle),
		registry:    deps.Registry,
		embedder:    deps.Embedder,
		router:      r,
		reranker:    reranker,
		cognates:    deps.Trajectories,
		patterns:    deps.Patterns,
		cfg:         cfg,
		manifest:    manifest,
		rootLock:    lock,
		metrics:     deps.Metrics,
		logger:      logger,
	}, nil
}

// resolveCollection returns the open handle for name, auto-creating
// the registry entry (and opening its stores) on first use if name is
// the configured default collection (spec.md §4.7 addDocument step 1).
// Any other, not-yet-registered name is a hard error.
func (m *UnifiedMemory) resolveCollection(name string, autoCreate bool) (*collectionHandle, error) {
	if name == "" {
		name = m.cfg.Storage.DefaultCollection
	}

	m.mu.RLock()
	h, ok := m.collections[name]
	m.mu.RUnlock()
	if ok {
		return h, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.collections[name]; ok {
		return h, nil
	}

	entry, err := m.registry.Get(name)
	if err != nil {
		if !autoCreate || name != m.cfg.Storage.DefaultCollection {
			return nil, fmt.Errorf("resolveCollection %q: %w", name, ErrCollectionNotFound)
		}
		entry, err = m.registry.EnsureDefault(name, m.embedder.Dimension(), registry.MetricCosine)
		if err != nil {
			return nil, fmt.Errorf("resolveCollection: create default: %w", err)
		}
	}

	handle, err := m.openCollection(entry)
	if err != nil {
		return nil, err
	}
	m.collections[name] = handle
	return handle, nil
}

func (m *UnifiedMemory) openCollection(entry *registry.Entry) (*collectionHandle, error) {
	dir, err := m.registry.CollectionPath(entry.Name)
	if err != nil {
		return nil, err
	}

	ixCfg := vectorindex.DefaultConfig()
	ixCfg.M = m.cfg.HNSW.M
	ixCfg.EfConstruction = m.cfg.HNSW.EfConstruction
	ixCfg.EfSearch = m.cfg.HNSW.EfSearch
	ixCfg.HotThreshold = m.cfg.Tiering.ThetaHot
	ixCfg.HotWindow = time.Duration(m.cfg.Tiering.WHotDays) * 24 * time.Hour
	ixCfg.WarmWindow = time.Duration(m.cfg.Tiering.WWarmDays) * 24 * time.Hour

	index, err := vectorindex.New(entry.Dimension, entry.Metric, ixCfg)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: vector index: %w", entry.Name, err)
	}

	cold, err := vectorindex.OpenColdStore(filepath.Join(dir, "cold.db"), entry.Metric)
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("open collection %q: cold store: %w", entry.Name, err)
	}

	graph, err := graphstore.Open(filepath.Join(dir, "graph.db"))
	if err != nil {
		cold.Close()
		index.Close()
		return nil, fmt.Errorf("open collection %q: graph store: %w", entry.Name, err)
	}

	journal, err := store.OpenJournal(dir)
	if err != nil {
		graph.Close()
		cold.Close()
		index.Close()
		return nil, fmt.Errorf("open collection %q: journal: %w", entry.Name, err)
	}
	recovered, err := store.Recover(journal, index, graph)
	if err != nil {
		graph.Close()
		cold.Close()
		index.Close()
		return nil, fmt.Errorf("open collection %q: recover: %w", entry.Name, err)
	}
	m.metrics.RecordJournalRecovery(context.Background(), entry.Name, recovered)
	m.metrics.RecordCollectionOpened(context.Background())

	if recovered > 0 {
		m.logger.Warn(context.Background(), "recovered uncommitted journal entries",
			zap.String("collection", entry.Name), zap.Int("count", recovered))
	} else {
		m.logger.Info(context.Background(), "opened collection", zap.String("collection", entry.Name))
	}

	return &collectionHandle{index: index, cold: cold, graph: graph, journal: journal, entry: entry}, nil
}

func namespacedID(collection, localID string) string {
	return collection + ":" + localID
}
