// Package registry implements the Collection Registry (C4): the namespace
// map from a collection name to its vector-index handle, graph subspace
// tag, dimension, metric, and metadata.
//
// Directory structure:
//
//	<storage.root>/
//	├── registry.json            ← this package's own state
//	└── {collection}/            ← one directory per registered collection
//	    ├── vectors.idx           ← C2's HNSW export (internal/vectorindex)
//	    ├── graph.db              ← C3's bbolt graph (internal/graphstore)
//	    └── wal/                  ← C9's journal (internal/store)
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noumenal/ckg/internal/ckgerr"
)

// Metric names the similarity function a collection was created with.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricDot    Metric = "dot"
)

func (m Metric) valid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricDot:
		return true
	default:
		return false
	}
}

// MinDimension and MaxDimension bound a collection's vector dimension
// (spec.md §3, §4.4).
const (
	MinDimension = 64
	MaxDimension = 4096
)

// Errors for registry operations. Each wraps the matching ckgerr.Kind so
// callers can branch with errors.Is(err, ckgerr.ErrNotFound) etc. without
// caring about the leaf sentinel.
var (
	ErrCollectionNotFound = fmt.Errorf("collection not found: %w", ckgerr.ErrNotFound)
	ErrCollectionExists   = fmt.Errorf("collection already exists: %w", ckgerr.ErrConflict)
	ErrInvalidDimension   = fmt.Errorf("dimension outside [%d,%d]: %w", MinDimension, MaxDimension, ckgerr.ErrInvalidInput)
	ErrInvalidName        = fmt.Errorf("invalid collection name: %w", ckgerr.ErrInvalidInput)
	ErrPathTraversal      = fmt.Errorf("path traversal detected: %w", ckgerr.ErrInvalidInput)
	ErrRegistryCorrupted  = fmt.Errorf("registry file corrupted: %w", ckgerr.ErrBackend)
	ErrIncompatibleTarget = fmt.Errorf("migration target is not dimensionally compatible: %w", ckgerr.ErrConflict)
)

// namePattern validates collection names: alphanumeric, hyphens,
// underscores, and dots, matching the identifier rule collections are
// namespaced under (spec.md §3's "<collection>:<local-id>" prefix).
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Entry is a registered collection's handle: everything the Unified Memory
// facade (C7) needs to route operations to C2 (vector index) and C3
// (graph store) without re-deriving it.
type Entry struct {
	Name      string            `json:"name"`
	UUID      string            `json:"uuid"`
	Dimension int               `json:"dimension"`
	Metric    Metric            `json:"metric"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// registryData is the persisted registry structure.
type registryData struct {
	Version     int               `json:"version"`
	Collections map[string]*Entry `json:"collections"`
}

// Registry manages collection registration, path resolution, and
// persistence of the namespace map.
type Registry struct {
	mu       sync.RWMutex
	basePath string
	data     *registryData
	filePath string
}

// NewRegistry creates or opens a registry rooted at basePath.
func NewRegistry(basePath string) (*Registry, error) {
	if basePath == "" {
		return nil, fmt.Errorf("registry: %w: base path must not be empty", ckgerr.ErrInvalidInput)
	}

	r := &Registry{
		basePath: basePath,
		filePath: filepath.Join(basePath, "registry.json"),
		data: &registryData{
			Version:     1,
			Collections: make(map[string]*Entry),
		},
	}

	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("registry: create base directory: %w", err)
	}

	if err := r.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("registry: load: %w", err)
	}

	return r, nil
}

// ValidateName checks a collection name is safe to use as both a JSON key
// and a filesystem path component.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: name too long (max 255)", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	if name == "." || name == ".." {
		return ErrPathTraversal
	}
	for _, c := range name {
		if c == '/' || c == '\\' || c == '\x00' {
			return ErrPathTraversal
		}
	}
	if filepath.Clean(name) != name {
		return ErrPathTraversal
	}
	return nil
}

// ValidateDimension checks d against the engine-wide bound.
func ValidateDimension(d int) error {
	if d < MinDimension || d > MaxDimension {
		return ErrInvalidDimension
	}
	return nil
}

// Create registers a new collection. metadata may be nil.
func (r *Registry) Create(name string, dimension int, metric Metric, metadata map[string]string) (*Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("registry.create: %w", err)
	}
	if err := ValidateDimension(dimension); err != nil {
		return nil, fmt.Errorf("registry.create: %w", err)
	}
	if !metric.valid() {
		return nil, fmt.Errorf("registry.create: %w: unknown metric %q", ckgerr.ErrInvalidInput, metric)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data.Collections[name]; ok {
		return nil, fmt.Errorf("registry.create %q: %w", name, ErrCollectionExists)
	}

	entry := &Entry{
		Name:      name,
		UUID:      uuid.New().String(),
		Dimension: dimension,
		Metric:    metric,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	r.data.Collections[name] = entry

	if err := os.MkdirAll(r.collectionPath(name), 0o700); err != nil {
		delete(r.data.Collections, name)
		return nil, fmt.Errorf("registry.create: create collection directory: %w", err)
	}

	if err := r.save(); err != nil {
		delete(r.data.Collections, name)
		return nil, err
	}

	return entry, nil
}

// EnsureDefault creates the default collection if it does not already
// exist (spec.md §4.4: "created on first use").
func (r *Registry) EnsureDefault(name string, dimension int, metric Metric) (*Entry, error) {
	if entry, err := r.Get(name); err == nil {
		return entry, nil
	}
	return r.Create(name, dimension, metric, nil)
}

// Get returns the entry for name, or ErrCollectionNotFound.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.data.Collections[name]
	if !ok {
		return nil, fmt.Errorf("registry.get %q: %w", name, ErrCollectionNotFound)
	}
	return entry, nil
}

// List returns an unordered snapshot of all registered collections.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.data.Collections))
	for _, e := range r.data.Collections {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// ValidateMigrationTarget checks that target exists and shares name's
// dimension, the only compatibility C4 itself can assert; the actual data
// migration (moving vector items and graph nodes) is orchestrated by the
// Unified Memory facade before Delete is called.
func (r *Registry) ValidateMigrationTarget(name, target string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.data.Collections[name]
	if !ok {
		return fmt.Errorf("registry.delete %q: %w", name, ErrCollectionNotFound)
	}
	dst, ok := r.data.Collections[target]
	if !ok {
		return fmt.Errorf("registry.delete %q: migration target %q: %w", name, target, ErrCollectionNotFound)
	}
	if src.Dimension != dst.Dimension {
		return fmt.Errorf("registry.delete %q -> %q: %w (%d != %d)", name, target, ErrIncompatibleTarget, src.Dimension, dst.Dimension)
	}
	return nil
}

// Delete removes a collection's registry entry and on-disk directory. If
// target is non-empty, the caller must have already migrated data into it
// and validated compatibility via ValidateMigrationTarget.
func (r *Registry) Delete(name string, target string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("registry.delete: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data.Collections[name]; !ok {
		return fmt.Errorf("registry.delete %q: %w", name, ErrCollectionNotFound)
	}
	if target != "" {
		if _, ok := r.data.Collections[target]; !ok {
			return fmt.Errorf("registry.delete %q: migration target %q: %w", name, target, ErrCollectionNotFound)
		}
	}

	delete(r.data.Collections, name)

	if err := r.save(); err != nil {
		return err
	}

	path := r.collectionPath(name)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("registry.delete %q: remove directory: %w", name, err)
	}
	return nil
}

// Stats returns the registry-known facts about a collection. Live counts
// (vector item count, node/edge count) are filled in by the Unified
// Memory facade, which queries C2 and C3 directly; the registry only owns
// identity and configuration.
type Stats struct {
	Name      string
	Dimension int
	Metric    Metric
	CreatedAt time.Time
	Metadata  map[string]string
}

// Stats returns the registry-known facts about name.
func (r *Registry) Stats(name string) (Stats, error) {
	entry, err := r.Get(name)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Name:      entry.Name,
		Dimension: entry.Dimension,
		Metric:    entry.Metric,
		CreatedAt: entry.CreatedAt,
		Metadata:  entry.Metadata,
	}, nil
}

// CollectionPath returns the filesystem directory holding a collection's
// vector index, graph database, and WAL.
func (r *Registry) CollectionPath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return r.collectionPath(name), nil
}

func (r *Registry) collectionPath(name string) string {
	return filepath.Join(r.basePath, name)
}

// BasePath returns the storage root.
func (r *Registry) BasePath() string {
	return r.basePath
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	var rd registryData
	if err := json.Unmarshal(data, &rd); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryCorrupted, err)
	}
	if rd.Collections == nil {
		rd.Collections = make(map[string]*Entry)
	}

	r.data = &rd
	return nil
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal: %w", err)
	}

	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("registry: write: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: rename: %w", err)
	}
	return nil
}
