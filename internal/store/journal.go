package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/vectorindex"
)

// Op names the unified-transaction shape a TransactionRecord replays
// (spec.md §4.7's addDocument/deleteDocument).
type Op string

const (
	OpAddDocument    Op = "add_document"
	OpDeleteDocument Op = "delete_document"
)

// TransactionRecord names the vector and graph mutations one unified
// transaction performs, durable enough to redo or discard the
// transaction after an abrupt process loss (spec.md §4.9). It carries
// the full mutation payload (not just an id) so a missing side can be
// redone without re-deriving it from the original caller.
type TransactionRecord struct {
	ID         string
	Collection string
	Op         Op
	NsID       string
	VectorItem *vectorindex.Item
	GraphNode  *graphstore.Node

	VectorCommitted bool
	GraphCommitted  bool
	CreatedAt       time.Time
}

// Journal is the per-collection write-ahead transaction log, grounded
// on the teacher's vectorstore.WAL: one gob-encoded file per entry,
// written via a temp-file-then-fsync-then-rename sequence so a crash
// mid-write never leaves a corrupt record visible under its final
// name. Unlike the teacher's WAL, this journal never leaves the local
// disk, so the teacher's HMAC-integrity and secret-scrubbing layers
// (aimed at tampering/leakage during remote sync) have no role here
// and are not carried over -- see DESIGN.md.
type Journal struct {
	mu  sync.Mutex
	dir string
}

// OpenJournal opens (creating if absent) the wal/ subdirectory under a
// collection's storage directory.
func OpenJournal(collectionDir string) (*Journal, error) {
	dir := filepath.Join(collectionDir, "wal")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: journal: %w", err)
	}
	return &Journal{dir: dir}, nil
}

func (j *Journal) path(id string) string {
	return filepath.Join(j.dir, id+".txn")
}

// Begin durably records a new pending transaction before either store
// is mutated.
func (j *Journal) Begin(collection string, op Op, nsID string, vectorItem *vectorindex.Item, graphNode *graphstore.Node) (*TransactionRecord, error) {
	rec := &TransactionRecord{
		ID:         uuid.NewString(),
		Collection: collection,
		Op:         op,
		NsID:       nsID,
		VectorItem: vectorItem,
		GraphNode:  graphNode,
		CreatedAt:  time.Now().UTC(),
	}
	if err := j.write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkVectorCommitted records that the vector-side mutation succeeded.
func (j *Journal) MarkVectorCommitted(rec *TransactionRecord) error {
	rec.VectorCommitted = true
	return j.write(rec)
}

// MarkGraphCommitted records that the graph-side mutation succeeded.
func (j *Journal) MarkGraphCommitted(rec *TransactionRecord) error {
	rec.GraphCommitted = true
	return j.write(rec)
}

// Commit declares the transaction durably complete by removing its
// record -- close() must leave no journal behind for a clean shutdown
// (spec.md §4.9).
func (j *Journal) Commit(rec *TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.Remove(j.path(rec.ID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: journal commit: %w", err)
	}
	return nil
}

// Discard removes a record without further action, used once recovery
// has redone or determined no redo is needed for it.
func (j *Journal) Discard(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.Remove(j.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: journal discard: %w", err)
	}
	return nil
}

// Pending lists every transaction record still on disk -- an
// unfinished transaction from a previous process, to be replayed
// before the collection serves any operation (spec.md §4.9).
func (j *Journal) Pending() ([]TransactionRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(j.dir, "*.txn"))
	if err != nil {
		return nil, fmt.Errorf("store: journal list: %w", err)
	}

	records := make([]TransactionRecord, 0, len(matches))
	for _, m := range matches {
		rec, err := readRecord(m)
		if err != nil {
			continue // corrupt entry: best-effort skip, matching teacher's WAL.load behaviour
		}
		records = append(records, rec)
	}
	return records, nil
}

func (j *Journal) write(rec *TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := j.path(rec.ID)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("store: journal write: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(rec); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: journal encode: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: journal sync: %w", err)
	}
	f.Close()

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: journal rename: %w", err)
	}
	return nil
}

func readRecord(path string) (TransactionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return TransactionRecord{}, err
	}
	defer f.Close()

	var rec TransactionRecord
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		return TransactionRecord{}, err
	}
	return rec, nil
}
