package store

import (
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/vectorindex"
)

func init() {
	// Metadata/Properties are map[string]any; gob requires concrete
	// types carried through an interface to be registered up front.
	gob.Register(string(""))
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(float32(0))
	gob.Register(bool(false))
	gob.Register(time.Time{})
	gob.Register([]string{})
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// Recover replays a journal's pending transaction records against an
// already-opened vector index and graph store, redoing whichever side
// of a unified transaction did not durably commit before the previous
// process exited (spec.md §4.9 recovery steps 1-2). It must run before
// a collection serves any request.
//
// An addDocument record with neither side committed names a transaction
// that never got past Begin: nothing observable happened, so it is
// simply discarded. A deleteDocument record instead has every side not
// yet marked committed deleted again; a node or vector already gone is
// not an error. An addDocument record with one side committed is redone
// on the other side; CreateNode and Insert are both upserts from the recovering
// side's point of view (Insert's ErrDuplicateID is treated as "already
// applied"), so redo is safe to run even if it turns out the missing
// side had actually landed just before the crash.
func Recover(j *Journal, index *vectorindex.Index, graph *graphstore.Store) (int, error) {
	pending, err := j.Pending()
	if err != nil {
		return 0, err
	}

	for _, rec := range pending {
		if err := recoverOne(rec, index, graph); err != nil {
			return 0, fmt.Errorf("store: recover %s: %w", rec.ID, err)
		}
		if err := j.Discard(rec.ID); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

func recoverOne(rec TransactionRecord, index *vectorindex.Index, graph *graphstore.Store) error {
	switch rec.Op {
	case OpAddDocument:
		return recoverAdd(rec, index, graph)
	case OpDeleteDocument:
		return recoverDelete(rec, index, graph)
	default:
		return fmt.Errorf("store: unknown transaction op %q", rec.Op)
	}
}

func recoverAdd(rec TransactionRecord, index *vectorindex.Index, graph *graphstore.Store) error {
	if !rec.VectorCommitted && rec.GraphCommitted {
		if rec.VectorItem == nil {
			return nil
		}
		if _, err := index.Insert(*rec.VectorItem); err != nil && !errors.Is(err, vectorindex.ErrDuplicateID) {
			return err
		}
		return nil
	}
	if rec.VectorCommitted && !rec.GraphCommitted {
		if rec.GraphNode == nil {
			return nil
		}
		return graph.CreateNode(*rec.GraphNode)
	}
	// Both committed (transaction reached completion but Commit() never
	// ran), or neither committed (crash happened before any side ran):
	// either way there is nothing left to redo.
	return nil
}

func recoverDelete(rec TransactionRecord, index *vectorindex.Index, graph *graphstore.Store) error {
	if rec.NsID == "" {
		return nil
	}
	if !rec.VectorCommitted {
		if _, err := index.Delete(rec.NsID); err != nil {
			return err
		}
	}
	if !rec.GraphCommitted {
		if err := graph.DeleteNode(rec.NsID); err != nil && !errors.Is(err, graphstore.ErrNodeNotFound) {
			return err
		}
	}
	return nil
}
