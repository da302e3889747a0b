package store

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/noumenal/ckg/internal/ckgerr"
)

// ErrStorageRootLocked is returned when another process already holds
// the storage root's exclusive lock.
var ErrStorageRootLocked = fmt.Errorf("store: storage root already locked by another process: %w", ckgerr.ErrConflict)

// RootLock guards a storage root against concurrent processes opening
// it at once -- the single-process multi-threaded model spec.md §5
// describes assumes exactly one process owns a given root.
type RootLock struct {
	flock *flock.Flock
}

// AcquireRootLock takes an exclusive, non-blocking lock on root's
// lockfile. Returns ErrStorageRootLocked if another process holds it.
func AcquireRootLock(root string) (*RootLock, error) {
	path := filepath.Join(root, ".lock")
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("store: acquire root lock: %w", err)
	}
	if !locked {
		return nil, ErrStorageRootLocked
	}
	return &RootLock{flock: fl}, nil
}

// Release unlocks the storage root.
func (l *RootLock) Release() error {
	return l.flock.Unlock()
}
