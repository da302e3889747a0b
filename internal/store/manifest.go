// Package store implements Persistence & Recovery (C9): the storage
// root lock, the manifest describing the on-disk layout version, and
// the write-ahead transaction journal that makes §4.7's unified
// transaction durable and recoverable after an abrupt process loss.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/noumenal/ckg/internal/ckgerr"
)

// Manifest records the on-disk layout version a storage root was
// written with (spec.md §4.9).
type Manifest struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var ErrUnsupportedManifestVersion = fmt.Errorf("store: manifest version unsupported: %w", ckgerr.ErrUnsupportedVersion)

const manifestFile = "manifest.json"

// LoadOrCreateManifest opens root's manifest, creating one at
// currentVersion if absent. It refuses to open a manifest whose
// version exceeds currentVersion (the engine cannot safely downgrade a
// newer on-disk layout).
func LoadOrCreateManifest(root string, currentVersion int) (*Manifest, error) {
	path := filepath.Join(root, manifestFile)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		now := time.Now().UTC()
		m := &Manifest{Version: currentVersion, CreatedAt: now, UpdatedAt: now}
		if err := writeManifest(path, m); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("store: parse manifest: %w", err)
	}
	if m.Version > currentVersion {
		return nil, fmt.Errorf("%w: on-disk version %d, engine supports up to %d", ErrUnsupportedManifestVersion, m.Version, currentVersion)
	}
	return &m, nil
}

// Touch updates the manifest's UpdatedAt and persists it.
func (m *Manifest) Touch(root string) error {
	m.UpdatedAt = time.Now().UTC()
	return writeManifest(filepath.Join(root, manifestFile), m)
}

func writeManifest(path string, m *Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("store: write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename manifest: %w", err)
	}
	return nil
}
