// Package persistence implements the snapshot store from spec.md §4.9: a
// single JSON document capturing every in-flight record, written atomically
// via a temp-file-plus-rename so a crash mid-write never corrupts the
// on-disk snapshot, grounded on the teacher's
// services/governd/server/nonce_store.go FileNonceStore.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liminal/core/types"
)

// DefaultFileName is the snapshot file name written inside the configured
// persistence directory.
const DefaultFileName = "tx-snapshot.json"

// Store persists and restores the full set of in-flight records as a single
// snapshot file. A nil or empty path makes every operation a no-op,
// degrading to the in-memory-only state the state machine already holds.
type Store struct {
	mu   sync.Mutex
	path string
}

// New constructs a Store writing its snapshot to path. An empty path
// disables persistence entirely.
func New(path string) *Store {
	return &Store{path: path}
}

// Enabled reports whether this store actually persists to disk.
func (s *Store) Enabled() bool {
	return s != nil && s.path != ""
}

type snapshotDocument struct {
	Records []*types.Record `json:"records"`
}

// Save writes records to the snapshot file atomically: it writes to a
// temp file in the same directory, restricts its permissions, then renames
// it over the destination so a concurrent reader never observes a partial
// write.
func (s *Store) Save(records []*types.Record) error {
	if !s.Enabled() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := snapshotDocument{Records: records}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("persistence: create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tx-snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("persistence: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: write temp snapshot: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: chmod temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: fsync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("persistence: rename snapshot into place: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("persistence: fsync snapshot dir: %w", err)
	}
	return nil
}

// syncDir fsyncs a directory so a completed rename survives a crash; without
// it the directory entry update can itself be lost even though the rename
// appeared atomic to the process that issued it.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Load reads the snapshot file, returning an empty slice if persistence is
// disabled or no snapshot has ever been written.
func (s *Store) Load() ([]*types.Record, error) {
	if !s.Enabled() {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: read snapshot: %w", err)
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal snapshot: %w", err)
	}
	return doc.Records, nil
}

// PathFromEnv resolves the snapshot path from the LIMINAL_PERSIST_PATH
// environment variable, joining DefaultFileName when the variable names a
// directory. An empty environment variable disables persistence.
func PathFromEnv() string {
	dir := os.Getenv("LIMINAL_PERSIST_PATH")
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, DefaultFileName)
}
