// Package store keeps the live profile set, persists it to the snapshot
// file, and watches that file for out-of-band edits.
package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/lichlabs/confpush/internal/profile"
	"github.com/lichlabs/confpush/internal/protocol"
)

// Store is a mutex-guarded profile set backed by a JSON snapshot file.
type Store struct {
	path string

	mu        sync.Mutex
	set       profile.Set
	lastSaved []byte
}

// Open loads the snapshot at path, or seeds the store with the built-in
// defaults (and persists them) when the file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		set, derr := protocol.DecodeSnapshot(data)
		if derr != nil {
			return nil, fmt.Errorf("reading state file %q: %w", path, derr)
		}
		s.set = set
		s.lastSaved = data
	case os.IsNotExist(err):
		s.set = profile.Defaults()
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("reading state file %q: %w", path, err)
	}

	return s, nil
}

// Snapshot returns a deep copy of the current profile set.
func (s *Store) Snapshot() profile.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Clone()
}

// Get returns a copy of one level's table.
func (s *Store) Get(level int) (profile.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.set[level]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Apply merges per-level field updates into the store and persists the
// result. It returns the number of levels that were updated.
func (s *Store) Apply(updates map[int]map[string]int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for level, fields := range updates {
		t, ok := s.set[level]
		if !ok {
			continue
		}
		t.Merge(fields)
		updated++
	}
	if updated == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		return updated, err
	}
	return updated, nil
}

// persistLocked writes the snapshot atomically (temp file + rename).
// Caller holds s.mu, or has exclusive access during Open.
func (s *Store) persistLocked() error {
	data, err := protocol.EncodeSnapshot(s.set)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	s.lastSaved = data
	return nil
}

// Watch follows the snapshot file with fsnotify and invokes onChange with
// the reloaded set whenever its content changes out-of-band. The store's
// own writes are recognized by content and ignored. Watch blocks until ctx
// is cancelled.
func (s *Store) Watch(ctx context.Context, onChange func(profile.Set)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and our own atomic rename replace the
	// file, which would drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching state dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if set, changed := s.reload(); changed {
				onChange(set)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching state file: %w", err)
		}
	}
}

// reload reads the file and swaps in its content when it differs from the
// last persisted bytes. Unreadable or corrupt content is ignored; the next
// persist will overwrite it.
func (s *Store) reload() (profile.Set, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bytes.Equal(data, s.lastSaved) {
		return nil, false
	}
	set, err := protocol.DecodeSnapshot(data)
	if err != nil {
		return nil, false
	}
	s.set = set
	s.lastSaved = data
	return set.Clone(), true
}
