package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"evenkeel/internal/fingerprint"
	"evenkeel/internal/logging"
	"evenkeel/internal/services"
)

// FileRecord captures the last successful normalization of one path.
type FileRecord struct {
	Signature   fingerprint.Signature `json:"signature"`
	Fingerprint string                `json:"fingerprint"`
	ProcessedAt time.Time             `json:"processed_at"`
}

// document is the on-disk shape of the state file.
type document struct {
	Files map[string]FileRecord `json:"files"`
}

// Store is the durable path-to-record mapping that makes repeated runs
// idempotent. All mutations are serialized behind one mutex and every commit
// rewrites the whole document atomically; a crash mid-commit leaves the prior
// document intact.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]FileRecord
}

// Open loads the state document at path. A missing or corrupt document is
// logged and treated as empty; load problems are never fatal because the
// worst outcome is reprocessing files that were already normalized.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	store := &Store{path: path, logger: logger, files: make(map[string]FileRecord)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("state file unreadable, starting empty", logging.String("path", path), logging.Error(err))
		}
		return store
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc.Files == nil {
		logger.Warn("state file corrupt, starting empty", logging.String("path", path), logging.Error(err))
		return store
	}

	store.files = doc.Files
	return store
}

// Path returns the backing document path.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of tracked paths.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Lookup returns the record for path, if one exists.
func (s *Store) Lookup(path string) (FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	return rec, ok
}

// IsUpToDate reports whether a record exists for path with both the signature
// and the fingerprint matching.
func (s *Store) IsUpToDate(path string, sig fingerprint.Signature, fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	return ok && rec.Signature == sig && rec.Fingerprint == fp
}

// MatchesSignature reports whether a record exists for path whose signature
// alone matches, which lets callers skip the fingerprint read entirely.
func (s *Store) MatchesSignature(path string, sig fingerprint.Signature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	return ok && rec.Signature == sig
}

// Commit durably persists the record for path. The in-memory map is updated
// only after the document rewrite succeeds.
func (s *Store) Commit(path string, rec FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	next[path] = rec
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.files = next
	return nil
}

// RefreshSignature updates the stored signature for a path whose fingerprint
// still matches (an mtime-only touch), keeping the original processed_at.
func (s *Store) RefreshSignature(path string, sig fingerprint.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[path]
	if !ok {
		return fmt.Errorf("state: no record for %s", path)
	}
	rec.Signature = sig

	next := s.cloneLocked()
	next[path] = rec
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.files = next
	return nil
}

// Forget removes the record for path, if any.
func (s *Store) Forget(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[path]; !ok {
		return nil
	}
	next := s.cloneLocked()
	delete(next, path)
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.files = next
	return nil
}

// Clear removes every record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]FileRecord)
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.files = next
	return nil
}

// Snapshot returns a point-in-time copy of the map for iteration.
func (s *Store) Snapshot() map[string]FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

func (s *Store) cloneLocked() map[string]FileRecord {
	clone := make(map[string]FileRecord, len(s.files))
	for path, rec := range s.files {
		clone[path] = rec
	}
	return clone
}

// persistLocked rewrites the whole document via temp-file-plus-rename. The
// map is small relative to a media library, so the full rewrite buys
// crash-safety at negligible cost.
func (s *Store) persistLocked(files map[string]FileRecord) error {
	data, err := json.MarshalIndent(document{Files: files}, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrIO, "state", "marshal", "", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return services.Wrap(services.ErrIO, "state", "ensure directory", "", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "state", "write temp", "", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrIO, "state", "rename", "", err)
	}
	return nil
}
