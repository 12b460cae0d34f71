// Package snapshot persists the last-known set of catalog entries.
//
// Exactly one snapshot is current at any time. It is replaced wholesale
// after a fully successful cycle and never partially written: the file
// backend writes to a temp file and renames it into place.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bagwatch/internal/catalog"
)

// ErrPersist wraps any failure to durably replace the snapshot.
var ErrPersist = errors.New("snapshot persist failed")

// Store holds the current snapshot.
type Store interface {
	// Load returns the current snapshot; a missing snapshot is an empty
	// slice, not an error.
	Load(ctx context.Context) ([]catalog.Entry, error)
	// Replace atomically swaps in a new snapshot.
	Replace(ctx context.Context, entries []catalog.Entry) error
}

// FileStore keeps the snapshot as a JSON array on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(ctx context.Context) ([]catalog.Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []catalog.Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("corrupt snapshot %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *FileStore) Replace(ctx context.Context, entries []catalog.Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if entries == nil {
		entries = []catalog.Entry{}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
