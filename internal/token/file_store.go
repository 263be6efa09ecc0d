package token

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// fileEntry is the on-disk form: {"key": {"value": "...", "issuedAt": 1700000000}}.
type fileEntry struct {
	Value    string `json:"value"`
	IssuedAt int64  `json:"issuedAt"` // Unix seconds
}

// FileStore keeps tokens in a JSON file so they survive between runs.
// Writes go to a temp file that is renamed over the original.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, key string) (AuthToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return AuthToken{}, false, err
	}
	e, ok := entries[key]
	if !ok {
		return AuthToken{}, false, nil
	}
	return AuthToken{Value: e.Value, IssuedAt: time.Unix(e.IssuedAt, 0)}, true, nil
}

func (s *FileStore) Put(_ context.Context, key string, tok AuthToken) error {
	return s.update(func(entries map[string]fileEntry) {
		entries[key] = fileEntry{Value: tok.Value, IssuedAt: tok.IssuedAt.Unix()}
	})
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	return s.update(func(entries map[string]fileEntry) {
		delete(entries, key)
	})
}

func (s *FileStore) Clear(context.Context) error {
	return s.update(func(entries map[string]fileEntry) {
		clear(entries)
	})
}

func (s *FileStore) Keys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(entries), nil
}

func (s *FileStore) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]fileEntry), nil
		}
		return nil, fmt.Errorf("reading token store: %w", err)
	}

	entries := make(map[string]fileEntry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing token store %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *FileStore) update(fn func(map[string]fileEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	fn(entries)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token store: %w", err)
	}

	// Atomic write: temp file + rename
	tmpFile, err := os.CreateTemp(dir, "tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing token store: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming token store: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
