package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
)

// MemoryMetadataStore implements metadata.MetadataStore in memory.
//
// It is suitable for tests and for ephemeral workspaces that do not need to
// survive a restart.
//
// Storage Model:
//   - entries: path -> FileStat (values are copied on the way in and out)
//   - keys: every path in ascending order, kept sorted on insert so that
//     Range can binary-search to the first key of a prefix
//
// Thread Safety:
// All operations are protected by a single read-write mutex. Each method
// holds the lock for its whole duration, which gives the same
// one-call-one-transaction behaviour as the persistent stores.
type MemoryMetadataStore struct {
	mu      sync.RWMutex
	entries map[string]*metadata.FileStat
	keys    []string
	closed  bool
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		entries: make(map[string]*metadata.FileStat),
	}
}

func (s *MemoryMetadataStore) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memory metadata store is closed")
	}
	return nil
}

func (s *MemoryMetadataStore) Get(ctx context.Context, path string) (*metadata.FileStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stat, ok := s.entries[path]
	if !ok {
		return nil, fmt.Errorf("metadata %s: %w", path, metadata.ErrNotFound)
	}
	return stat.Clone(), nil
}

func (s *MemoryMetadataStore) Put(ctx context.Context, path string, stat *metadata.FileStat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stat == nil {
		return fmt.Errorf("metadata %s: nil stat", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.putLocked(path, stat)
	return nil
}

func (s *MemoryMetadataStore) putLocked(path string, stat *metadata.FileStat) {
	if _, exists := s.entries[path]; !exists {
		i, _ := slices.BinarySearch(s.keys, path)
		s.keys = slices.Insert(s.keys, i, path)
	}
	s.entries[path] = stat.Clone()
}

func (s *MemoryMetadataStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.deleteLocked(path)
	return nil
}

func (s *MemoryMetadataStore) deleteLocked(path string) {
	if _, exists := s.entries[path]; !exists {
		return
	}
	delete(s.entries, path)
	if i, found := slices.BinarySearch(s.keys, path); found {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
}

func (s *MemoryMetadataStore) Range(ctx context.Context, prefix string, fn metadata.RangeFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	start, _ := slices.BinarySearch(s.keys, prefix)
	for i := start; i < len(s.keys); i++ {
		key := s.keys[i]
		if !strings.HasPrefix(key, prefix) {
			break
		}
		if err := fn(key, s.entries[key].Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryMetadataStore) PutBatch(ctx context.Context, entries []metadata.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Stat == nil {
			return fmt.Errorf("metadata %s: nil stat", e.Path)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	for _, e := range entries {
		s.putLocked(e.Path, e.Stat)
	}
	return nil
}

func (s *MemoryMetadataStore) DeleteBatch(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	for _, p := range paths {
		s.deleteLocked(p)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryMetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
