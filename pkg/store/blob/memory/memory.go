package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
)

// MemoryBlobStore implements blob.BlobStore with an in-memory map.
//
// Content is copied on every Put and Get so callers can never alias the
// stored bytes. A sorted key slice backs Range.
//
// Thread Safety:
// All operations are protected by a read-write mutex.
type MemoryBlobStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	keys   []string
	closed bool
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryBlobStore) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memory blob store is closed")
	}
	return nil
}

func (s *MemoryBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	data, ok := s.data[path]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", path, blob.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (s *MemoryBlobStore) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.putLocked(path, data)
	return nil
}

func (s *MemoryBlobStore) putLocked(path string, data []byte) {
	if _, exists := s.data[path]; !exists {
		i, _ := slices.BinarySearch(s.keys, path)
		s.keys = slices.Insert(s.keys, i, path)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[path] = stored
}

func (s *MemoryBlobStore) Delete(ctx context.Context, path string) error {
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

func (s *MemoryBlobStore) deleteLocked(path string) {
	if _, exists := s.data[path]; !exists {
		return
	}
	delete(s.data, path)
	if i, found := slices.BinarySearch(s.keys, path); found {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
}

func (s *MemoryBlobStore) Range(ctx context.Context, prefix string, fn blob.RangeFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	start, _ := slices.BinarySearch(s.keys, prefix)
	for _, key := range s.keys[start:] {
		if !strings.HasPrefix(key, prefix) {
			break
		}
		if err := fn(key, bytes.Clone(s.data[key])); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryBlobStore) Keys(ctx context.Context, prefix string, fn blob.KeyFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return err
	}
	start, _ := slices.BinarySearch(s.keys, prefix)
	var matched []string
	for _, key := range s.keys[start:] {
		if !strings.HasPrefix(key, prefix) {
			break
		}
		matched = append(matched, key)
	}
	s.mu.RUnlock()

	for _, key := range matched {
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryBlobStore) PutBatch(ctx context.Context, entries []blob.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	for _, e := range entries {
		s.putLocked(e.Path, e.Data)
	}
	return nil
}

func (s *MemoryBlobStore) DeleteBatch(ctx context.Context, paths []string) error {
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

// TotalSize returns the sum of all stored blob sizes in bytes.
func (s *MemoryBlobStore) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, d := range s.data {
		total += int64(len(d))
	}
	return total
}

func (s *MemoryBlobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
