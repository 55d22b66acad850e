package metadata

import (
	"context"
)

// DefaultMaxBatchSize is the number of keys written or deleted per
// transaction by PutBatch and DeleteBatch.
const DefaultMaxBatchSize = 1000

// RangeFunc is called once per entry visited by Range. Returning a non-nil
// error stops the scan and is returned from Range unchanged.
type RangeFunc func(path string, stat *FileStat) error

// ============================================================================
// MetadataStore Interface
// ============================================================================

// MetadataStore maps canonical paths to FileStat values.
//
// The store is a thin transactional wrapper over an ordered key-value
// engine. It knows nothing about directories: parent checks, subtree moves
// and type invariants are enforced by the file system layered above it.
//
// Transactions:
// Every method runs in its own scoped transaction which is committed when the
// method succeeds and discarded when it fails. No transaction spans two
// calls.
//
// Ordering:
// Range visits keys in ascending byte order. Because a path is a prefix of
// all of its descendants, every directory is visited before anything below it.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type MetadataStore interface {
	// Get returns the metadata stored for path.
	//
	// Returns:
	//   - *FileStat: A copy of the stored metadata
	//   - error: ErrNotFound (wrapped) if no entry exists, or a storage error
	Get(ctx context.Context, path string) (*FileStat, error)

	// Put stores stat under path, replacing any existing entry.
	Put(ctx context.Context, path string, stat *FileStat) error

	// Delete removes the entry for path. Deleting a missing key is not an error.
	Delete(ctx context.Context, path string) error

	// Range visits every entry whose key starts with prefix, in key order.
	//
	// The scan runs inside one read transaction. fn must not call back into
	// the store with writes; collect the entries first and mutate afterwards.
	Range(ctx context.Context, prefix string, fn RangeFunc) error

	// PutBatch stores many entries. Entries are committed in chunks of at most
	// DefaultMaxBatchSize keys, one transaction per chunk.
	PutBatch(ctx context.Context, entries []Entry) error

	// DeleteBatch removes many keys, chunked like PutBatch.
	DeleteBatch(ctx context.Context, paths []string) error

	// Close releases the underlying engine. The store must not be used afterwards.
	Close() error
}

// Collect gathers every entry under prefix into a slice.
func Collect(ctx context.Context, store MetadataStore, prefix string) ([]Entry, error) {
	var entries []Entry
	err := store.Range(ctx, prefix, func(path string, stat *FileStat) error {
		entries = append(entries, Entry{Path: path, Stat: stat})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Chunk splits n items into consecutive [start, end) windows of at most size items.
func Chunk(n, size int, fn func(start, end int) error) error {
	if size <= 0 {
		size = DefaultMaxBatchSize
	}
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}
