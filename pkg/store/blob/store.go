// Package blob defines the content store that holds the raw bytes of every
// regular file, keyed by canonical path.
package blob

import (
	"context"
	"errors"
)

// DefaultMaxBatchSize is the number of keys written or deleted per
// transaction (or per request, for object storage) by the batch methods.
const DefaultMaxBatchSize = 1000

// ErrNotFound is returned by Get when no blob exists for a path.
var ErrNotFound = errors.New("blob not found")

// RangeFunc is called once per blob visited by Range. Returning a non-nil
// error stops the scan.
type RangeFunc func(path string, data []byte) error

// KeyFunc is called once per path visited by Keys. Returning a non-nil error
// stops the scan.
type KeyFunc func(path string) error

// Entry pairs a canonical path with its content.
type Entry struct {
	Path string
	Data []byte
}

// BlobStore maps canonical paths to file content.
//
// Like the metadata store it has no notion of directories. Every call is its
// own scoped transaction; batch calls commit once per chunk of
// DefaultMaxBatchSize keys.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type BlobStore interface {
	// Get returns the content stored for path.
	//
	// Returns:
	//   - []byte: The content (callers may modify the returned slice)
	//   - error: ErrNotFound (wrapped) if no blob exists, or a storage error
	Get(ctx context.Context, path string) ([]byte, error)

	// Put stores data under path, replacing any existing blob.
	Put(ctx context.Context, path string, data []byte) error

	// Delete removes the blob for path. A missing key is not an error.
	Delete(ctx context.Context, path string) error

	// Range visits every blob whose key starts with prefix, in key order.
	Range(ctx context.Context, prefix string, fn RangeFunc) error

	// Keys visits every blob path that starts with prefix, in key order,
	// without reading any content.
	Keys(ctx context.Context, prefix string, fn KeyFunc) error

	// PutBatch stores many blobs, chunked by DefaultMaxBatchSize.
	PutBatch(ctx context.Context, entries []Entry) error

	// DeleteBatch removes many blobs, chunked by DefaultMaxBatchSize.
	DeleteBatch(ctx context.Context, paths []string) error

	// Close releases the store.
	Close() error
}

// Chunk splits n items into consecutive [start, end) windows of at most size items.
func Chunk(n, size int, fn func(start, end int) error) error {
	if size <= 0 {
		size = DefaultMaxBatchSize
	}
	for start := 0; start < n; start += size {
		if err := fn(start, min(start+size, n)); err != nil {
			return err
		}
	}
	return nil
}
