// Package badger stores file content in BadgerDB.
//
// Blob keys live in the "b:" namespace ("b:/src/index.ts") so one database
// directory can hold both metadata ("m:") and content.
//
// In-memory databases have no value log and cannot hold a value at or above
// the value threshold. There, content larger than the chunk size is split
// into "c:" keys and the "b:" key holds the chunk count.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
)

const (
	prefixBlob  = "b:"
	prefixChunk = "c:"

	// metaChunked marks a "b:" entry whose value is a chunk count.
	metaChunked byte = 1

	maxChunkSize = 256 << 10
)

func keyBlob(path string) []byte {
	return []byte(prefixBlob + path)
}

// keyChunk is "c:" + path + NUL + big-endian index.
func keyChunk(path string, i int) []byte {
	key := make([]byte, 0, len(prefixChunk)+len(path)+9)
	key = append(key, prefixChunk...)
	key = append(key, path...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, uint64(i))
}

func pathFromKey(key []byte) string {
	return strings.TrimPrefix(string(key), prefixBlob)
}

// BadgerBlobStore implements blob.BlobStore on top of BadgerDB.
//
// Values are stored as raw bytes. On disk, large values end up in BadgerDB's
// value log; the orphaned blob collector calls RunGC after deleting.
type BadgerBlobStore struct {
	db        *badger.DB
	ownsDB    bool
	batchSize int

	// chunkSize is zero when values are stored whole.
	chunkSize int
}

// BadgerBlobStoreConfig contains configuration for the BadgerDB blob store.
type BadgerBlobStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps all data in RAM
	InMemory bool `mapstructure:"in_memory"`

	// BatchSize overrides the number of keys per batch transaction
	BatchSize int `mapstructure:"batch_size"`

	// ValueThreshold is the value size in bytes above which content is kept
	// in the value log instead of the LSM tree (default: BadgerDB's own)
	ValueThreshold int64 `mapstructure:"value_threshold"`
}

// NewBadgerBlobStore opens (or creates) a BadgerDB database for content.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Database location and tuning
//
// Returns:
//   - *BadgerBlobStore: Store ready for use
//   - error: Error if the database cannot be opened
func NewBadgerBlobStore(ctx context.Context, config BadgerBlobStoreConfig) (*BadgerBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	if config.ValueThreshold > 0 {
		opts = opts.WithValueThreshold(config.ValueThreshold)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	s := NewBadgerBlobStoreFromDB(db, config.BatchSize)
	s.ownsDB = true
	return s, nil
}

// NewBadgerBlobStoreFromDB wraps an already open database without taking
// ownership of it.
func NewBadgerBlobStoreFromDB(db *badger.DB, batchSize int) *BadgerBlobStore {
	if batchSize <= 0 {
		batchSize = blob.DefaultMaxBatchSize
	}
	s := &BadgerBlobStore{db: db, batchSize: batchSize}
	if opts := db.Opts(); opts.InMemory {
		s.chunkSize = int(min(maxChunkSize, max(opts.ValueThreshold/2, 1)))
	}
	return s
}

func (s *BadgerBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBlob(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("blob %s: %w", path, blob.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get blob: %w", err)
		}
		data, err = readValue(txn, path, item)
		return err
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *BadgerBlobStore) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.set(txn, path, data); err != nil {
			return fmt.Errorf("failed to store blob: %w", err)
		}
		return nil
	})
}

func (s *BadgerBlobStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := remove(txn, path); err != nil {
			return fmt.Errorf("failed to delete blob: %w", err)
		}
		return nil
	})
}

func (s *BadgerBlobStore) Range(ctx context.Context, prefix string, fn blob.RangeFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyBlob(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			path := pathFromKey(item.KeyCopy(nil))
			data, err := readValue(txn, path, item)
			if err != nil {
				return fmt.Errorf("failed to read blob: %w", err)
			}
			if err := fn(path, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys walks the "b:" keys only; chunks and values are never read.
func (s *BadgerBlobStore) Keys(ctx context.Context, prefix string, fn blob.KeyFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyBlob(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(pathFromKey(it.Item().KeyCopy(nil))); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerBlobStore) PutBatch(ctx context.Context, entries []blob.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return blob.Chunk(len(entries), s.batchSize, func(start, end int) error {
		return s.db.Update(func(txn *badger.Txn) error {
			for _, e := range entries[start:end] {
				if err := s.set(txn, e.Path, e.Data); err != nil {
					return fmt.Errorf("failed to store blob for %s: %w", e.Path, err)
				}
			}
			return nil
		})
	})
}

func (s *BadgerBlobStore) DeleteBatch(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return blob.Chunk(len(paths), s.batchSize, func(start, end int) error {
		return s.db.Update(func(txn *badger.Txn) error {
			for _, p := range paths[start:end] {
				if err := remove(txn, p); err != nil {
					return fmt.Errorf("failed to delete blob for %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// set writes data under path, chunked when it does not fit in one value,
// and drops any chunks left over from the previous value.
func (s *BadgerBlobStore) set(txn *badger.Txn, path string, data []byte) error {
	if s.chunkSize == 0 || len(data) <= s.chunkSize {
		if err := dropChunks(txn, path, 0); err != nil {
			return err
		}
		return txn.Set(keyBlob(path), data)
	}

	n := (len(data) + s.chunkSize - 1) / s.chunkSize
	if err := dropChunks(txn, path, n); err != nil {
		return err
	}
	for i := range n {
		chunk := data[i*s.chunkSize : min((i+1)*s.chunkSize, len(data))]
		if err := txn.Set(keyChunk(path, i), chunk); err != nil {
			return fmt.Errorf("chunk %d of %s: %w", i, path, err)
		}
	}
	count := binary.BigEndian.AppendUint64(nil, uint64(n))
	return txn.SetEntry(badger.NewEntry(keyBlob(path), count).WithMeta(metaChunked))
}

func remove(txn *badger.Txn, path string) error {
	if err := dropChunks(txn, path, 0); err != nil {
		return err
	}
	return txn.Delete(keyBlob(path))
}

// dropChunks deletes the chunks of the current value of path with index
// from or above.
func dropChunks(txn *badger.Txn, path string, from int) error {
	item, err := txn.Get(keyBlob(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if item.UserMeta()&metaChunked == 0 {
		return nil
	}
	n, err := chunkCount(path, item)
	if err != nil {
		return err
	}
	for i := from; i < n; i++ {
		if err := txn.Delete(keyChunk(path, i)); err != nil {
			return err
		}
	}
	return nil
}

func chunkCount(path string, item *badger.Item) (int, error) {
	head, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(head) != 8 {
		return 0, fmt.Errorf("blob %s: malformed chunk header", path)
	}
	return int(binary.BigEndian.Uint64(head)), nil
}

// readValue returns the content behind a "b:" item, joining chunks if needed.
func readValue(txn *badger.Txn, path string, item *badger.Item) ([]byte, error) {
	if item.UserMeta()&metaChunked == 0 {
		return item.ValueCopy(nil)
	}

	n, err := chunkCount(path, item)
	if err != nil {
		return nil, err
	}
	var data []byte
	for i := range n {
		chunk, err := txn.Get(keyChunk(path, i))
		if err != nil {
			return nil, fmt.Errorf("blob %s: chunk %d: %w", path, i, err)
		}
		err = chunk.Value(func(v []byte) error {
			data = append(data, v...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// RunGC reclaims value-log space until BadgerDB reports nothing left to
// rewrite. It returns the number of value-log files rewritten.
//
// In-memory databases have no value log; RunGC is a no-op for them.
func (s *BadgerBlobStore) RunGC(ctx context.Context, discardRatio float64) (int, error) {
	if s.db.Opts().InMemory {
		return 0, nil
	}

	rewritten := 0
	for {
		if err := ctx.Err(); err != nil {
			return rewritten, err
		}
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return rewritten, fmt.Errorf("value log GC failed: %w", err)
		}
		rewritten++
	}

	if rewritten > 0 {
		logger.Debug("badger blob store: value log GC rewrote %d file(s)", rewritten)
	}
	return rewritten, nil
}

// Close closes the database if this store opened it.
func (s *BadgerBlobStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
