package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.MetadataStore on top of BadgerDB.
//
// Every method maps onto exactly one BadgerDB transaction (db.View for
// reads, db.Update for writes) except the batch methods, which open one
// transaction per chunk of metadata.DefaultMaxBatchSize keys.
//
// Thread Safety:
// BadgerDB transactions are safe for concurrent use; the store holds no
// state of its own beyond the handle.
type BadgerMetadataStore struct {
	db        *badger.DB
	batchSize int
}

// BadgerMetadataStoreConfig contains configuration for the BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	// Ignored when InMemory is true.
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps all data in RAM. Used by tests and scratch workspaces.
	InMemory bool `mapstructure:"in_memory"`

	// BatchSize overrides the number of keys per batch transaction
	BatchSize int `mapstructure:"batch_size"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, options are derived from the fields above.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB database and wraps it
// as a metadata store.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Database location and tuning
//
// Returns:
//   - *BadgerMetadataStore: Store ready for use
//   - error: Error if the database cannot be opened
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := badger.Open(buildOptions(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = metadata.DefaultMaxBatchSize
	}
	return &BadgerMetadataStore{db: db, batchSize: batchSize}, nil
}

func buildOptions(config BadgerMetadataStoreConfig) badger.Options {
	if config.BadgerOptions != nil {
		return *config.BadgerOptions
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.DBPath)
	}

	// Stats are tiny JSON documents, compression is not worth the CPU
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	return opts
}

// DB exposes the underlying database handle so a blob store can share it.
// The metadata store keeps ownership and closes it.
func (s *BadgerMetadataStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerMetadataStore) Get(ctx context.Context, path string) (*metadata.FileStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stat *metadata.FileStat
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMeta(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("metadata %s: %w", path, metadata.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get metadata: %w", err)
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeStat(val)
			if err != nil {
				return err
			}
			stat = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stat, nil
}

func (s *BadgerMetadataStore) Put(ctx context.Context, path string, stat *metadata.FileStat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stat == nil {
		return fmt.Errorf("metadata %s: nil stat", path)
	}

	data, err := encodeStat(stat)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyMeta(path), data); err != nil {
			return fmt.Errorf("failed to store metadata: %w", err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// Deleting a missing key is a no-op in BadgerDB
		if err := txn.Delete(keyMeta(path)); err != nil {
			return fmt.Errorf("failed to delete metadata: %w", err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) Range(ctx context.Context, prefix string, fn metadata.RangeFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyMeta(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			var stat *metadata.FileStat
			err := item.Value(func(val []byte) error {
				decoded, err := decodeStat(val)
				if err != nil {
					return err
				}
				stat = decoded
				return nil
			})
			if err != nil {
				return err
			}

			if err := fn(pathFromKey(item.KeyCopy(nil)), stat); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerMetadataStore) PutBatch(ctx context.Context, entries []metadata.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return metadata.Chunk(len(entries), s.batchSize, func(start, end int) error {
		return s.db.Update(func(txn *badger.Txn) error {
			for _, e := range entries[start:end] {
				if e.Stat == nil {
					return fmt.Errorf("metadata %s: nil stat", e.Path)
				}
				data, err := encodeStat(e.Stat)
				if err != nil {
					return err
				}
				if err := txn.Set(keyMeta(e.Path), data); err != nil {
					return fmt.Errorf("failed to store metadata for %s: %w", e.Path, err)
				}
			}
			return nil
		})
	})
}

func (s *BadgerMetadataStore) DeleteBatch(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return metadata.Chunk(len(paths), s.batchSize, func(start, end int) error {
		return s.db.Update(func(txn *badger.Txn) error {
			for _, p := range paths[start:end] {
				if err := txn.Delete(keyMeta(p)); err != nil {
					return fmt.Errorf("failed to delete metadata for %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// Healthcheck verifies the database accepts read transactions.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger metadata store is closed")
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// Close closes the database, including for blob stores sharing it.
//
// The close operation waits for pending transactions and flushes data to disk.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
