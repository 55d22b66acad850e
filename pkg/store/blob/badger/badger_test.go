package badger

import (
	"bytes"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
	blobtesting "github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/testing"
)

func TestBadgerBlobStore(t *testing.T) {
	suite := &blobtesting.StoreTestSuite{
		NewStore: func() blob.BlobStore {
			store, err := NewBadgerBlobStore(t.Context(), BadgerBlobStoreConfig{InMemory: true})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerBlobStore_SharedDB(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := t.Context()
	store := NewBadgerBlobStoreFromDB(db, 0)
	require.NoError(t, store.Put(ctx, "/a", []byte("x")))

	// Close must not close a database the store does not own
	require.NoError(t, store.Close())
	assert.False(t, db.IsClosed())

	data, err := store.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestBadgerBlobStore_RunGC(t *testing.T) {
	ctx := t.Context()

	mem, err := NewBadgerBlobStore(ctx, BadgerBlobStoreConfig{InMemory: true})
	require.NoError(t, err)
	defer func() { _ = mem.Close() }()

	n, err := mem.RunGC(ctx, 0.5)
	require.NoError(t, err)
	assert.Zero(t, n)

	disk, err := NewBadgerBlobStore(ctx, BadgerBlobStoreConfig{DBPath: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = disk.Close() }()

	require.NoError(t, disk.Put(ctx, "/a", []byte("content")))
	_, err = disk.RunGC(ctx, 0.5)
	assert.NoError(t, err)
}

// chunkKeys counts the raw chunk keys left in the database.
func chunkKeys(t *testing.T, s *BadgerBlobStore) int {
	t.Helper()
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixChunk)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestBadgerBlobStore_InMemoryChunking(t *testing.T) {
	ctx := t.Context()

	store, err := NewBadgerBlobStore(ctx, BadgerBlobStoreConfig{InMemory: true, ValueThreshold: 1024})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.Equal(t, 512, store.chunkSize)

	large := bytes.Repeat([]byte("abcdefg"), 1000)
	require.NoError(t, store.Put(ctx, "/a", large))
	assert.Equal(t, 14, chunkKeys(t, store))

	data, err := store.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, large, data)

	// Shrinking drops the chunks past the new end
	require.NoError(t, store.Put(ctx, "/a", large[:1500]))
	assert.Equal(t, 3, chunkKeys(t, store))
	data, err = store.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, large[:1500], data)

	require.NoError(t, store.Put(ctx, "/a", []byte("tiny")))
	assert.Zero(t, chunkKeys(t, store))

	require.NoError(t, store.Put(ctx, "/a", large))
	require.NoError(t, store.Delete(ctx, "/a"))
	assert.Zero(t, chunkKeys(t, store))
}

func TestBadgerBlobStore_OnDiskStoresWholeValues(t *testing.T) {
	ctx := t.Context()

	store, err := NewBadgerBlobStore(ctx, BadgerBlobStoreConfig{DBPath: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.Zero(t, store.chunkSize)

	large := bytes.Repeat([]byte("z"), 2<<20)
	require.NoError(t, store.Put(ctx, "/big", large))
	assert.Zero(t, chunkKeys(t, store))

	data, err := store.Get(ctx, "/big")
	require.NoError(t, err)
	assert.Equal(t, len(large), len(data))
}
