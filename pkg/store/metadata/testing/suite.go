package testing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
)

// StoreTestSuite is a conformance suite for MetadataStore implementations.
// It tests the interface contract, not implementation details, so every
// backend (memory, badger) runs the same checks.
//
// Usage:
//
//	func TestMyMetadataStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() metadata.MetadataStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() metadata.MetadataStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("PutGet", suite.testPutGet)
	t.Run("Put_Overwrite", suite.testPutOverwrite)
	t.Run("Get_ReturnsCopy", suite.testGetReturnsCopy)
	t.Run("Delete", suite.testDelete)
	t.Run("Delete_Missing", suite.testDeleteMissing)
	t.Run("Range_Order", suite.testRangeOrder)
	t.Run("Range_Prefix", suite.testRangePrefix)
	t.Run("Range_StopOnError", suite.testRangeStopOnError)
	t.Run("PutBatch_Large", suite.testPutBatchLarge)
	t.Run("DeleteBatch", suite.testDeleteBatch)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func testContext() context.Context {
	return context.Background()
}

func newStore(t *testing.T, suite *StoreTestSuite) metadata.MetadataStore {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fileStat(size int64) *metadata.FileStat {
	return &metadata.FileStat{
		Type:    metadata.FileTypeFile,
		Version: 1,
		Ctime:   1700000000000,
		Mtime:   1700000000000,
		Size:    size,
	}
}

func dirStat() *metadata.FileStat {
	return &metadata.FileStat{
		Type:    metadata.FileTypeDirectory,
		Version: 1,
		Ctime:   1700000000000,
		Mtime:   1700000000000,
	}
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := newStore(t, suite)

	_, err := store.Get(testContext(), "/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/a.txt", fileStat(5)))

	got, err := store.Get(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, fileStat(5), got)
}

func (suite *StoreTestSuite) testPutOverwrite(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/a.txt", fileStat(5)))
	updated := fileStat(9)
	updated.Version = 2
	require.NoError(t, store.Put(ctx, "/a.txt", updated))

	got, err := store.Get(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, int64(9), got.Size)
}

func (suite *StoreTestSuite) testGetReturnsCopy(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	stat := fileStat(1)
	require.NoError(t, store.Put(ctx, "/a", stat))
	stat.Size = 100

	got, err := store.Get(ctx, "/a")
	require.NoError(t, err)
	got.Version = 42

	again, err := store.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Size)
	assert.Equal(t, int64(1), again.Version)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/a", fileStat(1)))
	require.NoError(t, store.Delete(ctx, "/a"))

	_, err := store.Get(ctx, "/a")
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := newStore(t, suite)
	assert.NoError(t, store.Delete(testContext(), "/never-existed"))
}

func (suite *StoreTestSuite) testRangeOrder(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	for _, p := range []string{"/b/z", "/a", "/b", "/a/y", "/a/x"} {
		require.NoError(t, store.Put(ctx, p, fileStat(0)))
	}

	entries, err := metadata.Collect(ctx, store, "/")
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/a", "/a/x", "/a/y", "/b", "/b/z"}, paths)
}

func (suite *StoreTestSuite) testRangePrefix(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/src", dirStat()))
	require.NoError(t, store.Put(ctx, "/src/a.ts", fileStat(1)))
	require.NoError(t, store.Put(ctx, "/src/lib/b.ts", fileStat(2)))
	require.NoError(t, store.Put(ctx, "/srcx", fileStat(3)))

	entries, err := metadata.Collect(ctx, store, "/src/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/src/a.ts", entries[0].Path)
	assert.Equal(t, "/src/lib/b.ts", entries[1].Path)
	assert.Equal(t, int64(2), entries[1].Stat.Size)

	empty, err := metadata.Collect(ctx, store, "/nothing/")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func (suite *StoreTestSuite) testRangeStopOnError(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	for _, p := range []string{"/1", "/2", "/3"} {
		require.NoError(t, store.Put(ctx, p, fileStat(0)))
	}

	stop := errors.New("stop")
	visited := 0
	err := store.Range(ctx, "/", func(string, *metadata.FileStat) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, visited)
}

func (suite *StoreTestSuite) testPutBatchLarge(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	n := metadata.DefaultMaxBatchSize*2 + 17
	entries := make([]metadata.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, metadata.Entry{
			Path: fmt.Sprintf("/dir/f%05d", i),
			Stat: fileStat(int64(i)),
		})
	}
	require.NoError(t, store.PutBatch(ctx, entries))

	got, err := metadata.Collect(ctx, store, "/dir/")
	require.NoError(t, err)
	require.Len(t, got, n)
	assert.Equal(t, "/dir/f00000", got[0].Path)
	assert.Equal(t, int64(n-1), got[n-1].Stat.Size)
}

func (suite *StoreTestSuite) testDeleteBatch(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.PutBatch(ctx, []metadata.Entry{
		{Path: "/a", Stat: dirStat()},
		{Path: "/a/b", Stat: fileStat(1)},
		{Path: "/c", Stat: fileStat(2)},
	}))
	require.NoError(t, store.DeleteBatch(ctx, []string{"/a", "/a/b", "/missing"}))

	got, err := metadata.Collect(ctx, store, "/")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/c", got[0].Path)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := newStore(t, suite)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, err := store.Get(ctx, "/a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(ctx, "/a", fileStat(0)), context.Canceled)
}
