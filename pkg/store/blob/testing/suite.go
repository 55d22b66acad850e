package testing

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
)

// StoreTestSuite is a conformance suite for BlobStore implementations.
// Every backend (memory, badger, s3) runs the same checks.
//
// Usage:
//
//	func TestMyBlobStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() blob.BlobStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() blob.BlobStore

	// LargeBatch controls the size of the batch tests. Object storage suites
	// can lower it to keep integration runs short.
	LargeBatch int
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("PutGet", suite.testPutGet)
	t.Run("PutGet_Empty", suite.testPutGetEmpty)
	t.Run("PutGet_Large", suite.testPutGetLarge)
	t.Run("Large_OverwriteAndDelete", suite.testLargeOverwriteAndDelete)
	t.Run("Put_Overwrite", suite.testPutOverwrite)
	t.Run("Put_CopiesInput", suite.testPutCopiesInput)
	t.Run("Delete", suite.testDelete)
	t.Run("Delete_Missing", suite.testDeleteMissing)
	t.Run("Range_Prefix", suite.testRangePrefix)
	t.Run("Keys_Prefix", suite.testKeysPrefix)
	t.Run("Batch", suite.testBatch)
}

func testContext() context.Context {
	return context.Background()
}

func newStore(t *testing.T, suite *StoreTestSuite) blob.BlobStore {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := newStore(t, suite)

	_, err := store.Get(testContext(), "/missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/hello.txt", []byte("Hello, World!")))

	data, err := store.Get(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, World!"), data)
}

func (suite *StoreTestSuite) testPutGetEmpty(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/empty", []byte{}))

	data, err := store.Get(ctx, "/empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func (suite *StoreTestSuite) testPutGetLarge(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	large := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
	require.NoError(t, store.Put(ctx, "/large.bin", large))

	data, err := store.Get(ctx, "/large.bin")
	require.NoError(t, err)
	assert.Equal(t, len(large), len(data))
	assert.True(t, bytes.Equal(large, data))
}

func (suite *StoreTestSuite) testLargeOverwriteAndDelete(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	large := bytes.Repeat([]byte("x"), 3<<20+7)
	require.NoError(t, store.Put(ctx, "/big", large))
	require.NoError(t, store.Put(ctx, "/big", []byte("small")))

	data, err := store.Get(ctx, "/big")
	require.NoError(t, err)
	assert.Equal(t, []byte("small"), data)

	require.NoError(t, store.PutBatch(ctx, []blob.Entry{{Path: "/big", Data: large}}))
	var sizes []int
	require.NoError(t, store.Range(ctx, "/", func(_ string, data []byte) error {
		sizes = append(sizes, len(data))
		return nil
	}))
	assert.Equal(t, []int{len(large)}, sizes)

	require.NoError(t, store.DeleteBatch(ctx, []string{"/big"}))
	_, err = store.Get(ctx, "/big")
	assert.ErrorIs(t, err, blob.ErrNotFound)

	var keys []string
	require.NoError(t, store.Keys(ctx, "", func(path string) error {
		keys = append(keys, path)
		return nil
	}))
	assert.Empty(t, keys)
}

func (suite *StoreTestSuite) testPutOverwrite(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/a", []byte("first")))
	require.NoError(t, store.Put(ctx, "/a", []byte("second")))

	data, err := store.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func (suite *StoreTestSuite) testPutCopiesInput(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	input := []byte("abc")
	require.NoError(t, store.Put(ctx, "/a", input))
	input[0] = 'X'

	data, err := store.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/a", []byte("x")))
	require.NoError(t, store.Delete(ctx, "/a"))

	_, err := store.Get(ctx, "/a")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := newStore(t, suite)
	assert.NoError(t, store.Delete(testContext(), "/never-existed"))
}

func (suite *StoreTestSuite) testRangePrefix(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/src/b.ts", []byte("b")))
	require.NoError(t, store.Put(ctx, "/src/a.ts", []byte("a")))
	require.NoError(t, store.Put(ctx, "/srcx", []byte("x")))
	require.NoError(t, store.Put(ctx, "/other", []byte("o")))

	var paths []string
	var contents []string
	err := store.Range(ctx, "/src/", func(path string, data []byte) error {
		paths = append(paths, path)
		contents = append(contents, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.ts", "/src/b.ts"}, paths)
	assert.Equal(t, []string{"a", "b"}, contents)
}

func (suite *StoreTestSuite) testKeysPrefix(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	require.NoError(t, store.Put(ctx, "/src/b.ts", []byte("b")))
	require.NoError(t, store.Put(ctx, "/src/a.ts", []byte("a")))
	require.NoError(t, store.Put(ctx, "/srcx", []byte("x")))

	var paths []string
	require.NoError(t, store.Keys(ctx, "/src", func(path string) error {
		paths = append(paths, path)
		return nil
	}))
	assert.Equal(t, []string{"/src/a.ts", "/src/b.ts", "/srcx"}, paths)

	stop := fmt.Errorf("stop")
	visited := 0
	err := store.Keys(ctx, "/", func(string) error {
		visited++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)
}

func (suite *StoreTestSuite) testBatch(t *testing.T) {
	store := newStore(t, suite)
	ctx := testContext()

	n := suite.LargeBatch
	if n == 0 {
		n = blob.DefaultMaxBatchSize + 5
	}

	entries := make([]blob.Entry, 0, n)
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("/batch/f%05d", i)
		entries = append(entries, blob.Entry{Path: p, Data: []byte(p)})
		paths = append(paths, p)
	}
	require.NoError(t, store.PutBatch(ctx, entries))

	last, err := store.Get(ctx, paths[n-1])
	require.NoError(t, err)
	assert.Equal(t, []byte(paths[n-1]), last)

	count := 0
	require.NoError(t, store.Range(ctx, "/batch/", func(string, []byte) error {
		count++
		return nil
	}))
	assert.Equal(t, n, count)

	require.NoError(t, store.DeleteBatch(ctx, paths))
	_, err = store.Get(ctx, paths[0])
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
