package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
	blobtesting "github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/testing"
)

func TestMemoryBlobStore(t *testing.T) {
	suite := &blobtesting.StoreTestSuite{
		NewStore: func() blob.BlobStore {
			return NewMemoryBlobStore()
		},
	}
	suite.Run(t)
}

func TestMemoryBlobStore_TotalSize(t *testing.T) {
	store := NewMemoryBlobStore()
	ctx := t.Context()

	require.NoError(t, store.Put(ctx, "/a", []byte("hello")))
	require.NoError(t, store.Put(ctx, "/b", []byte("abc")))
	require.NoError(t, store.Put(ctx, "/a", []byte("hi")))
	assert.Equal(t, int64(5), store.TotalSize())
}
