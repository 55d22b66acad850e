package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	metadatatesting "github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata/testing"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.MetadataStore {
			return NewMemoryMetadataStore()
		},
	}
	suite.Run(t)
}

func TestMemoryMetadataStore_Len(t *testing.T) {
	store := NewMemoryMetadataStore()
	ctx := t.Context()

	require.NoError(t, store.Put(ctx, "/a", &metadata.FileStat{Type: metadata.FileTypeFile, Version: 1}))
	require.NoError(t, store.Put(ctx, "/a", &metadata.FileStat{Type: metadata.FileTypeFile, Version: 2}))
	require.NoError(t, store.Put(ctx, "/b", &metadata.FileStat{Type: metadata.FileTypeFile, Version: 1}))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Delete(ctx, "/a"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryMetadataStore_Closed(t *testing.T) {
	store := NewMemoryMetadataStore()
	require.NoError(t, store.Close())

	_, err := store.Get(t.Context(), "/a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, metadata.ErrNotFound)
}
