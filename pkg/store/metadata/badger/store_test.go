package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	metadatatesting "github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata/testing"
)

func TestBadgerMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.MetadataStore {
			store, err := NewBadgerMetadataStore(t.Context(), BadgerMetadataStoreConfig{InMemory: true})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStore_SmallBatchSize(t *testing.T) {
	store, err := NewBadgerMetadataStore(t.Context(), BadgerMetadataStoreConfig{InMemory: true, BatchSize: 2})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	entries := []metadata.Entry{
		{Path: "/a", Stat: &metadata.FileStat{Type: metadata.FileTypeFile, Version: 1}},
		{Path: "/b", Stat: &metadata.FileStat{Type: metadata.FileTypeFile, Version: 1}},
		{Path: "/c", Stat: &metadata.FileStat{Type: metadata.FileTypeFile, Version: 1}},
	}
	require.NoError(t, store.PutBatch(ctx, entries))

	got, err := metadata.Collect(ctx, store, "/")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestBadgerMetadataStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := t.Context()

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "/kept.txt", &metadata.FileStat{Type: metadata.FileTypeFile, Version: 3, Size: 7}))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	stat, err := reopened.Get(ctx, "/kept.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stat.Version)
	assert.Equal(t, int64(7), stat.Size)
}

func TestBadgerMetadataStore_Healthcheck(t *testing.T) {
	store, err := NewBadgerMetadataStore(t.Context(), BadgerMetadataStoreConfig{InMemory: true})
	require.NoError(t, err)

	assert.NoError(t, store.Healthcheck(t.Context()))
	require.NoError(t, store.Close())
	assert.Error(t, store.Healthcheck(t.Context()))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []byte("m:/src/a.ts"), keyMeta("/src/a.ts"))
	assert.Equal(t, "/src/a.ts", pathFromKey([]byte("m:/src/a.ts")))
}
