package s3

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeys(t *testing.T) {
	s := &S3BlobStore{keyPrefix: "vfs/main/"}

	assert.Equal(t, "vfs/main/src/index.ts", s.objectKey("/src/index.ts"))
	assert.Equal(t, "vfs/main/", s.objectKey("/"))
	assert.Equal(t, "vfs/main/src/", s.objectKey("/src/"))
	assert.Equal(t, "/src/index.ts", s.pathFromObjectKey("vfs/main/src/index.ts"))

	bare := &S3BlobStore{}
	assert.Equal(t, "a.txt", bare.objectKey("/a.txt"))
	assert.Equal(t, "/a.txt", bare.pathFromObjectKey("a.txt"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(assert.AnError))
}

func TestNewS3BlobStore_Validation(t *testing.T) {
	_, err := NewS3BlobStore(t.Context(), S3BlobStoreConfig{Bucket: "b"})
	require.Error(t, err)

	client, err := NewClient(t.Context(), ClientConfig{Region: "us-east-1", Endpoint: "http://localhost:4566", ForcePathStyle: true})
	require.NoError(t, err)

	_, err = NewS3BlobStore(t.Context(), S3BlobStoreConfig{Client: client})
	assert.Error(t, err)

	store, err := NewS3BlobStore(t.Context(), S3BlobStoreConfig{Client: client, Bucket: "b", SkipBucketCheck: true})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestNewClient_RequiresRegion(t *testing.T) {
	_, err := NewClient(t.Context(), ClientConfig{})
	assert.Error(t, err)
}
