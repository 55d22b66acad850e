// Package s3 stores file content in Amazon S3 or any S3-compatible service.
//
// Object keys mirror the virtual tree: the canonical path "/src/index.ts"
// with key prefix "workspaces/main/" is stored as
// "workspaces/main/src/index.ts", so a bucket can be inspected (or restored)
// with ordinary S3 tooling.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
)

// S3BlobStore implements blob.BlobStore using S3.
//
// S3 has no multi-key transactions: Put and Delete are single requests,
// PutBatch issues one PutObject per entry and DeleteBatch uses DeleteObjects
// in chunks of 1000 keys (the S3 limit).
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to the same path are
// last-write-wins.
type S3BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   Metrics
}

// S3BlobStoreConfig contains configuration for the S3 blob store.
type S3BlobStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "vfs/main/" results in keys like "vfs/main/src/index.ts"
	KeyPrefix string

	// Metrics receives per-request observations. Optional.
	Metrics Metrics

	// SkipBucketCheck disables the HeadBucket check at construction time
	SkipBucketCheck bool
}

// NewS3BlobStore creates an S3-backed blob store and verifies bucket access.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3BlobStore: Initialized store
//   - error: Returns error if the bucket is not reachable
func NewS3BlobStore(ctx context.Context, cfg S3BlobStoreConfig) (*S3BlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	store := &S3BlobStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   metrics,
	}
	if !cfg.SkipBucketCheck {
		if err := store.Healthcheck(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// objectKey maps a canonical path to its object key.
func (s *S3BlobStore) objectKey(path string) string {
	return s.keyPrefix + strings.TrimPrefix(path, "/")
}

// pathFromObjectKey is the inverse of objectKey.
func (s *S3BlobStore) pathFromObjectKey(key string) string {
	return "/" + strings.TrimPrefix(key, s.keyPrefix)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

func (s *S3BlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(path)),
	})
	if err != nil {
		if isNotFound(err) {
			s.metrics.ObserveOperation("GetObject", time.Since(start), nil)
			return nil, fmt.Errorf("blob %s: %w", path, blob.ErrNotFound)
		}
		s.metrics.ObserveOperation("GetObject", time.Since(start), err)
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	s.metrics.ObserveOperation("GetObject", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	s.metrics.RecordBytes("read", int64(len(data)))
	return data, nil
}

func (s *S3BlobStore) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(path)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.metrics.ObserveOperation("PutObject", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to write object to S3: %w", err)
	}
	s.metrics.RecordBytes("write", int64(len(data)))
	return nil
}

func (s *S3BlobStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	// DeleteObject succeeds for missing keys
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(path)),
	})
	s.metrics.ObserveOperation("DeleteObject", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// Range lists keys under prefix and fetches each object.
func (s *S3BlobStore) Range(ctx context.Context, prefix string, fn blob.RangeFunc) error {
	return s.Keys(ctx, prefix, func(path string) error {
		data, err := s.Get(ctx, path)
		if errors.Is(err, blob.ErrNotFound) {
			// Deleted between list and get
			return nil
		}
		if err != nil {
			return err
		}
		return fn(path, data)
	})
}

// Keys lists objects under prefix with ListObjectsV2, which returns keys in
// UTF-8 binary order. No object is fetched.
func (s *S3BlobStore) Keys(ctx context.Context, prefix string, fn blob.KeyFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		page, err := paginator.NextPage(ctx)
		s.metrics.ObserveOperation("ListObjectsV2", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if err := fn(s.pathFromObjectKey(*obj.Key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *S3BlobStore) PutBatch(ctx context.Context, entries []blob.Entry) error {
	for _, e := range entries {
		if err := s.Put(ctx, e.Path, e.Data); err != nil {
			return fmt.Errorf("batch put %s: %w", e.Path, err)
		}
	}
	return nil
}

// DeleteBatch removes objects with DeleteObjects, 1000 keys per request.
//
// Returns an error naming the first key S3 reported as failed.
func (s *S3BlobStore) DeleteBatch(ctx context.Context, paths []string) error {
	return blob.Chunk(len(paths), blob.DefaultMaxBatchSize, func(i, end int) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := paths[i:end]
		objects := make([]types.ObjectIdentifier, len(batch))
		for j, p := range batch {
			objects[j] = types.ObjectIdentifier{Key: aws.String(s.objectKey(p))}
		}

		start := time.Now()
		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		s.metrics.ObserveOperation("DeleteObjects", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}

		for _, deleteErr := range result.Errors {
			if deleteErr.Key == nil {
				continue
			}
			msg := "unknown error"
			if deleteErr.Code != nil && deleteErr.Message != nil {
				msg = fmt.Sprintf("%s: %s", *deleteErr.Code, *deleteErr.Message)
			}
			return fmt.Errorf("failed to delete %s: %s", s.pathFromObjectKey(*deleteErr.Key), msg)
		}
		return nil
	})
}

// Healthcheck verifies the bucket is reachable with HeadBucket.
func (s *S3BlobStore) Healthcheck(ctx context.Context) error {
	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	s.metrics.ObserveOperation("HeadBucket", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no resources that need releasing.
func (s *S3BlobStore) Close() error {
	return nil
}
