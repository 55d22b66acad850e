package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/mitchellh/mapstructure"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	promMetrics "github.com/esm-dev/modern-monaco-sub001/pkg/metrics/prometheus"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
	blobbadger "github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/badger"
	blobmemory "github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/memory"
	blobs3 "github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/s3"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	metabadger "github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata/badger"
	metamemory "github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata/memory"
)

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// badgerDBs maps the cleaned db_path of every on-disk badger metadata store
// to its open database. A badger blob store configured with the same path
// reuses the database, since BadgerDB locks its directory.
type badgerDBs map[string]*badger.DB

func (dbs badgerDBs) add(store metadata.MetadataStore) {
	if bs, ok := store.(*metabadger.BadgerMetadataStore); ok && !bs.DB().Opts().InMemory {
		dbs[filepath.Clean(bs.DB().Opts().Dir)] = bs.DB()
	}
}

// badgerDBPath returns the cleaned on-disk path of a raw badger store config,
// or "" for in-memory or pathless configs.
func badgerDBPath(raw map[string]any) string {
	if inMemory, _ := raw["in_memory"].(bool); inMemory {
		return ""
	}
	path, _ := raw["db_path"].(string)
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}

// createMetadataStore creates a single metadata store instance.
func createMetadataStore(ctx context.Context, cfg MetadataStoreConfig) (metadata.MetadataStore, error) {
	switch cfg.Type {
	case "memory":
		return metamemory.NewMemoryMetadataStore(), nil
	case "badger":
		return createBadgerMetadataStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

// createBadgerMetadataStore creates a BadgerDB metadata store.
func createBadgerMetadataStore(ctx context.Context, cfg MetadataStoreConfig) (metadata.MetadataStore, error) {
	var badgerCfg metabadger.BadgerMetadataStoreConfig
	if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}
	if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger db_path is required unless in_memory is set")
	}

	store, err := metabadger.NewBadgerMetadataStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return store, nil
}

// createBlobStore creates a single blob store instance. name labels the
// store's metrics; shared holds the databases opened by metadata stores.
func createBlobStore(ctx context.Context, name string, cfg BlobStoreConfig, shared badgerDBs) (blob.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return blobmemory.NewMemoryBlobStore(), nil
	case "badger":
		return createBadgerBlobStore(ctx, name, cfg, shared)
	case "s3":
		return createS3BlobStore(ctx, name, cfg)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q", cfg.Type)
	}
}

// createBadgerBlobStore creates a BadgerDB blob store, on the database of a
// metadata store when both point at the same directory.
func createBadgerBlobStore(ctx context.Context, name string, cfg BlobStoreConfig, shared badgerDBs) (blob.BlobStore, error) {
	var badgerCfg blobbadger.BadgerBlobStoreConfig
	if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}
	if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger db_path is required unless in_memory is set")
	}

	if db, ok := shared[badgerDBPath(cfg.Badger)]; ok {
		if badgerCfg.ValueThreshold > 0 {
			logger.Warn("Blob store %q shares %s with a metadata store; value_threshold is ignored", name, badgerCfg.DBPath)
		}
		logger.Debug("Blob store %q shares BadgerDB at %s", name, badgerCfg.DBPath)
		return blobbadger.NewBadgerBlobStoreFromDB(db, badgerCfg.BatchSize), nil
	}

	store, err := blobbadger.NewBadgerBlobStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return store, nil
}

// createS3BlobStore creates an S3-backed blob store.
func createS3BlobStore(ctx context.Context, name string, cfg BlobStoreConfig) (blob.BlobStore, error) {
	var yamlCfg s3YAMLConfig
	if err := mapstructure.Decode(cfg.S3, &yamlCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	if yamlCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if yamlCfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	client, err := blobs3.NewClient(ctx, blobs3.ClientConfig{
		Endpoint:        yamlCfg.Endpoint,
		Region:          yamlCfg.Region,
		AccessKeyID:     yamlCfg.AccessKeyID,
		SecretAccessKey: yamlCfg.SecretAccessKey,
		ForcePathStyle:  yamlCfg.ForcePathStyle,
		MaxRetries:      yamlCfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	store, err := blobs3.NewS3BlobStore(ctx, blobs3.S3BlobStoreConfig{
		Client:    client,
		Bucket:    yamlCfg.Bucket,
		KeyPrefix: yamlCfg.KeyPrefix,
		Metrics:   promMetrics.NewS3Metrics(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
	}
	return store, nil
}
