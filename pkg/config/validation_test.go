package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Metadata: MetadataConfig{Stores: map[string]MetadataStoreConfig{
			"m1": {Type: "memory"},
			"m2": {Type: "memory"},
		}},
		Blob: BlobConfig{Stores: map[string]BlobStoreConfig{
			"b1": {Type: "memory"},
			"b2": {Type: "memory"},
		}},
		Workspaces: []WorkspaceConfig{
			{Name: "main", MetadataStore: "m1", BlobStore: "b1"},
			{Name: "lib", MetadataStore: "m2", BlobStore: "b2"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
	require.NoError(t, Validate(GetDefaultConfig()))

	shared := validConfig()
	shared.Metadata.Stores["m1"] = MetadataStoreConfig{Type: "badger", Badger: map[string]any{"db_path": "/var/lib/vfs"}}
	shared.Blob.Stores["b1"] = BlobStoreConfig{Type: "badger", Badger: map[string]any{"db_path": "/var/lib/vfs"}}
	require.NoError(t, Validate(shared))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "BadLogLevel",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			message: "Level",
		},
		{
			name:    "BadMetricsPort",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			message: "Port",
		},
		{
			name:    "NoWorkspaces",
			mutate:  func(c *Config) { c.Workspaces = nil },
			message: "at least one workspace",
		},
		{
			name:    "DuplicateWorkspace",
			mutate:  func(c *Config) { c.Workspaces[1].Name = "main" },
			message: "duplicate workspace name",
		},
		{
			name:    "NameWithSlash",
			mutate:  func(c *Config) { c.Workspaces[1].Name = "a/b" },
			message: "excludesall",
		},
		{
			name:    "UnknownMetadataStore",
			mutate:  func(c *Config) { c.Workspaces[1].MetadataStore = "nope" },
			message: `metadata store "nope" is not defined`,
		},
		{
			name:    "UnknownBlobStore",
			mutate:  func(c *Config) { c.Workspaces[1].BlobStore = "nope" },
			message: `blob store "nope" is not defined`,
		},
		{
			name:    "SharedMetadataStore",
			mutate:  func(c *Config) { c.Workspaces[1].MetadataStore = "m1" },
			message: "already used by workspace",
		},
		{
			name:    "SharedBlobStore",
			mutate:  func(c *Config) { c.Workspaces[1].BlobStore = "b1" },
			message: "already used by workspace",
		},
		{
			name:    "BadBlobType",
			mutate:  func(c *Config) { c.Blob.Stores["b2"] = BlobStoreConfig{Type: "gcs"} },
			message: "oneof",
		},
		{
			name: "MetadataStoresShareBadgerPath",
			mutate: func(c *Config) {
				c.Metadata.Stores["m1"] = MetadataStoreConfig{Type: "badger", Badger: map[string]any{"db_path": "/var/lib/vfs"}}
				c.Metadata.Stores["m2"] = MetadataStoreConfig{Type: "badger", Badger: map[string]any{"db_path": "/var/lib/vfs/"}}
			},
			message: `already used by metadata store "m1"`,
		},
		{
			name: "BlobStoresShareBadgerPath",
			mutate: func(c *Config) {
				c.Blob.Stores["b1"] = BlobStoreConfig{Type: "badger", Badger: map[string]any{"db_path": "data"}}
				c.Blob.Stores["b2"] = BlobStoreConfig{Type: "badger", Badger: map[string]any{"db_path": "./data"}}
			},
			message: `already used by blob store "b1"`,
		},
		{
			name: "InitialFileWithoutPath",
			mutate: func(c *Config) {
				c.Workspaces[0].InitialFiles = []InitialFileConfig{{Content: "x"}}
			},
			message: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Run("EmptyConfigGetsMemoryWorkspace", func(t *testing.T) {
		cfg := &Config{}
		ApplyDefaults(cfg)

		require.Len(t, cfg.Workspaces, 1)
		assert.Equal(t, DefaultMetadataStoreName, cfg.Workspaces[0].MetadataStore)
		assert.Equal(t, DefaultBlobStoreName, cfg.Workspaces[0].BlobStore)
	})

	t.Run("ExplicitStoresAreKept", func(t *testing.T) {
		cfg := &Config{
			Metadata: MetadataConfig{Stores: map[string]MetadataStoreConfig{"m": {}}},
		}
		ApplyDefaults(cfg)

		assert.Empty(t, cfg.Workspaces)
		assert.Equal(t, "memory", cfg.Metadata.Stores["m"].Type)
		assert.Empty(t, cfg.Blob.Stores)
	})

	t.Run("BadgerDefaultsToInMemory", func(t *testing.T) {
		cfg := &Config{
			Blob: BlobConfig{Stores: map[string]BlobStoreConfig{"b": {Type: "badger"}}},
		}
		ApplyDefaults(cfg)

		assert.Equal(t, map[string]any{"in_memory": true}, cfg.Blob.Stores["b"].Badger)
	})

	t.Run("LogLevelNormalized", func(t *testing.T) {
		cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
		ApplyDefaults(cfg)
		assert.Equal(t, "DEBUG", cfg.Logging.Level)
	})
}
