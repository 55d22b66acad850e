package config

import (
	"strings"

	"github.com/esm-dev/modern-monaco-sub001/pkg/metrics"
)

// Default names used when no stores or workspaces are configured.
const (
	DefaultWorkspaceName     = "main"
	DefaultMetadataStoreName = "main-metadata"
	DefaultBlobStoreName     = "main-blobs"
	DefaultMetricsPort       = metrics.DefaultPort
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
//   - A configuration without workspaces gets one in-memory workspace
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.Metadata.Stores == nil {
		cfg.Metadata.Stores = make(map[string]MetadataStoreConfig)
	}
	if cfg.Blob.Stores == nil {
		cfg.Blob.Stores = make(map[string]BlobStoreConfig)
	}

	if len(cfg.Workspaces) == 0 && len(cfg.Metadata.Stores) == 0 && len(cfg.Blob.Stores) == 0 {
		cfg.Metadata.Stores[DefaultMetadataStoreName] = MetadataStoreConfig{Type: "memory"}
		cfg.Blob.Stores[DefaultBlobStoreName] = BlobStoreConfig{Type: "memory"}
		cfg.Workspaces = []WorkspaceConfig{
			{
				Name:          DefaultWorkspaceName,
				MetadataStore: DefaultMetadataStoreName,
				BlobStore:     DefaultBlobStoreName,
			},
		}
	}

	for name, store := range cfg.Metadata.Stores {
		applyMetadataStoreDefaults(&store)
		cfg.Metadata.Stores[name] = store
	}
	for name, store := range cfg.Blob.Stores {
		applyBlobStoreDefaults(&store)
		cfg.Blob.Stores[name] = store
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

func applyMetadataStoreDefaults(cfg *MetadataStoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Type == "badger" && cfg.Badger == nil {
		cfg.Badger = map[string]any{"in_memory": true}
	}
}

func applyBlobStoreDefaults(cfg *BlobStoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Type == "badger" && cfg.Badger == nil {
		cfg.Badger = map[string]any{"in_memory": true}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Workspaces[0].InitialFiles = []InitialFileConfig{
		{Path: "/index.html", Content: "<!DOCTYPE html>\n<html>\n  <body>\n    <script type=\"module\" src=\"./main.js\"></script>\n  </body>\n</html>\n"},
		{Path: "/main.js", Content: "console.log(\"Hello, world!\");\n"},
	}
	return cfg
}
