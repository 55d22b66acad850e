package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete file store configuration.
//
// This structure captures:
//   - Logging configuration
//   - Metrics exposure
//   - Orphaned blob collection
//   - Named metadata stores (store-specific options)
//   - Named blob stores (store-specific options)
//   - Workspace definitions binding one metadata and one blob store each
//
// Configuration sources (in order of precedence):
//  1. Environment variables (VFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. A store
// entry names its type and carries the options of that type in a section
// of the same name (badger, s3); only that section is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GC controls background removal of orphaned blobs
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// Metadata declares the named metadata stores
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Blob declares the named blob stores
	Blob BlobConfig `mapstructure:"blob" yaml:"blob"`

	// Workspaces lists the workspaces in registration order. The first one
	// is the default workspace of the router.
	Workspaces []WorkspaceConfig `mapstructure:"workspaces" yaml:"workspaces" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MetricsConfig controls the metrics HTTP server.
type MetricsConfig struct {
	// Enabled turns on metric collection and the /metrics endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the metrics server
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// GCConfig controls the orphaned blob collector of every workspace.
type GCConfig struct {
	// Enabled starts a background collector per workspace in serve mode
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between runs, e.g. "30m" (default: 1h)
	Interval time.Duration `mapstructure:"interval" yaml:"interval,omitempty" validate:"min=0"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// MetadataConfig holds the named metadata stores.
type MetadataConfig struct {
	Stores map[string]MetadataStoreConfig `mapstructure:"stores" yaml:"stores" validate:"dive"`
}

// MetadataStoreConfig configures one metadata store.
type MetadataStoreConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// BlobConfig holds the named blob stores.
type BlobConfig struct {
	Stores map[string]BlobStoreConfig `mapstructure:"stores" yaml:"stores" validate:"dive"`
}

// BlobStoreConfig configures one blob store.
type BlobStoreConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: memory, badger, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger s3"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// WorkspaceConfig defines a single workspace.
type WorkspaceConfig struct {
	// Name is used in /workspace/<name> URIs and must be a single path segment
	Name string `mapstructure:"name" yaml:"name" validate:"required,excludesall=/"`

	// MetadataStore is the name of the metadata store backing the workspace
	MetadataStore string `mapstructure:"metadata_store" yaml:"metadata_store" validate:"required"`

	// BlobStore is the name of the blob store backing the workspace
	BlobStore string `mapstructure:"blob_store" yaml:"blob_store" validate:"required"`

	// InitialFiles are written when the workspace starts, unless they exist
	InitialFiles []InitialFileConfig `mapstructure:"initial_files" yaml:"initial_files,omitempty" validate:"dive"`
}

// InitialFileConfig is one seeded file. Files are a list rather than a map
// because viper lowercases map keys and splits them on dots.
type InitialFileConfig struct {
	Path    string `mapstructure:"path" yaml:"path" validate:"required"`
	Content string `mapstructure:"content" yaml:"content"`
}

// InitialFileMap returns the initial files keyed by path.
func (w WorkspaceConfig) InitialFileMap() map[string]string {
	files := make(map[string]string, len(w.InitialFiles))
	for _, f := range w.InitialFiles {
		files[f.Path] = f.Content
	}
	return files
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: VFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("VFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range []string{"logging.level", "logging.format", "logging.output", "metrics.enabled", "metrics.port", "gc.enabled", "gc.interval", "gc.dry_run"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/vfs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist falls back to defaults too
		if configPath != "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "vfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
