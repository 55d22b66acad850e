package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `# Virtual File Store Configuration File
#
# Stores are declared by name under metadata.stores and blob.stores and
# bound to workspaces below. Each store serves exactly one workspace.
#
# Store types:
#   metadata: memory, badger (badger: {db_path, in_memory})
#   blob:     memory, badger (badger: {db_path, in_memory}),
#             s3 (s3: {bucket, region, endpoint, key_prefix, force_path_style})
#
# A badger metadata store and a badger blob store may use the same db_path;
# they then share one database.
#
# Environment variables override file values, e.g. VFS_LOGGING_LEVEL=DEBUG.

`

// InitConfig writes a default configuration file to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists and force is false, or writing fails
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML preceded by a comment header.
func generateYAMLWithComments(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	var b strings.Builder
	b.WriteString(configHeader)
	b.Write(data)
	return b.String(), nil
}
