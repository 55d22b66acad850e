package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Workspaces) == 0 {
		return fmt.Errorf("workspaces: at least one workspace must be configured")
	}

	names := make(map[string]bool)
	metadataOwners := make(map[string]string)
	blobOwners := make(map[string]string)

	for i, ws := range cfg.Workspaces {
		if names[ws.Name] {
			return fmt.Errorf("workspaces[%d]: duplicate workspace name %q", i, ws.Name)
		}
		names[ws.Name] = true

		if _, ok := cfg.Metadata.Stores[ws.MetadataStore]; !ok {
			return fmt.Errorf("workspaces[%d]: metadata store %q is not defined", i, ws.MetadataStore)
		}
		if _, ok := cfg.Blob.Stores[ws.BlobStore]; !ok {
			return fmt.Errorf("workspaces[%d]: blob store %q is not defined", i, ws.BlobStore)
		}

		// Each store has exactly one writer
		if owner, taken := metadataOwners[ws.MetadataStore]; taken {
			return fmt.Errorf("workspaces[%d]: metadata store %q is already used by workspace %q", i, ws.MetadataStore, owner)
		}
		if owner, taken := blobOwners[ws.BlobStore]; taken {
			return fmt.Errorf("workspaces[%d]: blob store %q is already used by workspace %q", i, ws.BlobStore, owner)
		}
		metadataOwners[ws.MetadataStore] = ws.Name
		blobOwners[ws.BlobStore] = ws.Name
	}

	return validateBadgerPaths(cfg)
}

// validateBadgerPaths rejects two stores of the same kind on one BadgerDB
// directory. A metadata store and a blob store may share one; the blob store
// then opens nothing and uses the metadata store's database.
func validateBadgerPaths(cfg *Config) error {
	metaPaths := make(map[string]string)
	for _, name := range sortedNames(cfg.Metadata.Stores) {
		store := cfg.Metadata.Stores[name]
		if store.Type != "badger" {
			continue
		}
		path := badgerDBPath(store.Badger)
		if path == "" {
			continue
		}
		if other, taken := metaPaths[path]; taken {
			return fmt.Errorf("metadata.stores.%s: db_path %q is already used by metadata store %q", name, path, other)
		}
		metaPaths[path] = name
	}

	blobPaths := make(map[string]string)
	for _, name := range sortedNames(cfg.Blob.Stores) {
		store := cfg.Blob.Stores[name]
		if store.Type != "badger" {
			continue
		}
		path := badgerDBPath(store.Badger)
		if path == "" {
			continue
		}
		if other, taken := blobPaths[path]; taken {
			return fmt.Errorf("blob.stores.%s: db_path %q is already used by blob store %q", name, path, other)
		}
		blobPaths[path] = name
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
