// Package registry keeps the named metadata and blob stores of a process and
// records which workspace each of them serves.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
)

// Registry manages named stores and workspace bindings.
//
// The registry owns every store registered with it: Close closes them all.
// File systems and the workspace router only borrow them.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.RegisterMetadataStore("main-meta", badgerStore)
//	reg.RegisterBlobStore("main-blobs", s3Store)
//	reg.Bind(BindingConfig{Workspace: "main", MetadataStore: "main-meta", BlobStore: "main-blobs"})
//
//	meta, blobs, _ := reg.StoresForWorkspace("main")
type Registry struct {
	mu       sync.RWMutex
	metadata map[string]metadata.MetadataStore
	blobs    map[string]blob.BlobStore
	bindings map[string]*Binding
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		metadata: make(map[string]metadata.MetadataStore),
		blobs:    make(map[string]blob.BlobStore),
		bindings: make(map[string]*Binding),
	}
}

// RegisterMetadataStore adds a named metadata store to the registry.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterMetadataStore(name string, store metadata.MetadataStore) error {
	if store == nil {
		return fmt.Errorf("cannot register nil metadata store")
	}
	if name == "" {
		return fmt.Errorf("cannot register metadata store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.metadata[name]; exists {
		return fmt.Errorf("metadata store %q already registered", name)
	}

	r.metadata[name] = store
	return nil
}

// RegisterBlobStore adds a named blob store to the registry.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterBlobStore(name string, store blob.BlobStore) error {
	if store == nil {
		return fmt.Errorf("cannot register nil blob store")
	}
	if name == "" {
		return fmt.Errorf("cannot register blob store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.blobs[name]; exists {
		return fmt.Errorf("blob store %q already registered", name)
	}

	r.blobs[name] = store
	return nil
}

// Bind assigns a metadata store and a blob store to a workspace.
//
// Returns an error if:
// - The workspace is already bound
// - The referenced stores don't exist
// - Either store is already bound to another workspace
func (r *Registry) Bind(config BindingConfig) (*Binding, error) {
	if config.Workspace == "" {
		return nil, fmt.Errorf("cannot bind stores to a workspace with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[config.Workspace]; exists {
		return nil, fmt.Errorf("workspace %q already bound", config.Workspace)
	}
	if _, exists := r.metadata[config.MetadataStore]; !exists {
		return nil, fmt.Errorf("metadata store %q not found", config.MetadataStore)
	}
	if _, exists := r.blobs[config.BlobStore]; !exists {
		return nil, fmt.Errorf("blob store %q not found", config.BlobStore)
	}

	for _, b := range r.bindings {
		if b.MetadataStore == config.MetadataStore {
			return nil, fmt.Errorf("metadata store %q is already used by workspace %q", config.MetadataStore, b.Workspace)
		}
		if b.BlobStore == config.BlobStore {
			return nil, fmt.Errorf("blob store %q is already used by workspace %q", config.BlobStore, b.Workspace)
		}
	}

	binding := &Binding{
		Workspace:     config.Workspace,
		MetadataStore: config.MetadataStore,
		BlobStore:     config.BlobStore,
	}
	r.bindings[config.Workspace] = binding
	return binding, nil
}

// Unbind removes the binding of a workspace.
// Note: This does NOT close the underlying stores.
func (r *Registry) Unbind(workspace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[workspace]; !exists {
		return fmt.Errorf("workspace %q not bound", workspace)
	}

	delete(r.bindings, workspace)
	return nil
}

// GetBinding retrieves the binding of a workspace.
func (r *Registry) GetBinding(workspace string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.bindings[workspace]
	if !exists {
		return nil, fmt.Errorf("workspace %q not bound", workspace)
	}
	copied := *b
	return &copied, nil
}

// GetMetadataStore retrieves a metadata store by name.
func (r *Registry) GetMetadataStore(name string) (metadata.MetadataStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, exists := r.metadata[name]
	if !exists {
		return nil, fmt.Errorf("metadata store %q not found", name)
	}
	return store, nil
}

// GetBlobStore retrieves a blob store by name.
func (r *Registry) GetBlobStore(name string) (blob.BlobStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, exists := r.blobs[name]
	if !exists {
		return nil, fmt.Errorf("blob store %q not found", name)
	}
	return store, nil
}

// StoresForWorkspace returns the stores bound to a workspace.
func (r *Registry) StoresForWorkspace(workspace string) (metadata.MetadataStore, blob.BlobStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.bindings[workspace]
	if !exists {
		return nil, nil, fmt.Errorf("workspace %q not bound", workspace)
	}
	return r.metadata[b.MetadataStore], r.blobs[b.BlobStore], nil
}

// ListMetadataStores returns all registered metadata store names, sorted.
func (r *Registry) ListMetadataStores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.metadata)
}

// ListBlobStores returns all registered blob store names, sorted.
func (r *Registry) ListBlobStores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.blobs)
}

// ListWorkspaces returns all bound workspace names, sorted.
func (r *Registry) ListWorkspaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.bindings)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CountMetadataStores returns the number of registered metadata stores.
func (r *Registry) CountMetadataStores() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metadata)
}

// CountBlobStores returns the number of registered blob stores.
func (r *Registry) CountBlobStores() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// Close closes every registered store and drops all bindings. It returns
// the joined errors of the stores that failed to close. Calling Close again
// is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, name := range sortedKeys(r.metadata) {
		if err := r.metadata[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metadata store %q: %w", name, err))
		}
	}
	for _, name := range sortedKeys(r.blobs) {
		if err := r.blobs[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close blob store %q: %w", name, err))
		}
	}

	logger.Debug("registry: closed %d metadata and %d blob store(s)", len(r.metadata), len(r.blobs))
	r.bindings = make(map[string]*Binding)
	return errors.Join(errs...)
}
