package registry

// Binding ties a workspace to the named stores backing its file system.
//
// A store is bound to at most one workspace: the file system built over it
// is its only writer.
type Binding struct {
	Workspace     string
	MetadataStore string // Name of the metadata store
	BlobStore     string // Name of the blob store
}

// BindingConfig contains everything needed to create a binding.
type BindingConfig struct {
	Workspace     string
	MetadataStore string
	BlobStore     string
}
