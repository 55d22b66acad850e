package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"

	blobmemory "github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/memory"
	metamemory "github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata/memory"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
)

func newMemoryFS(name string) *vfs.FileSystem {
	return vfs.New(metamemory.NewMemoryMetadataStore(), blobmemory.NewMemoryBlobStore(), vfs.Options{Name: name})
}

func newTestWorkspace(t *testing.T, name string, files map[string]string) (*Workspace, *vfs.FileSystem) {
	t.Helper()
	fs := newMemoryFS(name)
	ws, err := New(t.Context(), Options{Name: name, FS: fs, InitialFiles: files})
	require.NoError(t, err)
	return ws, fs
}
