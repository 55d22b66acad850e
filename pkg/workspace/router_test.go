package workspace

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

func newTestRouter(t *testing.T) (*Router, *vfs.FileSystem, *vfs.FileSystem) {
	t.Helper()
	mainWS, mainFS := newTestWorkspace(t, "main", map[string]string{"/index.html": "<html></html>"})
	libWS, libFS := newTestWorkspace(t, "lib", map[string]string{"/src/lib.ts": "export {}"})

	r := NewRouter()
	require.NoError(t, r.Register(mainWS))
	require.NoError(t, r.Register(libWS))
	return r, mainFS, libFS
}

func TestRouter_Resolve(t *testing.T) {
	r, mainFS, libFS := newTestRouter(t)

	fs, p, err := r.Resolve(AddWorkspacePrefix("/src/lib.ts", "lib"))
	require.NoError(t, err)
	assert.Same(t, libFS, fs)
	assert.Equal(t, "/src/lib.ts", p)

	fs, p, err = r.Resolve("/src/lib.ts")
	require.NoError(t, err)
	assert.Same(t, mainFS, fs)
	assert.Equal(t, "/src/lib.ts", p)

	fs, p, err = r.Resolve("file:///workspace/unknown/a.ts")
	require.NoError(t, err)
	assert.Same(t, mainFS, fs)
	assert.Equal(t, "/workspace/unknown/a.ts", p)

	fs, p, err = r.Resolve("/workspace/main/index.html")
	require.NoError(t, err)
	assert.Same(t, mainFS, fs)
	assert.Equal(t, "/index.html", p)
}

func TestRouter_Registration(t *testing.T) {
	r := NewRouter()

	_, _, err := r.Resolve("/a")
	assert.ErrorIs(t, err, ErrNoWorkspace)
	_, ok := r.Default()
	assert.False(t, ok)

	ws, _ := newTestWorkspace(t, "main", nil)
	require.NoError(t, r.Register(ws))
	assert.Error(t, r.Register(ws))
	assert.Error(t, r.Register(nil))

	def, ok := r.Default()
	require.True(t, ok)
	assert.Equal(t, "main", def.Name())
	assert.Equal(t, []string{"main"}, r.Names())

	got, ok := r.Workspace("main")
	require.True(t, ok)
	assert.Same(t, ws, got)
}

func TestRouter_Delegation(t *testing.T) {
	r, mainFS, libFS := newTestRouter(t)
	ctx := t.Context()

	require.NoError(t, r.CreateDirectory(ctx, "/workspace/lib/docs"))
	require.NoError(t, r.WriteTextFile(ctx, "/workspace/lib/docs/readme.md", "# lib", vfs.WriteOptions{}))

	text, err := libFS.ReadTextFile(ctx, "/docs/readme.md")
	require.NoError(t, err)
	assert.Equal(t, "# lib", text)

	ok, err := mainFS.Exists(ctx, "/docs")
	require.NoError(t, err)
	assert.False(t, ok)

	stat, err := r.Stat(ctx, "/workspace/lib/docs/readme.md")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stat.Size)

	entries, err := r.ReadDirectory(ctx, "/workspace/lib")
	require.NoError(t, err)
	assert.Equal(t, []vfs.DirEntry{
		{Name: "docs", Type: metadata.FileTypeDirectory},
		{Name: "src", Type: metadata.FileTypeDirectory},
	}, entries)

	data, err := r.ReadFile(ctx, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	require.NoError(t, r.Rename(ctx, "/workspace/lib/docs/readme.md", "/workspace/lib/README.md", vfs.RenameOptions{}))
	require.NoError(t, r.Copy(ctx, "/workspace/lib/README.md", "/workspace/lib/COPY.md", vfs.CopyOptions{}))
	require.NoError(t, r.Delete(ctx, "/workspace/lib/docs", vfs.DeleteOptions{}))

	exists, err := r.Exists(ctx, "/workspace/lib/COPY.md")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = r.Stat(ctx, "/workspace/lib/docs")
	assert.True(t, vfs.IsNotFound(err))
}

func TestRouter_CrossWorkspaceMoveNotAllowed(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := t.Context()

	err := r.Rename(ctx, "/index.html", "/workspace/lib/index.html", vfs.RenameOptions{})
	assert.Equal(t, vfs.ErrNotAllowed, vfs.CodeOf(err))

	err = r.Copy(ctx, "/workspace/lib/src/lib.ts", "/lib.ts", vfs.CopyOptions{})
	assert.Equal(t, vfs.ErrNotAllowed, vfs.CodeOf(err))
}

func TestRouter_Walk(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := t.Context()

	entries, err := r.Walk(ctx, "/workspace/lib")
	require.NoError(t, err)
	assert.Equal(t, []vfs.WalkEntry{
		{Path: "/workspace/lib/src", Type: metadata.FileTypeDirectory},
		{Path: "/workspace/lib/src/lib.ts", Type: metadata.FileTypeFile},
	}, entries)

	entries, err = r.Walk(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []vfs.WalkEntry{{Path: "/index.html", Type: metadata.FileTypeFile}}, entries)

	ok, err := r.Exists(ctx, entries[0].Path)
	require.NoError(t, err)
	assert.True(t, ok)
}

// plainFS hides the optional Walker and Globber methods of the wrapped FS.
type plainFS struct {
	vfs.FS
}

func TestRouter_WalkUnsupported(t *testing.T) {
	ws, err := New(t.Context(), Options{Name: "plain", FS: plainFS{newMemoryFS("plain")}})
	require.NoError(t, err)

	r := NewRouter()
	require.NoError(t, r.Register(ws))

	entries, err := r.Walk(t.Context(), "/")
	require.NoError(t, err)
	assert.Empty(t, entries)

	matches, err := r.Glob(t.Context(), "**")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRouter_Glob(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := t.Context()

	matches, err := r.Glob(ctx, "/workspace/lib/**/*.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"/workspace/lib/src/lib.ts"}, matches)

	matches, err = r.Glob(ctx, "**/*.ts")
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = r.Glob(ctx, "index.htm?")
	require.NoError(t, err)
	assert.Equal(t, []string{"/index.html"}, matches)
}

func TestRouter_Watch(t *testing.T) {
	r, _, libFS := newTestRouter(t)

	var (
		mu    sync.Mutex
		paths []string
	)
	stop := r.Watch("/workspace/lib/src", vfs.WatchOptions{Recursive: true}, func(ev watch.Event) {
		mu.Lock()
		paths = append(paths, string(ev.Kind)+" "+ev.Path)
		mu.Unlock()
	})

	require.NoError(t, r.WriteTextFile(t.Context(), "/workspace/lib/src/new.ts", "x", vfs.WriteOptions{}))
	require.NoError(t, r.WriteTextFile(t.Context(), "/src-other.ts", "x", vfs.WriteOptions{}))
	libFS.Flush()
	stop()

	require.NoError(t, r.WriteTextFile(t.Context(), "/workspace/lib/src/later.ts", "x", vfs.WriteOptions{}))
	libFS.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"create /src/new.ts"}, paths)
}

func TestRouter_WatchWithoutWorkspace(t *testing.T) {
	r := NewRouter()
	stop := r.Watch("/", vfs.WatchOptions{}, func(watch.Event) {})
	stop()

	err := r.WriteTextFile(t.Context(), "/a", "x", vfs.WriteOptions{})
	assert.True(t, errors.Is(err, ErrNoWorkspace))
}
