package workspace

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

func TestNew_InitialFiles(t *testing.T) {
	ws, fs := newTestWorkspace(t, "main", map[string]string{
		"index.html": "<html></html>\n",
	})
	ctx := t.Context()

	stat, err := ws.FS().Stat(ctx, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, metadata.FileTypeFile, stat.Type)
	assert.Equal(t, int64(1), stat.Version)
	assert.Equal(t, int64(14), stat.Size)

	entries, err := fs.ReadDirectory(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []vfs.DirEntry{{Name: "index.html", Type: metadata.FileTypeFile}}, entries)
}

func TestNew_CreatesParentDirectories(t *testing.T) {
	_, fs := newTestWorkspace(t, "main", map[string]string{
		"src/lib/util.ts": "export {}",
		"/src/index.ts":   "import './lib/util.ts'",
	})

	stat, err := fs.Stat(t.Context(), "/src/lib")
	require.NoError(t, err)
	assert.True(t, stat.IsDir())

	text, err := fs.ReadTextFile(t.Context(), "/src/lib/util.ts")
	require.NoError(t, err)
	assert.Equal(t, "export {}", text)
}

func TestNew_KeepsExistingFiles(t *testing.T) {
	fs := newMemoryFS("main")
	require.NoError(t, fs.WriteTextFile(t.Context(), "/index.html", "custom", vfs.WriteOptions{}))

	_, err := New(t.Context(), Options{
		Name:         "main",
		FS:           fs,
		InitialFiles: map[string]string{"/index.html": "<html></html>"},
	})
	require.NoError(t, err)

	text, err := fs.ReadTextFile(t.Context(), "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "custom", text)

	stat, err := fs.Stat(t.Context(), "/index.html")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.Version)
}

func TestNew_Validation(t *testing.T) {
	fs := newMemoryFS("x")

	for _, name := range []string{"", "a/b", "..", "."} {
		_, err := New(t.Context(), Options{Name: name, FS: fs})
		assert.Error(t, err, "name %q", name)
	}

	_, err := New(t.Context(), Options{Name: "ok"})
	assert.Error(t, err)
}

func TestOpenDocument(t *testing.T) {
	ws, _ := newTestWorkspace(t, "main", map[string]string{
		"index.html": "<html><body></body></html>",
	})

	doc, err := ws.OpenDocument(t.Context(), "file:///index.html")
	require.NoError(t, err)
	assert.Equal(t, "/index.html", doc.Path)
	assert.Equal(t, "<html><body></body></html>", doc.Content)
	assert.Equal(t, int64(1), doc.Version)
	assert.True(t, strings.HasPrefix(doc.MimeType, "text/html"), doc.MimeType)
}

func TestOpenDocument_MissingFallsBackToEmpty(t *testing.T) {
	ws, _ := newTestWorkspace(t, "main", nil)

	doc, err := ws.OpenDocument(t.Context(), "/new.ts")
	require.NoError(t, err)
	assert.Equal(t, &Document{Path: "/new.ts", MimeType: "text/plain"}, doc)
}

func TestOpenDocument_Directory(t *testing.T) {
	ws, fs := newTestWorkspace(t, "main", nil)
	require.NoError(t, fs.CreateDirectory(t.Context(), "/src"))

	_, err := ws.OpenDocument(t.Context(), "/src")
	assert.Equal(t, vfs.ErrIsADirectory, vfs.CodeOf(err))
}

func TestSaveDocument_TagsEditorOrigin(t *testing.T) {
	ws, fs := newTestWorkspace(t, "main", nil)

	var (
		mu     sync.Mutex
		events []watch.Event
	)
	stop := fs.Watch("/", vfs.WatchOptions{Recursive: true}, func(ev watch.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer stop()

	require.NoError(t, ws.SaveDocument(t.Context(), "/a.ts", "let a = 1"))
	require.NoError(t, fs.WriteTextFile(t.Context(), "/a.ts", "let a = 2", vfs.WriteOptions{}))
	fs.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.True(t, FromEditor(events[0]))
	assert.False(t, FromEditor(events[1]))

	doc, err := ws.OpenDocument(t.Context(), "/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "let a = 2", doc.Content)
	assert.Equal(t, int64(2), doc.Version)
}
