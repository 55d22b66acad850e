package vfs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobmemory "github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/memory"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	metamemory "github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata/memory"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1700000000000)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestFS(t *testing.T) (*FileSystem, *testClock) {
	t.Helper()
	clock := newTestClock()
	meta := metamemory.NewMemoryMetadataStore()
	blobs := blobmemory.NewMemoryBlobStore()
	t.Cleanup(func() {
		_ = meta.Close()
		_ = blobs.Close()
	})
	return New(meta, blobs, Options{Name: "test", Now: clock.Now}), clock
}

// eventLog records watch events as "kind path" strings.
type eventLog struct {
	mu     sync.Mutex
	events []watch.Event
}

func (l *eventLog) handle(ev watch.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []string{}
	for _, ev := range l.events {
		out = append(out, string(ev.Kind)+" "+ev.Path)
	}
	return out
}

func assertCode(t *testing.T, want ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, CodeOf(err), "error: %v", err)
}

func mustWrite(t *testing.T, fs *FileSystem, path, content string) {
	t.Helper()
	require.NoError(t, fs.WriteTextFile(t.Context(), path, content, WriteOptions{}))
}

func mustMkdir(t *testing.T, fs *FileSystem, path string) {
	t.Helper()
	require.NoError(t, fs.CreateDirectory(t.Context(), path))
}

var errMetaDown = errors.New("metadata store unavailable")

// flakyMeta fails every Put while down is set.
type flakyMeta struct {
	metadata.MetadataStore
	down atomic.Bool
}

func (m *flakyMeta) Put(ctx context.Context, path string, stat *metadata.FileStat) error {
	if m.down.Load() {
		return errMetaDown
	}
	return m.MetadataStore.Put(ctx, path, stat)
}

func newFlakyFS(t *testing.T) (*FileSystem, *flakyMeta, *blobmemory.MemoryBlobStore) {
	t.Helper()
	meta := &flakyMeta{MetadataStore: metamemory.NewMemoryMetadataStore()}
	blobs := blobmemory.NewMemoryBlobStore()
	t.Cleanup(func() {
		_ = meta.Close()
		_ = blobs.Close()
	})
	return New(meta, blobs, Options{Name: "flaky"}), meta, blobs
}
