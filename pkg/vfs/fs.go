// Package vfs implements a hierarchical file system over two flat key-value
// stores: a metadata store (path -> FileStat) and a blob store
// (path -> content).
//
// Directory semantics exist only in this layer. The stores never see a
// directory object; a directory is a FileStat of type Directory whose
// children are the keys sharing its "path/" prefix. The root "/" is
// synthetic and never stored.
//
// Every mutation commits to the stores before the matching watch events are
// queued, and events are delivered asynchronously by the watch registry.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/metrics"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

// DirEntry is one direct child returned by ReadDirectory.
type DirEntry struct {
	Name string
	Type metadata.FileType
}

// WalkEntry is one descendant returned by Walk.
type WalkEntry struct {
	Path string
	Type metadata.FileType
}

// WriteOptions controls WriteFile.
type WriteOptions struct {
	// Context is attached to the resulting watch event. Editors use it to
	// recognise their own writes and skip reloading.
	Context any
}

// DeleteOptions controls Delete.
type DeleteOptions struct {
	// Recursive allows deleting a non-empty directory with all its descendants
	Recursive bool
}

// RenameOptions controls Rename.
type RenameOptions struct {
	// Overwrite replaces an existing destination (recursively, if it is a directory)
	Overwrite bool
}

// CopyOptions controls Copy.
type CopyOptions struct {
	// Overwrite replaces an existing destination (recursively, if it is a directory)
	Overwrite bool
}

// WatchOptions controls Watch.
type WatchOptions struct {
	// Recursive also matches every descendant of the watched path
	Recursive bool
}

// FS is the file system contract shared by FileSystem and the workspace router.
//
// Every path argument accepts any form vpath.Normalize understands,
// including file:// URIs.
type FS interface {
	Stat(ctx context.Context, path string) (*metadata.FileStat, error)
	Exists(ctx context.Context, path string) (bool, error)
	ReadDirectory(ctx context.Context, path string) ([]DirEntry, error)
	CreateDirectory(ctx context.Context, path string) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ReadTextFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path string, data []byte, opts WriteOptions) error
	WriteTextFile(ctx context.Context, path string, text string, opts WriteOptions) error
	Delete(ctx context.Context, path string, opts DeleteOptions) error
	Rename(ctx context.Context, oldPath, newPath string, opts RenameOptions) error
	Copy(ctx context.Context, source, target string, opts CopyOptions) error

	// Watch registers handler and returns a function that unregisters it.
	Watch(path string, opts WatchOptions, handler watch.Handler) func()
}

// Walker is implemented by file systems that can list a whole subtree.
type Walker interface {
	Walk(ctx context.Context, path string) ([]WalkEntry, error)
}

// Globber is implemented by file systems that can match paths against
// doublestar patterns.
type Globber interface {
	Glob(ctx context.Context, pattern string) ([]string, error)
}

// Options configures a FileSystem.
type Options struct {
	// Name identifies the file system in logs (usually the workspace name)
	Name string

	// Watchers receives change events. A private registry is created if nil.
	Watchers *watch.Registry

	// Metrics records per-operation metrics. No-op if nil.
	Metrics metrics.FSMetrics

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// FileSystem implements FS over a metadata store and a blob store.
//
// Thread Safety:
// Safe for concurrent use. Each store call is atomic, but checks spanning
// several calls (for example "parent exists" followed by the write) are not:
// concurrent writers to the same subtree can race. The file system is meant
// to have a single logical writer.
type FileSystem struct {
	name     string
	meta     metadata.MetadataStore
	blobs    blob.BlobStore
	watchers *watch.Registry
	metrics  metrics.FSMetrics
	now      func() time.Time

	// writes is read-held from a blob write until its metadata commits.
	writes sync.RWMutex
}

// Compile-time interface checks
var (
	_ FS      = (*FileSystem)(nil)
	_ Walker  = (*FileSystem)(nil)
	_ Globber = (*FileSystem)(nil)
)

// New creates a file system over meta and blobs. The caller keeps ownership
// of both stores and closes them when the file system is no longer used.
func New(meta metadata.MetadataStore, blobs blob.BlobStore, opts Options) *FileSystem {
	fs := &FileSystem{
		name:     opts.Name,
		meta:     meta,
		blobs:    blobs,
		watchers: opts.Watchers,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if fs.watchers == nil {
		fs.watchers = watch.NewRegistry()
	}
	if fs.metrics == nil {
		fs.metrics = metrics.NewNoopFSMetrics()
	}
	if fs.now == nil {
		fs.now = time.Now
	}
	return fs
}

// Name returns the name the file system was created with.
func (fs *FileSystem) Name() string {
	return fs.name
}

// Watchers returns the registry the file system dispatches events to.
func (fs *FileSystem) Watchers() *watch.Registry {
	return fs.watchers
}

// LockWrites waits for in-flight blob and metadata writes to commit and
// holds off new ones until the returned function is called. The orphaned
// blob collector takes it before deciding a blob is unowned.
func (fs *FileSystem) LockWrites() (unlock func()) {
	fs.writes.Lock()
	return fs.writes.Unlock
}

// Flush blocks until all watch events produced so far have been delivered.
func (fs *FileSystem) Flush() {
	fs.watchers.Flush()
}

// observe records metrics for an operation. Use with a named error result:
//
//	defer fs.observe("stat", time.Now(), &err)
func (fs *FileSystem) observe(op string, start time.Time, err *error) {
	fs.metrics.ObserveOperation(op, time.Since(start), *err)
}

func (fs *FileSystem) emit(events ...watch.Event) {
	for _, ev := range events {
		fs.metrics.RecordWatchEvent(string(ev.Kind))
	}
	fs.watchers.Dispatch(events...)
}

// lookup returns the stat for a canonical path, translating a missing
// metadata entry into a NotFound error.
func (fs *FileSystem) lookup(ctx context.Context, p string) (*metadata.FileStat, error) {
	if vpath.IsRoot(p) {
		return metadata.RootStat(), nil
	}

	stat, err := fs.meta.Get(ctx, p)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, notFound(p)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	return stat, nil
}

// requireDirectory fails unless p exists and is a directory.
func (fs *FileSystem) requireDirectory(ctx context.Context, p string) (*metadata.FileStat, error) {
	stat, err := fs.lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if !stat.IsDir() {
		return nil, notADirectory(p)
	}
	return stat, nil
}

// descendants returns every entry strictly below p, in key order.
func (fs *FileSystem) descendants(ctx context.Context, p string) ([]metadata.Entry, error) {
	entries, err := metadata.Collect(ctx, fs.meta, vpath.ChildPrefix(p))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p, err)
	}
	return entries, nil
}

// subtree returns p followed by all of its descendants.
func (fs *FileSystem) subtree(ctx context.Context, p string, stat *metadata.FileStat) ([]metadata.Entry, error) {
	entries := []metadata.Entry{{Path: p, Stat: stat}}
	if !stat.IsDir() {
		return entries, nil
	}
	below, err := fs.descendants(ctx, p)
	if err != nil {
		return nil, err
	}
	return append(entries, below...), nil
}

var errStopScan = errors.New("stop scan")

// hasChildren reports whether any key lives below directory p.
func (fs *FileSystem) hasChildren(ctx context.Context, p string) (bool, error) {
	found := false
	err := fs.meta.Range(ctx, vpath.ChildPrefix(p), func(string, *metadata.FileStat) error {
		found = true
		return errStopScan
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return false, fmt.Errorf("scan %s: %w", p, err)
	}
	return found, nil
}

// Stat returns the metadata for path. The root always reports a directory
// with version 1 and zero timestamps.
func (fs *FileSystem) Stat(ctx context.Context, path string) (stat *metadata.FileStat, err error) {
	defer fs.observe("stat", time.Now(), &err)
	return fs.lookup(ctx, vpath.Normalize(path))
}

// Exists reports whether path has an entry.
func (fs *FileSystem) Exists(ctx context.Context, path string) (bool, error) {
	_, err := fs.Stat(ctx, path)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadDirectory lists the direct children of a directory in store key order.
func (fs *FileSystem) ReadDirectory(ctx context.Context, path string) (entries []DirEntry, err error) {
	defer fs.observe("read_directory", time.Now(), &err)

	p := vpath.Normalize(path)
	if _, err := fs.requireDirectory(ctx, p); err != nil {
		return nil, err
	}

	err = fs.meta.Range(ctx, vpath.ChildPrefix(p), func(key string, stat *metadata.FileStat) error {
		if name := vpath.ChildName(p, key); name != "" {
			entries = append(entries, DirEntry{Name: name, Type: stat.Type})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", p, err)
	}

	if entries == nil {
		entries = []DirEntry{}
	}
	return entries, nil
}

// CreateDirectory creates path and any missing ancestors. Existing
// directories along the way are left untouched; an existing file anywhere on
// the chain fails with NotADirectory.
func (fs *FileSystem) CreateDirectory(ctx context.Context, path string) (err error) {
	defer fs.observe("create_directory", time.Now(), &err)

	p := vpath.Normalize(path)
	if vpath.IsRoot(p) {
		return nil
	}

	chain := append(vpath.Ancestors(p), p)
	var missing []string
	for _, dir := range chain {
		// Once one segment is missing, everything below it is missing too
		if len(missing) > 0 {
			missing = append(missing, dir)
			continue
		}

		stat, err := fs.lookup(ctx, dir)
		if IsNotFound(err) {
			missing = append(missing, dir)
			continue
		}
		if err != nil {
			return err
		}
		if !stat.IsDir() {
			return notADirectory(dir)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	now := fs.now().UnixMilli()
	entries := make([]metadata.Entry, 0, len(missing))
	events := make([]watch.Event, 0, len(missing))
	for _, dir := range missing {
		entries = append(entries, metadata.Entry{
			Path: dir,
			Stat: &metadata.FileStat{
				Type:    metadata.FileTypeDirectory,
				Version: 1,
				Ctime:   now,
				Mtime:   now,
			},
		})
		events = append(events, watch.Event{Kind: watch.KindCreate, Path: dir})
	}

	if err := fs.meta.PutBatch(ctx, entries); err != nil {
		return fmt.Errorf("create directory %s: %w", p, err)
	}

	logger.Debug("vfs[%s]: created %d directories for %s", fs.name, len(missing), p)
	fs.emit(events...)
	return nil
}

// Watch registers handler for events at path (and below it, if recursive).
func (fs *FileSystem) Watch(path string, opts WatchOptions, handler watch.Handler) func() {
	reg := fs.watchers.Register(path, opts.Recursive, handler)
	return func() {
		fs.watchers.Unregister(reg.ID)
	}
}
