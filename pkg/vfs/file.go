package vfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

// ReadFile returns the content of a regular file.
func (fs *FileSystem) ReadFile(ctx context.Context, path string) (data []byte, err error) {
	defer fs.observe("read_file", time.Now(), &err)
	return fs.readFile(ctx, vpath.Normalize(path))
}

func (fs *FileSystem) readFile(ctx context.Context, p string) ([]byte, error) {
	stat, err := fs.lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if stat.IsDir() {
		return nil, isADirectory(p)
	}

	data, err := fs.blobs.Get(ctx, p)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, notFound(p)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// ReadTextFile returns the content of a regular file as a string.
func (fs *FileSystem) ReadTextFile(ctx context.Context, path string) (string, error) {
	data, err := fs.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile creates or replaces a regular file.
//
// The parent must be the root or an existing directory. Overwriting bumps
// the version and keeps ctime; a new file starts at version 1. The blob is
// written before the metadata so a reader never sees a stat without content,
// and is rolled back to its previous content if the metadata write fails.
// A create or modify event carrying opts.Context is queued after both
// writes commit.
func (fs *FileSystem) WriteFile(ctx context.Context, path string, data []byte, opts WriteOptions) (err error) {
	defer fs.observe("write_file", time.Now(), &err)

	p := vpath.Normalize(path)
	if vpath.IsRoot(p) {
		return isADirectory(p)
	}

	if _, err := fs.requireDirectory(ctx, vpath.Parent(p)); err != nil {
		return err
	}

	existing, err := fs.lookup(ctx, p)
	if err != nil && !IsNotFound(err) {
		return err
	}
	if existing != nil && existing.IsDir() {
		return isADirectory(p)
	}

	now := fs.now().UnixMilli()
	stat := &metadata.FileStat{
		Type:    metadata.FileTypeFile,
		Version: 1,
		Ctime:   now,
		Mtime:   now,
		Size:    int64(len(data)),
	}
	kind := watch.KindCreate
	if existing != nil {
		stat.Version = existing.Version + 1
		stat.Ctime = existing.Ctime
		kind = watch.KindModify
	}

	fs.writes.RLock()
	defer fs.writes.RUnlock()

	// Kept for rollback; nil means there was no blob
	var previous []byte
	if existing != nil {
		old, getErr := fs.blobs.Get(ctx, p)
		if getErr != nil && !errors.Is(getErr, blob.ErrNotFound) {
			return fmt.Errorf("write %s: %w", p, getErr)
		}
		if getErr == nil {
			previous = old
			if previous == nil {
				previous = []byte{}
			}
		}
	}

	if err := fs.blobs.Put(ctx, p, data); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := fs.meta.Put(ctx, p, stat); err != nil {
		fs.rollbackBlob(ctx, p, previous)
		return fmt.Errorf("write %s: %w", p, err)
	}

	fs.metrics.RecordBytesWritten(int64(len(data)))
	logger.Debug("vfs[%s]: wrote %s (version=%d, size=%d)", fs.name, p, stat.Version, stat.Size)

	fs.emit(watch.Event{Kind: kind, Path: p, Context: opts.Context})
	return nil
}

// rollbackBlob puts back the content a failed write replaced, or deletes the
// new blob when there was none.
func (fs *FileSystem) rollbackBlob(ctx context.Context, p string, previous []byte) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if previous == nil {
		err = fs.blobs.Delete(ctx, p)
	} else {
		err = fs.blobs.Put(ctx, p, previous)
	}
	if err != nil {
		logger.Warn("vfs[%s]: failed to roll back blob for %s: %v", fs.name, p, err)
	}
}

// WriteTextFile writes text as the content of a regular file.
func (fs *FileSystem) WriteTextFile(ctx context.Context, path string, text string, opts WriteOptions) error {
	return fs.WriteFile(ctx, path, []byte(text), opts)
}
