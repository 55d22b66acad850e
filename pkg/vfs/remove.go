package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

// Delete removes a file or directory.
//
// A non-empty directory requires opts.Recursive. The root can never be
// deleted. One remove event is queued per removed path, the target first
// and then its descendants in key order.
func (fs *FileSystem) Delete(ctx context.Context, path string, opts DeleteOptions) (err error) {
	defer fs.observe("delete", time.Now(), &err)

	p := vpath.Normalize(path)
	if vpath.IsRoot(p) {
		return newError(ErrNotAllowed, "cannot delete the root directory", p)
	}

	stat, err := fs.lookup(ctx, p)
	if err != nil {
		return err
	}

	if stat.IsDir() && !opts.Recursive {
		nonEmpty, err := fs.hasChildren(ctx, p)
		if err != nil {
			return err
		}
		if nonEmpty {
			return newError(ErrDirectoryNotEmpty, "directory not empty", p)
		}
	}

	entries, err := fs.subtree(ctx, p, stat)
	if err != nil {
		return err
	}

	if err := fs.removeEntries(ctx, entries); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}

	logger.Debug("vfs[%s]: deleted %s (%d entries)", fs.name, p, len(entries))
	fs.emit(removeEvents(entries)...)
	return nil
}

// removeEntries deletes metadata for every entry, then the blobs of the
// files among them. A failure between the two leaves orphan blobs, never
// stats without content.
func (fs *FileSystem) removeEntries(ctx context.Context, entries []metadata.Entry) error {
	paths := make([]string, 0, len(entries))
	var files []string
	for _, e := range entries {
		paths = append(paths, e.Path)
		if e.Stat.IsFile() {
			files = append(files, e.Path)
		}
	}

	if err := fs.meta.DeleteBatch(ctx, paths); err != nil {
		return err
	}
	if len(files) > 0 {
		if err := fs.blobs.DeleteBatch(ctx, files); err != nil {
			return err
		}
	}
	return nil
}

func removeEvents(entries []metadata.Entry) []watch.Event {
	events := make([]watch.Event, 0, len(entries))
	for _, e := range entries {
		events = append(events, watch.Event{Kind: watch.KindRemove, Path: e.Path})
	}
	return events
}
