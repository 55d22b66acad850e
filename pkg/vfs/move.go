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

// Rename moves a file or a whole directory subtree.
//
// Stats are carried over unchanged. The new keys are written (blobs, then
// metadata) before the old ones are deleted, each step in batches. For every
// moved path a remove event for the old path is queued, followed by a create
// event for the new one.
func (fs *FileSystem) Rename(ctx context.Context, oldPath, newPath string, opts RenameOptions) (err error) {
	defer fs.observe("rename", time.Now(), &err)

	src := vpath.Normalize(oldPath)
	dst := vpath.Normalize(newPath)

	if vpath.IsRoot(src) || vpath.IsRoot(dst) {
		return newError(ErrNotAllowed, "cannot rename the root directory", src)
	}

	srcStat, err := fs.lookup(ctx, src)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if vpath.IsDescendant(dst, src) {
		return newError(ErrNotAllowed, "cannot move a directory into itself", dst)
	}

	replaced, err := fs.prepareDestination(ctx, src, dst, opts.Overwrite)
	if err != nil {
		return err
	}

	entries, err := fs.subtree(ctx, src, srcStat)
	if err != nil {
		return err
	}

	moved := make([]metadata.Entry, 0, len(entries))
	for _, e := range entries {
		moved = append(moved, metadata.Entry{Path: vpath.Rebase(e.Path, src, dst), Stat: e.Stat})
	}

	if err := fs.writeEntries(ctx, entries, moved); err != nil {
		return fmt.Errorf("rename %s to %s: %w", src, dst, err)
	}
	if err := fs.removeEntries(ctx, entries); err != nil {
		return fmt.Errorf("rename %s to %s: %w", src, dst, err)
	}

	logger.Debug("vfs[%s]: renamed %s to %s (%d entries)", fs.name, src, dst, len(entries))

	events := removeEvents(replaced)
	for i := range entries {
		events = append(events,
			watch.Event{Kind: watch.KindRemove, Path: entries[i].Path},
			watch.Event{Kind: watch.KindCreate, Path: moved[i].Path},
		)
	}
	fs.emit(events...)
	return nil
}

// Copy duplicates a file or a whole directory subtree.
//
// Copies are new files: version 1, ctime and mtime set to now, size carried
// over. One create event is queued per new path.
func (fs *FileSystem) Copy(ctx context.Context, source, target string, opts CopyOptions) (err error) {
	defer fs.observe("copy", time.Now(), &err)

	src := vpath.Normalize(source)
	dst := vpath.Normalize(target)

	if vpath.IsRoot(dst) {
		return newError(ErrNotAllowed, "cannot copy onto the root directory", dst)
	}
	if src == dst || vpath.IsDescendant(dst, src) {
		return newError(ErrNotAllowed, "cannot copy a directory into itself", dst)
	}

	srcStat, err := fs.lookup(ctx, src)
	if err != nil {
		return err
	}

	replaced, err := fs.prepareDestination(ctx, src, dst, opts.Overwrite)
	if err != nil {
		return err
	}

	entries, err := fs.subtree(ctx, src, srcStat)
	if err != nil {
		return err
	}

	now := fs.now().UnixMilli()
	copies := make([]metadata.Entry, 0, len(entries))
	for _, e := range entries {
		copies = append(copies, metadata.Entry{
			Path: vpath.Rebase(e.Path, src, dst),
			Stat: &metadata.FileStat{
				Type:    e.Stat.Type,
				Version: 1,
				Ctime:   now,
				Mtime:   now,
				Size:    e.Stat.Size,
			},
		})
	}

	if err := fs.writeEntries(ctx, entries, copies); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	logger.Debug("vfs[%s]: copied %s to %s (%d entries)", fs.name, src, dst, len(entries))

	events := removeEvents(replaced)
	for _, c := range copies {
		events = append(events, watch.Event{Kind: watch.KindCreate, Path: c.Path})
	}
	fs.emit(events...)
	return nil
}

// prepareDestination validates the destination of a rename or copy and, when
// overwrite is set, deletes whatever is there. It returns the removed
// entries so the caller can report them.
func (fs *FileSystem) prepareDestination(ctx context.Context, src, dst string, overwrite bool) ([]metadata.Entry, error) {
	if _, err := fs.requireDirectory(ctx, vpath.Parent(dst)); err != nil {
		return nil, err
	}

	dstStat, err := fs.lookup(ctx, dst)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !overwrite {
		return nil, alreadyExists(dst)
	}
	if vpath.IsDescendant(src, dst) {
		return nil, newError(ErrNotAllowed, "cannot replace an ancestor of the source", dst)
	}

	existing, err := fs.subtree(ctx, dst, dstStat)
	if err != nil {
		return nil, err
	}
	if err := fs.removeEntries(ctx, existing); err != nil {
		return nil, fmt.Errorf("replace %s: %w", dst, err)
	}
	return existing, nil
}

// writeEntries stores targets, copying each file blob from the source entry
// at the same index. Blobs are written before metadata.
func (fs *FileSystem) writeEntries(ctx context.Context, sources, targets []metadata.Entry) error {
	fs.writes.RLock()
	defer fs.writes.RUnlock()

	content, err := fs.readBlobs(ctx, sources)
	if err != nil {
		return err
	}

	var blobs []blob.Entry
	for i, e := range sources {
		if !e.Stat.IsFile() {
			continue
		}
		data, ok := content[e.Path]
		if !ok {
			return notFound(e.Path)
		}
		blobs = append(blobs, blob.Entry{Path: targets[i].Path, Data: data})
	}

	if len(blobs) > 0 {
		if err := fs.blobs.PutBatch(ctx, blobs); err != nil {
			return err
		}
	}
	return fs.meta.PutBatch(ctx, targets)
}

// readBlobs loads the content of the files in sources, whose first entry is
// the subtree root. A directory is read with one Range over its prefix.
func (fs *FileSystem) readBlobs(ctx context.Context, sources []metadata.Entry) (map[string][]byte, error) {
	content := make(map[string][]byte)
	if len(sources) == 0 {
		return content, nil
	}

	if root := sources[0]; root.Stat.IsDir() {
		err := fs.blobs.Range(ctx, root.Path+"/", func(path string, data []byte) error {
			content[path] = data
			return nil
		})
		return content, err
	}

	for _, e := range sources {
		data, err := fs.blobs.Get(ctx, e.Path)
		if errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		content[e.Path] = data
	}
	return content, nil
}
