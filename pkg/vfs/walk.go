package vfs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
)

// Walk returns every descendant of a directory in key order, so each
// directory precedes its contents. The directory itself is not included.
func (fs *FileSystem) Walk(ctx context.Context, path string) (entries []WalkEntry, err error) {
	defer fs.observe("walk", time.Now(), &err)

	p := vpath.Normalize(path)
	if _, err := fs.requireDirectory(ctx, p); err != nil {
		return nil, err
	}

	err = fs.meta.Range(ctx, vpath.ChildPrefix(p), func(key string, stat *metadata.FileStat) error {
		entries = append(entries, WalkEntry{Path: key, Type: stat.Type})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", p, err)
	}
	if entries == nil {
		entries = []WalkEntry{}
	}
	return entries, nil
}

// Glob returns the paths matching a doublestar pattern such as "src/**/*.ts".
//
// Patterns are matched against paths relative to the root, so "/src/*.ts"
// and "src/*.ts" are equivalent.
func (fs *FileSystem) Glob(ctx context.Context, pattern string) (matches []string, err error) {
	defer fs.observe("glob", time.Now(), &err)

	pat := strings.TrimPrefix(pattern, "/")
	if !doublestar.ValidatePattern(pat) {
		return nil, fmt.Errorf("glob %q: %w", pattern, doublestar.ErrBadPattern)
	}

	err = fs.meta.Range(ctx, vpath.Root, func(key string, _ *metadata.FileStat) error {
		ok, err := doublestar.Match(pat, strings.TrimPrefix(key, "/"))
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if matches == nil {
		matches = []string{}
	}
	return matches, nil
}
