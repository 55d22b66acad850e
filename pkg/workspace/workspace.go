// Package workspace binds named file systems to the /workspace/<name> URI
// prefix and provides the editor-facing helpers layered on top of them:
// initial file seeding, document open/save and cached view state.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

// Origin identifies where a write came from. It is passed as
// vfs.WriteOptions.Context and comes back in watch.Event.Context.
type Origin string

// EditorOrigin marks writes made by the editor itself. Watch handlers that
// reload documents skip events carrying it.
const EditorOrigin Origin = "editor"

// FromEditor reports whether ev was produced by SaveDocument.
func FromEditor(ev watch.Event) bool {
	origin, ok := ev.Context.(Origin)
	return ok && origin == EditorOrigin
}

// emptyDocumentMimeType is reported for documents that do not exist yet.
const emptyDocumentMimeType = "text/plain"

// Options configures a Workspace.
type Options struct {
	// Name is the workspace name used in /workspace/<name> URIs
	Name string

	// FS is the file system backing the workspace
	FS vfs.FS

	// InitialFiles maps paths to text content written when the workspace is
	// created. Paths that already exist are left untouched.
	InitialFiles map[string]string
}

// Workspace is a named file system plus its view-state store.
type Workspace struct {
	name      string
	fs        vfs.FS
	viewState *ViewState
}

// Document is the editor's view of a file.
type Document struct {
	// Path is the canonical path inside the workspace
	Path string

	// Content is the file text; empty for a document that does not exist yet
	Content string

	// Version is the file version, or 0 for a document that does not exist yet
	Version int64

	// MimeType is detected from the content
	MimeType string
}

// New creates a workspace and seeds its initial files.
//
// Returns an error if the name is not a single path segment, FS is nil, or
// writing an initial file fails.
func New(ctx context.Context, opts Options) (*Workspace, error) {
	if err := validateName(opts.Name); err != nil {
		return nil, err
	}
	if opts.FS == nil {
		return nil, fmt.Errorf("workspace %q: file system is required", opts.Name)
	}

	ws := &Workspace{
		name:      opts.Name,
		fs:        opts.FS,
		viewState: newViewState(opts.FS, opts.Name),
	}

	written, err := ws.seed(ctx, opts.InitialFiles)
	if err != nil {
		return nil, fmt.Errorf("workspace %q: %w", opts.Name, err)
	}

	logger.Debug("workspace[%s]: ready (%d initial files written)", opts.Name, written)
	return ws, nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New("workspace name cannot be empty")
	}
	if strings.Contains(name, "/") || vpath.Normalize(name) != "/"+name {
		return fmt.Errorf("workspace name %q must be a single path segment", name)
	}
	return nil
}

// seed writes every initial file that does not exist yet, in path order.
func (w *Workspace) seed(ctx context.Context, files map[string]string) (int, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	written := 0
	for _, p := range paths {
		canonical := vpath.Normalize(p)

		exists, err := w.fs.Exists(ctx, canonical)
		if err != nil {
			return written, err
		}
		if exists {
			continue
		}

		if err := w.fs.CreateDirectory(ctx, vpath.Parent(canonical)); err != nil {
			return written, err
		}
		if err := w.fs.WriteTextFile(ctx, canonical, files[p], vfs.WriteOptions{}); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Name returns the workspace name.
func (w *Workspace) Name() string {
	return w.name
}

// FS returns the file system backing the workspace.
func (w *Workspace) FS() vfs.FS {
	return w.fs
}

// ViewState returns the workspace's view-state store.
func (w *Workspace) ViewState() *ViewState {
	return w.viewState
}

// OpenDocument loads a file for editing. A missing file opens as an empty
// document with version 0 instead of failing.
func (w *Workspace) OpenDocument(ctx context.Context, path string) (*Document, error) {
	p := vpath.Normalize(path)

	data, err := w.fs.ReadFile(ctx, p)
	if vfs.IsNotFound(err) {
		logger.Debug("workspace[%s]: %s not found, opening empty document", w.name, p)
		return &Document{Path: p, MimeType: emptyDocumentMimeType}, nil
	}
	if err != nil {
		return nil, err
	}

	stat, err := w.fs.Stat(ctx, p)
	if err != nil {
		return nil, err
	}

	return &Document{
		Path:     p,
		Content:  string(data),
		Version:  stat.Version,
		MimeType: mimetype.Detect(data).String(),
	}, nil
}

// SaveDocument writes text tagged with EditorOrigin.
func (w *Workspace) SaveDocument(ctx context.Context, path, text string) error {
	return w.fs.WriteTextFile(ctx, path, text, vfs.WriteOptions{Context: EditorOrigin})
}
