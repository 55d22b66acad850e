package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
)

// ErrNoWorkspace is returned when a router with no registered workspace is
// asked to resolve a path.
var ErrNoWorkspace = errors.New("no workspace registered")

// Router dispatches file system calls across workspaces by URI prefix.
//
// A URI of the form /workspace/<name>/rest is routed to workspace <name>
// with path /rest. Anything else, including a prefix naming an unknown
// workspace, goes unchanged to the default workspace, which is the first
// one registered.
//
// The router holds references to workspaces it did not create and never
// closes their stores.
//
// Thread Safety:
// Safe for concurrent use. Registration takes a write lock; every other
// call only holds the read lock while resolving.
type Router struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	order      []string
}

// Compile-time interface checks
var (
	_ vfs.FS      = (*Router)(nil)
	_ vfs.Walker  = (*Router)(nil)
	_ vfs.Globber = (*Router)(nil)
)

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{workspaces: make(map[string]*Workspace)}
}

// Register adds a workspace. The first registered workspace becomes the
// default. Returns an error if the name is already taken.
func (r *Router) Register(ws *Workspace) error {
	if ws == nil {
		return fmt.Errorf("cannot register nil workspace")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workspaces[ws.Name()]; exists {
		return fmt.Errorf("workspace %q already registered", ws.Name())
	}

	r.workspaces[ws.Name()] = ws
	r.order = append(r.order, ws.Name())

	logger.Debug("router: registered workspace %q (default=%v)", ws.Name(), len(r.order) == 1)
	return nil
}

// Workspace returns a registered workspace by name.
func (r *Router) Workspace(name string) (*Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.workspaces[name]
	return ws, ok
}

// Default returns the default workspace, or false if none is registered.
func (r *Router) Default() (*Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.workspaces[r.order[0]], true
}

// Names returns the registered workspace names in registration order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Resolve returns the file system owning uri and the path inside it.
func (r *Router) Resolve(uri string) (vfs.FS, string, error) {
	ws, p, err := r.resolve(uri)
	if err != nil {
		return nil, "", err
	}
	return ws.FS(), p, nil
}

func (r *Router) resolve(uri string) (*Workspace, string, error) {
	if name, rest, ok := DetectWorkspace(uri); ok {
		if ws, found := r.Workspace(name); found {
			return ws, rest, nil
		}
	}

	ws, ok := r.Default()
	if !ok {
		return nil, "", ErrNoWorkspace
	}
	return ws, vpath.Normalize(uri), nil
}

// resolvePair resolves both ends of a rename or copy, which must land in
// the same workspace.
func (r *Router) resolvePair(from, to string) (*Workspace, string, string, error) {
	src, srcPath, err := r.resolve(from)
	if err != nil {
		return nil, "", "", err
	}
	dst, dstPath, err := r.resolve(to)
	if err != nil {
		return nil, "", "", err
	}
	if src != dst {
		return nil, "", "", vfs.NewError(vfs.ErrNotAllowed,
			fmt.Sprintf("cannot move between workspaces %q and %q", src.Name(), dst.Name()), to)
	}
	return src, srcPath, dstPath, nil
}

func (r *Router) isDefault(ws *Workspace) bool {
	def, ok := r.Default()
	return ok && def == ws
}

func (r *Router) Stat(ctx context.Context, path string) (*metadata.FileStat, error) {
	ws, p, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return ws.FS().Stat(ctx, p)
}

func (r *Router) Exists(ctx context.Context, path string) (bool, error) {
	ws, p, err := r.resolve(path)
	if err != nil {
		return false, err
	}
	return ws.FS().Exists(ctx, p)
}

func (r *Router) ReadDirectory(ctx context.Context, path string) ([]vfs.DirEntry, error) {
	ws, p, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return ws.FS().ReadDirectory(ctx, p)
}

func (r *Router) CreateDirectory(ctx context.Context, path string) error {
	ws, p, err := r.resolve(path)
	if err != nil {
		return err
	}
	return ws.FS().CreateDirectory(ctx, p)
}

func (r *Router) ReadFile(ctx context.Context, path string) ([]byte, error) {
	ws, p, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return ws.FS().ReadFile(ctx, p)
}

func (r *Router) ReadTextFile(ctx context.Context, path string) (string, error) {
	ws, p, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	return ws.FS().ReadTextFile(ctx, p)
}

func (r *Router) WriteFile(ctx context.Context, path string, data []byte, opts vfs.WriteOptions) error {
	ws, p, err := r.resolve(path)
	if err != nil {
		return err
	}
	return ws.FS().WriteFile(ctx, p, data, opts)
}

func (r *Router) WriteTextFile(ctx context.Context, path string, text string, opts vfs.WriteOptions) error {
	ws, p, err := r.resolve(path)
	if err != nil {
		return err
	}
	return ws.FS().WriteTextFile(ctx, p, text, opts)
}

func (r *Router) Delete(ctx context.Context, path string, opts vfs.DeleteOptions) error {
	ws, p, err := r.resolve(path)
	if err != nil {
		return err
	}
	return ws.FS().Delete(ctx, p, opts)
}

// Rename moves within one workspace. Moving across workspaces fails with
// NotAllowed.
func (r *Router) Rename(ctx context.Context, oldPath, newPath string, opts vfs.RenameOptions) error {
	ws, src, dst, err := r.resolvePair(oldPath, newPath)
	if err != nil {
		return err
	}
	return ws.FS().Rename(ctx, src, dst, opts)
}

// Copy copies within one workspace. Copying across workspaces fails with
// NotAllowed.
func (r *Router) Copy(ctx context.Context, source, target string, opts vfs.CopyOptions) error {
	ws, src, dst, err := r.resolvePair(source, target)
	if err != nil {
		return err
	}
	return ws.FS().Copy(ctx, src, dst, opts)
}

// Watch registers handler on the owning workspace with the prefix removed.
// Events carry workspace-relative paths.
func (r *Router) Watch(path string, opts vfs.WatchOptions, handler watch.Handler) func() {
	ws, p, err := r.resolve(path)
	if err != nil {
		logger.Warn("router: cannot watch %s: %v", path, err)
		return func() {}
	}
	return ws.FS().Watch(p, opts, handler)
}

// Walk lists a subtree of the owning workspace. Paths from a non-default
// workspace come back with its prefix so they resolve to the same entries.
// Workspaces whose file system cannot walk yield an empty list.
func (r *Router) Walk(ctx context.Context, path string) ([]vfs.WalkEntry, error) {
	ws, p, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	walker, ok := ws.FS().(vfs.Walker)
	if !ok {
		return []vfs.WalkEntry{}, nil
	}

	entries, err := walker.Walk(ctx, p)
	if err != nil {
		return nil, err
	}
	if !r.isDefault(ws) {
		for i := range entries {
			entries[i].Path = AddWorkspacePrefix(entries[i].Path, ws.Name())
		}
	}
	return entries, nil
}

// Glob matches a pattern in the owning workspace. A pattern may start with
// /workspace/<name>/ to target a non-default workspace; matches from it are
// prefixed like Walk results.
func (r *Router) Glob(ctx context.Context, pattern string) ([]string, error) {
	ws, pat, err := r.resolvePattern(pattern)
	if err != nil {
		return nil, err
	}

	globber, ok := ws.FS().(vfs.Globber)
	if !ok {
		return []string{}, nil
	}

	matches, err := globber.Glob(ctx, pat)
	if err != nil {
		return nil, err
	}
	if !r.isDefault(ws) {
		for i := range matches {
			matches[i] = AddWorkspacePrefix(matches[i], ws.Name())
		}
	}
	return matches, nil
}

// resolvePattern is resolve for glob patterns, which are split lexically
// because normalization would mangle wildcard characters such as '?'.
func (r *Router) resolvePattern(pattern string) (*Workspace, string, error) {
	if name, rest, ok := splitPrefix("/" + strings.TrimPrefix(pattern, "/")); ok {
		if ws, found := r.Workspace(name); found {
			return ws, rest, nil
		}
	}

	ws, ok := r.Default()
	if !ok {
		return nil, "", ErrNoWorkspace
	}
	return ws, pattern, nil
}
