package workspace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
)

// ViewStateRoot is the reserved directory holding cached editor state.
const ViewStateRoot = "/.tmp"

// ViewState stores JSON-encoded editor view state (cursor, scroll, folding)
// per document URI under /.tmp/<workspace>/.
//
// Keys are the base64url encoding of the normalized URI, so "file:///a.ts"
// and "/a.ts" share one entry and every key is a single path segment.
type ViewState struct {
	fs  vfs.FS
	dir string
}

func newViewState(fs vfs.FS, name string) *ViewState {
	return &ViewState{fs: fs, dir: ViewStateRoot + "/" + name}
}

// Dir returns the directory the entries live in.
func (v *ViewState) Dir() string {
	return v.dir
}

func (v *ViewState) path(uri string) string {
	key := base64.RawURLEncoding.EncodeToString([]byte(vpath.Normalize(uri)))
	return v.dir + "/" + key + ".json"
}

// Save stores state for uri, replacing any previous value.
func (v *ViewState) Save(ctx context.Context, uri string, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode view state for %s: %w", uri, err)
	}
	if err := v.fs.CreateDirectory(ctx, v.dir); err != nil {
		return err
	}
	return v.fs.WriteFile(ctx, v.path(uri), data, vfs.WriteOptions{})
}

// Load decodes the state stored for uri into out. It reports false, with
// out untouched, when nothing is stored.
func (v *ViewState) Load(ctx context.Context, uri string, out any) (bool, error) {
	data, err := v.fs.ReadFile(ctx, v.path(uri))
	if vfs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode view state for %s: %w", uri, err)
	}
	return true, nil
}

// Delete removes the state stored for uri. Deleting a missing entry is not
// an error.
func (v *ViewState) Delete(ctx context.Context, uri string) error {
	err := v.fs.Delete(ctx, v.path(uri), vfs.DeleteOptions{})
	if vfs.IsNotFound(err) {
		return nil
	}
	return err
}

// Clear removes every stored entry.
func (v *ViewState) Clear(ctx context.Context) error {
	err := v.fs.Delete(ctx, v.dir, vfs.DeleteOptions{Recursive: true})
	if vfs.IsNotFound(err) {
		return nil
	}
	return err
}
