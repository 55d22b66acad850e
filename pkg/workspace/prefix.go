package workspace

import (
	"strings"

	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
)

// PrefixRoot is the path segment that introduces a workspace name in
// multi-workspace URIs: /workspace/<name>/...
const PrefixRoot = "/workspace"

// AddWorkspacePrefix returns path rewritten under the /workspace/<name>
// prefix. The root maps to the bare prefix.
func AddWorkspacePrefix(path, name string) string {
	p := vpath.Normalize(path)
	if vpath.IsRoot(p) {
		return PrefixRoot + "/" + name
	}
	return PrefixRoot + "/" + name + p
}

// StripWorkspacePrefix removes a /workspace/<name> prefix from uri. URIs
// without a prefix are returned normalized but otherwise unchanged.
func StripWorkspacePrefix(uri string) string {
	_, rest, ok := DetectWorkspace(uri)
	if !ok {
		return vpath.Normalize(uri)
	}
	return rest
}

// DetectWorkspace splits a /workspace/<name>/... URI into the workspace name
// and the path inside the workspace. ok is false when uri carries no prefix.
//
// Detection is purely lexical: the name is not checked against any router.
func DetectWorkspace(uri string) (name, rest string, ok bool) {
	return splitPrefix(vpath.Normalize(uri))
}

// splitPrefix works on an already canonical path (or a glob pattern, which
// must not go through normalization).
func splitPrefix(p string) (name, rest string, ok bool) {
	tail, found := strings.CutPrefix(p, PrefixRoot+"/")
	if !found || tail == "" {
		return "", "", false
	}

	name, rest, _ = strings.Cut(tail, "/")
	if name == "" {
		return "", "", false
	}
	return name, "/" + rest, true
}
