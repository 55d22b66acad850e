package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddWorkspacePrefix(t *testing.T) {
	tests := []struct {
		path string
		name string
		want string
	}{
		{"/src/index.ts", "app", "/workspace/app/src/index.ts"},
		{"src/index.ts", "app", "/workspace/app/src/index.ts"},
		{"/", "app", "/workspace/app"},
		{"file:///a/b/", "lib", "/workspace/lib/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, AddWorkspacePrefix(tt.path, tt.name))
		})
	}
}

func TestDetectWorkspace(t *testing.T) {
	tests := []struct {
		uri      string
		wantName string
		wantRest string
		wantOK   bool
	}{
		{"/workspace/app/src/index.ts", "app", "/src/index.ts", true},
		{"file:///workspace/app/src/index.ts", "app", "/src/index.ts", true},
		{"/workspace/app", "app", "/", true},
		{"/workspace/app/", "app", "/", true},
		{"/workspace", "", "", false},
		{"/workspace/", "", "", false},
		{"/workspaces/app/a", "", "", false},
		{"/src/index.ts", "", "", false},
		{"/", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			name, rest, ok := DetectWorkspace(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestStripWorkspacePrefix(t *testing.T) {
	assert.Equal(t, "/a.ts", StripWorkspacePrefix("/workspace/app/a.ts"))
	assert.Equal(t, "/a.ts", StripWorkspacePrefix("a.ts"))
	assert.Equal(t, "/", StripWorkspacePrefix("/workspace/app"))

	for _, p := range []string{"/", "/a", "/a/b/c.ts"} {
		assert.Equal(t, p, StripWorkspacePrefix(AddWorkspacePrefix(p, "ws1")))
	}
}
