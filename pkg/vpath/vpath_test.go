package vpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"relative", "src/index.ts", "/src/index.ts"},
		{"absolute", "/src/index.ts", "/src/index.ts"},
		{"trailing slash", "/src/", "/src"},
		{"double separators", "/src//lib///a.ts", "/src/lib/a.ts"},
		{"leading double separator", "//src/a.ts", "/src/a.ts"},
		{"dot segments", "/src/./lib/../a.ts", "/src/a.ts"},
		{"escape above root", "/../../a", "/a"},
		{"file scheme", "file:///src/index.ts", "/src/index.ts"},
		{"file scheme upper case", "FILE:///a", "/a"},
		{"file scheme root", "file:///", "/"},
		{"query and fragment", "/a.ts?version=2#L10", "/a.ts"},
		{"percent escapes", "/my%20file.txt", "/my file.txt"},
		{"invalid escape kept", "/100%zz", "/100%zz"},
		{"colon in segment", "/c:/x", "/c:/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"a//b/", "file:///x/./y", "/q?x#y", "/"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestParentAndBase(t *testing.T) {
	assert.Equal(t, "/", Parent("/"))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "/a/b", Parent("/a/b/c"))

	assert.Equal(t, "", Base("/"))
	assert.Equal(t, "a", Base("/a"))
	assert.Equal(t, "c.ts", Base("/a/b/c.ts"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/a/b/c", Join("/a", "b", "c"))
	assert.Equal(t, "/x", Join("/", "x"))
	assert.Equal(t, "/a", Join("/a/b", ".."))
}

func TestDescendants(t *testing.T) {
	assert.True(t, IsDescendant("/a/b", "/a"))
	assert.True(t, IsDescendant("/a", "/"))
	assert.False(t, IsDescendant("/a", "/a"))
	assert.False(t, IsDescendant("/ab", "/a"))
	assert.False(t, IsDescendant("/", "/"))

	assert.Equal(t, "x", ChildName("/a", "/a/x"))
	assert.Equal(t, "", ChildName("/a", "/a/b/z"))
	assert.Equal(t, "a", ChildName("/", "/a"))
	assert.Equal(t, "", ChildName("/", "/a/b"))
}

func TestRebase(t *testing.T) {
	assert.Equal(t, "/c", Rebase("/a", "/a", "/c"))
	assert.Equal(t, "/c/b/f", Rebase("/a/b/f", "/a", "/c"))
	assert.Equal(t, "/b/f", Rebase("/a/b/f", "/a", "/"))
}

func TestDepthAndAncestors(t *testing.T) {
	assert.Equal(t, 0, Depth("/"))
	assert.Equal(t, 3, Depth("/a/b/c"))

	assert.Nil(t, Ancestors("/a"))
	assert.Equal(t, []string{"/a", "/a/b"}, Ancestors("/a/b/c"))
}
