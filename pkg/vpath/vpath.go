// Package vpath normalizes virtual file store paths.
//
// Every path handed to the file store is reduced to a canonical form before
// it touches storage:
//
//   - absolute, always starting with "/"
//   - slash separated, with no empty segments
//   - no "." or ".." segments
//   - no trailing slash, except for the root "/"
//   - no "file://" scheme, query string or fragment
//
// Normalization mirrors URL resolution against a fixed "file:///" base, so
// editor URIs ("file:///src/index.ts") and plain paths ("src/index.ts") map
// to the same key. Percent-escapes are decoded ("/a%20b" becomes "/a b").
package vpath

import (
	"net/url"
	"path"
	"strings"
)

// Root is the canonical root path.
const Root = "/"

const fileScheme = "file://"

var base = &url.URL{Scheme: "file", Path: "/"}

// Normalize returns the canonical form of input.
//
// Normalize never fails: input that cannot be parsed as a URL reference is
// cleaned as a plain slash-separated path instead.
func Normalize(input string) string {
	p := input
	if len(p) >= len(fileScheme) && strings.EqualFold(p[:len(fileScheme)], fileScheme) {
		p = p[len(fileScheme):]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = collapseSlashes(p)

	ref, err := url.Parse(p)
	if err != nil {
		return clean(p)
	}
	return clean(base.ResolveReference(ref).Path)
}

func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prev := byte(0)
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' && prev == '/' {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}

func clean(p string) string {
	if p == "" {
		return Root
	}
	p = path.Clean("/" + p)
	return p
}

// IsRoot reports whether p is the canonical root.
func IsRoot(p string) bool {
	return p == Root
}

// Parent returns the parent of a canonical path. The parent of the root is the root.
func Parent(p string) string {
	if IsRoot(p) {
		return Root
	}
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return Root
	}
	return p[:i]
}

// Base returns the last segment of a canonical path, or "" for the root.
func Base(p string) string {
	if IsRoot(p) {
		return ""
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// Join appends name segments to dir and normalizes the result.
func Join(dir string, names ...string) string {
	parts := append([]string{dir}, names...)
	return Normalize(strings.Join(parts, "/"))
}

// ChildPrefix returns the key prefix shared by every descendant of dir.
func ChildPrefix(dir string) string {
	if IsRoot(dir) {
		return Root
	}
	return dir + "/"
}

// IsDescendant reports whether p lies strictly below ancestor.
func IsDescendant(p, ancestor string) bool {
	if p == ancestor {
		return false
	}
	return strings.HasPrefix(p, ChildPrefix(ancestor))
}

// ChildName returns the name of p relative to dir when p is a direct child of
// dir, or "" otherwise.
func ChildName(dir, p string) string {
	if !IsDescendant(p, dir) {
		return ""
	}
	rest := p[len(ChildPrefix(dir)):]
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

// Rebase moves p from below oldRoot to below newRoot. p must be oldRoot or one
// of its descendants.
func Rebase(p, oldRoot, newRoot string) string {
	if p == oldRoot {
		return newRoot
	}
	suffix := strings.TrimPrefix(p, ChildPrefix(oldRoot))
	return ChildPrefix(newRoot) + suffix
}

// Depth returns the number of segments in p; the root has depth 0.
func Depth(p string) int {
	if IsRoot(p) {
		return 0
	}
	return strings.Count(p, "/")
}

// Ancestors returns every ancestor of p from the shallowest down, excluding
// the root and p itself.
func Ancestors(p string) []string {
	var out []string
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}
