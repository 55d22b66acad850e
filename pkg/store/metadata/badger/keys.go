package badger

import "strings"

// Database Key Namespace
// ======================
//
// Metadata lives in its own prefix so the same BadgerDB directory can also
// hold blob data (see pkg/store/blob/badger) without collisions.
//
// Data Type   Prefix   Key Format        Value Type
// ===================================================
// File stat   "m:"     m:<canonicalPath> FileStat (JSON)
//
// Canonical paths always start with "/", so the key for "/src/a.ts" is
// "m:/src/a.ts" and a prefix scan for "m:/src/" returns every descendant of
// "/src" in lexicographic order.

const prefixMeta = "m:"

// keyMeta generates the key for a path's metadata.
//
// Format: "m:<path>"
// Example: "m:/src/index.ts"
func keyMeta(path string) []byte {
	return []byte(prefixMeta + path)
}

// pathFromKey strips the namespace prefix from a metadata key.
func pathFromKey(key []byte) string {
	return strings.TrimPrefix(string(key), prefixMeta)
}
