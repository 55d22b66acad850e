package metadata

import (
	"errors"
	"time"
)

// FileType identifies the kind of entry a path refers to.
//
// The numeric values follow the editor's file type encoding and are
// persisted as-is, so they must never be renumbered.
type FileType uint8

const (
	// FileTypeUnknown is used for entries whose type cannot be determined.
	FileTypeUnknown FileType = 0

	// FileTypeFile is a regular file with a blob.
	FileTypeFile FileType = 1

	// FileTypeDirectory is a directory. Directories never have a blob.
	FileTypeDirectory FileType = 2

	// FileTypeSymbolicLink is reserved for symbolic links.
	FileTypeSymbolicLink FileType = 64
)

func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymbolicLink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileStat is the metadata stored for every path except the synthetic root.
type FileStat struct {
	// Type is the entry kind
	Type FileType `json:"type"`

	// Version starts at 1 and is incremented on every content write
	Version int64 `json:"version"`

	// Ctime is the creation time in Unix milliseconds
	Ctime int64 `json:"ctime"`

	// Mtime is the last modification time in Unix milliseconds
	Mtime int64 `json:"mtime"`

	// Size is the content length in bytes; 0 for directories
	Size int64 `json:"size"`
}

// IsDir reports whether the stat describes a directory.
func (s *FileStat) IsDir() bool {
	return s.Type == FileTypeDirectory
}

// IsFile reports whether the stat describes a regular file.
func (s *FileStat) IsFile() bool {
	return s.Type == FileTypeFile
}

// Clone returns a copy of s that can be modified independently.
func (s *FileStat) Clone() *FileStat {
	c := *s
	return &c
}

// ModTime returns Mtime as a time.Time.
func (s *FileStat) ModTime() time.Time {
	return time.UnixMilli(s.Mtime)
}

// RootStat returns the stat reported for the synthetic root directory.
func RootStat() *FileStat {
	return &FileStat{
		Type:    FileTypeDirectory,
		Version: 1,
	}
}

// Entry pairs a canonical path with its metadata.
type Entry struct {
	Path string
	Stat *FileStat
}

// ErrNotFound is returned by Get when no metadata exists for a path.
//
// Implementations wrap it with the offending path:
//
//	return nil, fmt.Errorf("metadata %s: %w", path, metadata.ErrNotFound)
var ErrNotFound = errors.New("metadata not found")
