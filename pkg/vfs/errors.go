package vfs

import (
	"errors"
	"fmt"
)

// Error represents a domain error from a file system operation.
//
// These are contract violations (missing path, wrong entry type, name
// collision) as opposed to infrastructure errors from the underlying stores,
// which are returned wrapped with fmt.Errorf and never as *Error.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the canonical path the error refers to (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Is makes errors.Is match any *Error with the same code, so callers can
// write errors.Is(err, &vfs.Error{Code: vfs.ErrNotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode represents the category of a file system error.
type ErrorCode int

const (
	// ErrNotFound indicates the path has no entry
	ErrNotFound ErrorCode = iota + 1

	// ErrNotADirectory indicates an operation expected a directory but found a file
	ErrNotADirectory

	// ErrIsADirectory indicates an operation expected a file but found a directory
	ErrIsADirectory

	// ErrAlreadyExists indicates a destination collision without overwrite
	ErrAlreadyExists

	// ErrDirectoryNotEmpty indicates a non-recursive delete of a populated directory
	ErrDirectoryNotEmpty

	// ErrNotImplemented indicates the operation is not supported by this file system
	ErrNotImplemented

	// ErrNotAllowed indicates an operation that is never permitted, such as
	// deleting the root or moving a directory into itself
	ErrNotAllowed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrNotADirectory:
		return "NotADirectory"
	case ErrIsADirectory:
		return "IsADirectory"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrDirectoryNotEmpty:
		return "DirectoryNotEmpty"
	case ErrNotImplemented:
		return "NotImplemented"
	case ErrNotAllowed:
		return "NotAllowed"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

func newError(code ErrorCode, message, path string) *Error {
	return &Error{Code: code, Message: message, Path: path}
}

func notFound(path string) *Error {
	return newError(ErrNotFound, "no such file or directory", path)
}

func notADirectory(path string) *Error {
	return newError(ErrNotADirectory, "not a directory", path)
}

func isADirectory(path string) *Error {
	return newError(ErrIsADirectory, "is a directory", path)
}

func alreadyExists(path string) *Error {
	return newError(ErrAlreadyExists, "file already exists", path)
}

// CodeOf returns the ErrorCode carried by err, or 0 if err is not (and does
// not wrap) an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsNotFound reports whether err denotes a missing path.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// NewError creates an *Error. It is exported for FS implementations outside
// this package, such as the workspace router.
func NewError(code ErrorCode, message, path string) *Error {
	return newError(code, message, path)
}
