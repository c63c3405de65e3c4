package vfs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies filesystem failures.
type ErrorKind string

const (
	ErrInvalidPath      ErrorKind = "INVALID_PATH"
	ErrNotFound         ErrorKind = "NOT_FOUND"
	ErrPermissionDenied ErrorKind = "PERMISSION_DENIED"
	ErrVersionMismatch  ErrorKind = "VERSION_MISMATCH"
)

// Error is the typed failure surfaced by every VFS operation. Version fields
// are populated for VERSION_MISMATCH only.
type Error struct {
	Kind            ErrorKind `json:"kind"`
	Path            string    `json:"path,omitempty"`
	Message         string    `json:"message"`
	ExpectedVersion int64     `json:"expectedVersion,omitempty"`
	ActualVersion   int64     `json:"actualVersion,omitempty"`
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is match on the kind through sentinel comparison.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func invalidPath(path, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidPath, Path: path, Message: fmt.Sprintf(format, args...)}
}

func notFound(path, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Path: path, Message: fmt.Sprintf(format, args...)}
}

func permissionDenied(path, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrPermissionDenied, Path: path, Message: fmt.Sprintf(format, args...)}
}

func versionMismatch(path string, expected, actual int64) *Error {
	return &Error{
		Kind:            ErrVersionMismatch,
		Path:            path,
		Message:         fmt.Sprintf("expected version %d but file is at version %d; read the file again before editing", expected, actual),
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// KindOf extracts the ErrorKind from err, or "" when err is not a VFS error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
