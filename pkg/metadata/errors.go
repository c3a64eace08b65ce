package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from namespace operations.
//
// These are filesystem-level errors (entry not found, directory not empty,
// etc.) as opposed to raw transport errors. The kernel bridge translates
// StoreError codes to errno values.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the filesystem path or object key related to the error
	Path string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a StoreError.
type ErrorCode int

const (
	// ErrNotFound indicates the path, entry or backing object doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an entry with the name already exists
	// in the parent listing (under the configured name comparison)
	ErrAlreadyExists

	// ErrNotEmpty indicates a directory still has children
	ErrNotEmpty

	// ErrCorruption indicates a stored directory value could not be decoded
	ErrCorruption

	// ErrUnavailable indicates the object store failed or is unreachable
	ErrUnavailable

	// ErrIsDirectory indicates a file operation was applied to a directory
	ErrIsDirectory

	// ErrNotDirectory indicates a directory operation was applied to a file
	ErrNotDirectory

	// ErrInvalidArgument indicates a malformed path or an operation that
	// needs a parent applied to the root
	ErrInvalidArgument

	// ErrNameTooLong indicates a leaf name longer than MaxNameLen
	ErrNameTooLong

	// ErrFileTooBig indicates a write or truncate past MaxFileSize
	ErrFileTooBig
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:        "not found",
	ErrAlreadyExists:   "already exists",
	ErrNotEmpty:        "not empty",
	ErrCorruption:      "corruption",
	ErrUnavailable:     "store unavailable",
	ErrIsDirectory:     "is a directory",
	ErrNotDirectory:    "not a directory",
	ErrInvalidArgument: "invalid argument",
	ErrNameTooLong:     "name too long",
	ErrFileTooBig:      "file too big",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// NewError builds a StoreError without a cause.
func NewError(code ErrorCode, path, format string, args ...any) *StoreError {
	return &StoreError{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// WrapError builds a StoreError carrying err as its cause.
func WrapError(code ErrorCode, path string, err error, format string, args ...any) *StoreError {
	return &StoreError{Code: code, Message: fmt.Sprintf(format, args...), Path: path, Err: err}
}

// ErrorCodeOf extracts the ErrorCode of err. ok is false when err is not
// (and does not wrap) a *StoreError.
func ErrorCodeOf(err error) (code ErrorCode, ok bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	c, ok := ErrorCodeOf(err)
	return ok && c == code
}

// IsNotFound reports whether err is a not-found StoreError.
func IsNotFound(err error) bool {
	return HasCode(err, ErrNotFound)
}
