// Package verrors defines the error taxonomy shared across vidreg's
// registry, handle, and archive layers.
package verrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Callers should use errors.Is against these, not string
// matching: wrapping with %w preserves them through the registry and
// prefetch layers.
var (
	// ErrFileNotFound is returned when a source path does not exist.
	ErrFileNotFound = errors.New("video: file not found")

	// ErrIsADirectory is returned when a source path is a directory.
	ErrIsADirectory = errors.New("video: is a directory")

	// ErrUnsupportedFormat is returned when the codec adapter cannot
	// probe or open a source as video.
	ErrUnsupportedFormat = errors.New("video: unsupported format")

	// ErrIndexOutOfRange is returned by GetBatch when a requested frame
	// index falls outside [0, NumFrames).
	ErrIndexOutOfRange = errors.New("video: frame index out of range")

	// ErrConfig is returned for construction-time configuration errors
	// (unknown backend selector, invalid thread counts). Never returned
	// from the data path.
	ErrConfig = errors.New("video: configuration error")
)

// DecodeError wraps a failure from the underlying decoder, naming the
// frame index being produced when the failure occurred.
type DecodeError struct {
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("video: decode failed at frame %d: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError builds a DecodeError for the given frame.
func NewDecodeError(frame int, err error) error {
	return &DecodeError{Frame: frame, Err: err}
}

// SourceError classifies an open-time failure against a specific path.
type SourceError struct {
	Path string
	Kind error // one of ErrFileNotFound, ErrIsADirectory, ErrUnsupportedFormat
	Err  error // underlying cause, if any (nil for FileNotFound/IsADirectory)
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video: %s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("video: %s: %v", e.Path, e.Kind)
}

func (e *SourceError) Unwrap() error { return e.Kind }
