package capture

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrSourceNotFound is returned when the watched file does not exist at startup.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrArchiveUnusable means the archive can no longer accept entries.
	// Capture stops when an append returns an error wrapping it.
	ErrArchiveUnusable = errors.New("archive unusable")
)

// ReadKind classifies why a frame read failed.
type ReadKind int

const (
	// ReadIO is a transient I/O error.
	ReadIO ReadKind = iota
	// ReadPermission means the source was not readable by this process.
	ReadPermission
	// ReadRace means the file vanished between the notification and the read,
	// typically a producer that replaces rather than rewrites the file.
	ReadRace
)

func (k ReadKind) String() string {
	switch k {
	case ReadPermission:
		return "permission"
	case ReadRace:
		return "race"
	default:
		return "io"
	}
}

// ReadError is a recoverable failure to read one frame.
type ReadError struct {
	Path string
	Kind ReadKind
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// NewReadError classifies err as a ReadError for path.
// If err already is a *ReadError it is returned unchanged.
func NewReadError(path string, err error) *ReadError {
	var re *ReadError
	if errors.As(err, &re) {
		return re
	}

	kind := ReadIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = ReadRace
	case errors.Is(err, fs.ErrPermission):
		kind = ReadPermission
	}
	return &ReadError{Path: path, Kind: kind, Err: err}
}
