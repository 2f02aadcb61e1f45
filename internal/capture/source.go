package capture

import (
	"path/filepath"
	"strings"
)

// Source is the single file being captured. Notification facilities watch
// directories, so Dir is the actual subscription target.
type Source struct {
	Path string
	Dir  string
	Stem string
}

// NewSource builds a Source from an absolute, cleaned path.
// This is primarily for use by filesystem implementations that have
// already validated the path.
func NewSource(absPath string) *Source {
	absPath = filepath.Clean(absPath)
	base := filepath.Base(absPath)
	return &Source{
		Path: absPath,
		Dir:  filepath.Dir(absPath),
		Stem: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// Matches reports whether path names this source.
func (s *Source) Matches(path string) bool {
	return filepath.Clean(path) == s.Path
}

// EventKind classifies a filesystem notification.
type EventKind int

const (
	// WriteComplete means a writer finished and closed its handle on the path.
	// It is the only kind that produces a frame.
	WriteComplete EventKind = iota + 1
	Modify
	Attrib
	Create
	Remove
	Rename
)

func (k EventKind) String() string {
	switch k {
	case WriteComplete:
		return "WRITE_COMPLETE"
	case Modify:
		return "MODIFY"
	case Attrib:
		return "ATTRIB"
	case Create:
		return "CREATE"
	case Remove:
		return "REMOVE"
	case Rename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a single notification delivered by an EventSource.
type Event struct {
	Path string
	Kind EventKind
}

// EventSource delivers filesystem notifications for the directory of one
// Source. Implementations deliver events from a single goroutine in the
// order they were observed, and close both channels once Close returns.
type EventSource interface {
	// Events returns the channel notifications are delivered on.
	Events() <-chan Event

	// Errors returns the channel facility errors (e.g. queue overflow) are
	// delivered on. Errors are not fatal to the subscription.
	Errors() <-chan error

	// Close stops the subscription and blocks until the delivery goroutine
	// has exited. Close is idempotent.
	Close() error
}
