package capture

import (
	"database/sql"
	"time"
)

// Session statuses recorded in the history.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusError   = "error"
)

// SessionRecord is the persisted history of one capture run.
type SessionRecord struct {
	ID            string
	HostID        string
	SourcePath    string
	ArchivePath   string
	StartedAt     time.Time
	FirstFrameAt  sql.NullTime
	FinishedAt    sql.NullTime
	DurationLimit time.Duration
	Frames        int64
	PayloadBytes  int64
	ArchiveBytes  int64
	StopReason    string
	Status        string
	VaultKey      string
	Encrypted     bool
}

// SessionStore persists capture history.
type SessionStore interface {
	// CreateSession records the start of a session.
	CreateSession(rec *SessionRecord) error

	// FinishSession stores the final counters, stop reason and status.
	FinishSession(rec *SessionRecord) error

	// SetSessionVaultKey records where the archive was published.
	SetSessionVaultKey(id string, key string, encrypted bool) error

	// FindSession returns a session by ID, or nil if it does not exist.
	FindSession(id string) (*SessionRecord, error)

	// ListSessions returns the most recent sessions, newest first.
	ListSessions(limit int) ([]*SessionRecord, error)

	// Close closes the underlying store.
	Close() error
}
