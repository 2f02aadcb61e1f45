package app

import (
	"database/sql"
	"time"

	"framecap/internal/capture"
)

// newSessionRecord creates the history row written before capture starts.
func newSessionRecord(id, hostID string, src *capture.Source, archivePath string, limit time.Duration, now time.Time) *capture.SessionRecord {
	return &capture.SessionRecord{
		ID:            id,
		HostID:        hostID,
		SourcePath:    src.Path,
		ArchivePath:   archivePath,
		StartedAt:     now,
		DurationLimit: limit,
		Status:        capture.StatusRunning,
	}
}

// finishSessionRecord copies the outcome of a run into rec.
// summary may be nil when the session failed before running.
func finishSessionRecord(rec *capture.SessionRecord, summary *capture.Summary, runErr error, now time.Time) {
	rec.FinishedAt = sql.NullTime{Time: now, Valid: true}

	if summary != nil {
		rec.Frames = int64(summary.Frames)
		rec.PayloadBytes = summary.PayloadBytes
		rec.ArchiveBytes = summary.ArchiveSize
		rec.StopReason = string(summary.Reason)
		if !summary.StartedAt.IsZero() {
			rec.FirstFrameAt = sql.NullTime{Time: summary.StartedAt, Valid: true}
		}
	}

	switch {
	case runErr != nil || summary == nil:
		rec.Status = capture.StatusError
	case summary.Reason == capture.StopArchiveError:
		rec.Status = capture.StatusError
	case !summary.Captured:
		rec.Status = capture.StatusEmpty
	default:
		rec.Status = capture.StatusSuccess
	}
}
