package app

import (
	"errors"
	"testing"
	"time"

	"framecap/internal/capture"
)

func TestNewSessionRecord(t *testing.T) {
	now := time.Date(2025, 3, 14, 1, 59, 0, 0, time.UTC)
	src := capture.NewSource("/data/dimm/boxframe.fits")

	rec := newSessionRecord("s1", "host-1", src, "/out/frames.tar.gz", 30*time.Second, now)

	if rec.Status != capture.StatusRunning {
		t.Errorf("Status = %q, want %q", rec.Status, capture.StatusRunning)
	}
	if rec.SourcePath != src.Path || rec.ArchivePath != "/out/frames.tar.gz" {
		t.Errorf("paths = %q, %q", rec.SourcePath, rec.ArchivePath)
	}
	if !rec.StartedAt.Equal(now) || rec.DurationLimit != 30*time.Second {
		t.Errorf("StartedAt = %v, DurationLimit = %v", rec.StartedAt, rec.DurationLimit)
	}
	if rec.FinishedAt.Valid || rec.FirstFrameAt.Valid {
		t.Error("finish times set on a new record")
	}
}

func TestFinishSessionRecord(t *testing.T) {
	now := time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC)
	first := now.Add(-10 * time.Second)

	tests := []struct {
		name       string
		summary    *capture.Summary
		runErr     error
		wantStatus string
		wantFirst  bool
	}{
		{
			name:       "frames captured",
			summary:    &capture.Summary{Captured: true, Frames: 3, PayloadBytes: 300, ArchiveSize: 120, Reason: capture.StopDuration, StartedAt: first},
			wantStatus: capture.StatusSuccess,
			wantFirst:  true,
		},
		{
			name:       "nothing captured",
			summary:    &capture.Summary{Reason: capture.StopInterrupted},
			wantStatus: capture.StatusEmpty,
		},
		{
			name:       "archive failed",
			summary:    &capture.Summary{Captured: true, Frames: 1, Reason: capture.StopArchiveError, StartedAt: first},
			wantStatus: capture.StatusError,
			wantFirst:  true,
		},
		{
			name:       "run error",
			summary:    &capture.Summary{Captured: true, Frames: 1, Reason: capture.StopDuration, StartedAt: first},
			runErr:     errors.New("closing archive"),
			wantStatus: capture.StatusError,
			wantFirst:  true,
		},
		{
			name:       "no summary",
			runErr:     errors.New("subscribe failed"),
			wantStatus: capture.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &capture.SessionRecord{ID: "s1", Status: capture.StatusRunning}
			finishSessionRecord(rec, tt.summary, tt.runErr, now)

			if rec.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", rec.Status, tt.wantStatus)
			}
			if !rec.FinishedAt.Valid || !rec.FinishedAt.Time.Equal(now) {
				t.Errorf("FinishedAt = %v, want %v", rec.FinishedAt, now)
			}
			if rec.FirstFrameAt.Valid != tt.wantFirst {
				t.Errorf("FirstFrameAt.Valid = %v, want %v", rec.FirstFrameAt.Valid, tt.wantFirst)
			}
			if tt.summary != nil {
				if rec.Frames != int64(tt.summary.Frames) || rec.ArchiveBytes != tt.summary.ArchiveSize {
					t.Errorf("counters = %d frames, %d bytes", rec.Frames, rec.ArchiveBytes)
				}
				if rec.StopReason != string(tt.summary.Reason) {
					t.Errorf("StopReason = %q, want %q", rec.StopReason, tt.summary.Reason)
				}
			}
		})
	}
}
