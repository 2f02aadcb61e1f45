package testutil

import (
	"sync"
	"time"

	"framecap/internal/capture"
)

// Progress is one recorded progress signal.
type Progress struct {
	Frames int
	Rate   float64
}

// RecordingReporter records every signal. Safe for concurrent use.
type RecordingReporter struct {
	mu       sync.Mutex
	started  []time.Time
	progress []Progress
	failures []error
}

var _ capture.Reporter = (*RecordingReporter)(nil)

func NewRecordingReporter() *RecordingReporter {
	return &RecordingReporter{}
}

func (r *RecordingReporter) Started(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, t)
}

func (r *RecordingReporter) Progress(frames int, rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, Progress{Frames: frames, Rate: rate})
}

func (r *RecordingReporter) Failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *RecordingReporter) StartedAt() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.started...)
}

func (r *RecordingReporter) ProgressCalls() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Progress(nil), r.progress...)
}

func (r *RecordingReporter) Failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.failures...)
}
