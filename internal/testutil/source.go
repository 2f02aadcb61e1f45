package testutil

import (
	"sync"

	"framecap/internal/capture"
)

// flushPath never matches a real source, so the controller ignores it.
const flushPath = "\x00flush"

// ManualSource is an EventSource driven by the test. Events are delivered
// on an unbuffered channel, so Emit returns once the dispatcher has taken
// the event.
type ManualSource struct {
	events chan capture.Event
	errors chan error

	mu        sync.Mutex
	closed    bool
	closeCh   chan struct{}
	CloseErr  error
	CloseCall int
}

var _ capture.EventSource = (*ManualSource)(nil)

func NewManualSource() *ManualSource {
	return &ManualSource{
		events:  make(chan capture.Event),
		errors:  make(chan error, 8),
		closeCh: make(chan struct{}),
	}
}

func (s *ManualSource) Events() <-chan capture.Event { return s.events }

func (s *ManualSource) Errors() <-chan error { return s.errors }

// Emit hands ev to the dispatcher. It returns false if the source was
// closed first.
func (s *ManualSource) Emit(ev capture.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.closeCh:
		return false
	}
}

// Flush returns once the dispatcher has finished handling every event
// emitted before it: the dispatcher only receives again after the previous
// handler returned. It returns false if the source was closed first.
func (s *ManualSource) Flush() bool {
	return s.Emit(capture.Event{Path: flushPath, Kind: capture.Modify})
}

// Fail delivers a non-fatal facility error.
func (s *ManualSource) Fail(err error) {
	s.errors <- err
}

// Hangup closes the event channel as if the facility went away.
func (s *ManualSource) Hangup() {
	close(s.events)
}

func (s *ManualSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCall++
	if !s.closed {
		s.closed = true
		close(s.closeCh)
	}
	return s.CloseErr
}

// Closed reports whether Close has been called.
func (s *ManualSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
