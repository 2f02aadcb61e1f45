// Package watch provides the filesystem notification sources used by the
// capture controller.
package watch

import (
	"errors"
	"sync"

	"framecap/internal/capture"
)

// ErrOverflow is delivered on the error channel when the kernel queue
// overflowed and notifications were lost.
var ErrOverflow = errors.New("notification queue overflow")

const channelBuffer = 64

// delivery owns the outgoing channels of a source. Only the loop goroutine
// sends; the channels are closed when it exits.
type delivery struct {
	events chan capture.Event
	errors chan error
	done   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newDelivery() *delivery {
	return &delivery{
		events: make(chan capture.Event, channelBuffer),
		errors: make(chan error, channelBuffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (d *delivery) Events() <-chan capture.Event { return d.events }

func (d *delivery) Errors() <-chan error { return d.errors }

// send returns false once the source is closing.
func (d *delivery) send(ev capture.Event) bool {
	select {
	case d.events <- ev:
		return true
	case <-d.done:
		return false
	}
}

// report drops the error if nobody is reading and the buffer is full.
func (d *delivery) report(err error) {
	select {
	case d.errors <- err:
	case <-d.done:
	default:
	}
}

// finish is deferred by the loop goroutine.
func (d *delivery) finish() {
	close(d.events)
	close(d.errors)
	close(d.exited)
}

// shutdown runs release once, then waits for the loop to exit.
func (d *delivery) shutdown(release func() error) error {
	d.closeOnce.Do(func() {
		close(d.done)
		d.closeErr = release()
	})
	<-d.exited
	return d.closeErr
}
