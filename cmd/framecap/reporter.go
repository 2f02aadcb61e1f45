package main

import (
	"fmt"
	"io"
	"time"

	"framecap/internal/capture"
)

// consoleReporter prints capture progress lines.
type consoleReporter struct {
	out io.Writer
}

var _ capture.Reporter = (*consoleReporter)(nil)

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (r *consoleReporter) Started(time.Time) {
	fmt.Fprintf(r.out, "First frame detected - starting capture!\n\n")
}

func (r *consoleReporter) Progress(frames int, rate float64) {
	fmt.Fprintf(r.out, "Captured %d frames (%.1f Hz)\n", frames, rate)
}

func (r *consoleReporter) Failed(err error) {
	fmt.Fprintf(r.out, "Capture error: %v\n", err)
}
