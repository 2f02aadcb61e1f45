package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Summary describes a finished session.
type Summary struct {
	// Captured is false when no frame was written; the archive was removed.
	Captured bool

	Frames         int
	PayloadBytes   int64
	ReadFailures   int
	AppendFailures int
	StartedAt      time.Time
	Elapsed        time.Duration
	Rate           float64
	ArchiveSize    int64
	Reason         StopReason

	// EstimatedBytes is frames × the assumed per-frame size. Kept for
	// comparison with older capture reports; PayloadBytes is exact.
	EstimatedBytes int64
}

// CompressionRatio returns payload bytes per archive byte.
func (s *Summary) CompressionRatio() float64 {
	if s.ArchiveSize <= 0 {
		return 0
	}
	return float64(s.PayloadBytes) / float64(s.ArchiveSize)
}

// EstimatedCompressionRatio returns the legacy ratio based on EstimatedBytes.
func (s *Summary) EstimatedCompressionRatio() float64 {
	if s.ArchiveSize <= 0 {
		return 0
	}
	return float64(s.EstimatedBytes) / float64(s.ArchiveSize)
}

// Run dispatches events from src to the controller until the termination
// flag is set or ctx is cancelled, then closes src, waits for the
// dispatcher, and finalizes the archive. Finalize runs on every exit path.
//
// The returned Summary is never nil. The error joins any failure to close
// the source, the archive, or to discard an empty archive.
func (c *Controller) Run(ctx context.Context, src EventSource) (*Summary, error) {
	dispatchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		c.dispatch(dispatchCtx, src)
		return nil
	})

	c.logger.Info("waiting for frames", "path", c.source.Path, "duration", c.opts.Duration)
	interrupted := c.wait(ctx)

	// Stop dispatching before tearing down the subscription, so no handler
	// runs once Finalize starts.
	cancel()
	_ = g.Wait()

	var errs []error
	if err := src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing event source: %w", err))
	}
	if interrupted {
		c.stop(StopInterrupted)
		c.logger.Info("capture interrupted", "frames", c.frames)
	}
	if err := c.Finalize(); err != nil {
		errs = append(errs, fmt.Errorf("finalizing archive: %w", err))
	}

	summary, err := c.summarize()
	if err != nil {
		errs = append(errs, err)
	}
	return summary, errors.Join(errs...)
}

// wait polls the termination flag. It returns true if ctx ended first.
func (c *Controller) wait(ctx context.Context) bool {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if c.done.Load() {
			return false
		}
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
		}
	}
}

// dispatch is the only goroutine that calls HandleEvent.
func (c *Controller) dispatch(ctx context.Context, src EventSource) {
	events := src.Events()
	errs := src.Errors()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.logger.Warn("event source closed unexpectedly")
				c.stop(StopSourceClosed)
				return
			}
			c.HandleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Warn("event source error", "error", err)
		}
	}
}

// summarize builds the Summary. Must only be called after the dispatcher
// has exited and the archive is closed.
func (c *Controller) summarize() (*Summary, error) {
	s := &Summary{
		Frames:         c.frames,
		PayloadBytes:   c.payloadBytes,
		ReadFailures:   c.readFailures,
		AppendFailures: c.appendFailures,
		StartedAt:      c.startTime,
		Reason:         c.reason,
		EstimatedBytes: int64(c.frames) * c.opts.AssumedFrameSize,
	}
	if c.started {
		s.Elapsed = c.clock.Now().Sub(c.startTime)
		if s.Elapsed > 0 {
			s.Rate = float64(c.frames) / s.Elapsed.Seconds()
		}
	}

	if c.frames == 0 {
		c.logger.Info("no frames captured, removing archive")
		if err := c.archive.Discard(); err != nil {
			return s, fmt.Errorf("removing empty archive: %w", err)
		}
		return s, nil
	}

	s.Captured = true
	size, err := c.archive.Size()
	if err != nil {
		return s, fmt.Errorf("reading archive size: %w", err)
	}
	s.ArchiveSize = size

	c.logger.Info("capture finished",
		"frames", s.Frames,
		"elapsed", s.Elapsed,
		"payload_bytes", s.PayloadBytes,
		"archive_bytes", s.ArchiveSize,
		"reason", string(s.Reason),
	)
	return s, nil
}
