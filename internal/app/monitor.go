package app

import (
	"context"
	"fmt"

	"framecap/internal/capture"
	"framecap/internal/watch"
)

// Monitor reports every counted notification on input to fn until ctx is
// cancelled, and returns the number of events seen.
func (a *CaptureApp) Monitor(ctx context.Context, input string, fn func(capture.EventTiming)) (int, error) {
	src, err := a.fs.ResolveSource(input)
	if err != nil {
		return 0, err
	}

	events, err := watch.NewSourceFromConfig(a.cfg.Capture, src, a.logger)
	if err != nil {
		return 0, fmt.Errorf("subscribing to %s: %w", src.Dir, err)
	}
	defer events.Close()

	meter := capture.NewRateMeter(src, a.clock)
	a.logger.Info("monitoring events", "source", src.Path)

	errs := events.Errors()
	for {
		select {
		case <-ctx.Done():
			return meter.Count(), nil
		case ev, ok := <-events.Events():
			if !ok {
				return meter.Count(), fmt.Errorf("event source closed")
			}
			if t, counted := meter.Observe(ev); counted {
				fn(t)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.logger.Warn("event source error", "error", err)
		}
	}
}
