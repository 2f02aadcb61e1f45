package watch

import (
	"fmt"
	"time"

	"framecap/internal/capture"
	"framecap/internal/config"
)

// NewSourceFromConfig subscribes to src with the configured notification
// facility.
func NewSourceFromConfig(cfg config.CaptureConfig, src *capture.Source, logger capture.Logger) (capture.EventSource, error) {
	cfg = cfg.WithDefaults()

	switch cfg.Source {
	case "inotify":
		s, err := NewInotifySource(src, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "fsnotify":
		s, err := NewFSNotifySource(src, time.Duration(cfg.SettleMillis)*time.Millisecond, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown event source type: %q", cfg.Source)
	}
}
