//go:build !linux

package watch

import (
	"errors"

	"framecap/internal/capture"
)

// InotifySource is only available on Linux.
type InotifySource struct{ *delivery }

// NewInotifySource always fails outside Linux; use the fsnotify source.
func NewInotifySource(src *capture.Source, logger capture.Logger) (*InotifySource, error) {
	return nil, errors.New("inotify source is only supported on linux")
}

func (s *InotifySource) Close() error { return nil }
