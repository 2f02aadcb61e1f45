package watch

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"framecap/internal/capture"
)

// FSNotifySource is the portable event source. fsnotify does not report
// close-after-write on every platform, so a write is considered complete
// once the source path has seen no write for the settle period.
type FSNotifySource struct {
	*delivery
	watcher *fsnotify.Watcher
	path    string
	settle  time.Duration
	logger  capture.Logger
}

var _ capture.EventSource = (*FSNotifySource)(nil)

// NewFSNotifySource subscribes to the directory of src.
func NewFSNotifySource(src *capture.Source, settle time.Duration, logger capture.Logger) (*FSNotifySource, error) {
	if settle <= 0 {
		return nil, fmt.Errorf("settle period must be positive, got %v", settle)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(src.Dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", src.Dir, err)
	}

	s := &FSNotifySource{
		delivery: newDelivery(),
		watcher:  w,
		path:     src.Path,
		settle:   settle,
		logger:   logger,
	}
	go s.loop()
	return s, nil
}

// Close stops the watcher and waits for the delivery goroutine.
func (s *FSNotifySource) Close() error {
	return s.shutdown(s.watcher.Close)
}

func (s *FSNotifySource) loop() {
	defer s.finish()

	settle := time.NewTimer(s.settle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			for _, kind := range fsnotifyKinds(ev.Op) {
				if !s.send(capture.Event{Path: path, Kind: kind}) {
					return
				}
			}
			if path != s.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				settle.Reset(s.settle)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				settle.Stop()
			}

		case <-settle.C:
			if !s.send(capture.Event{Path: s.path, Kind: capture.WriteComplete}) {
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.logger.Warn("fsnotify queue overflow", "path", s.path)
				err = ErrOverflow
			}
			s.report(err)
		}
	}
}

func fsnotifyKinds(op fsnotify.Op) []capture.EventKind {
	var kinds []capture.EventKind
	if op.Has(fsnotify.Create) {
		kinds = append(kinds, capture.Create)
	}
	if op.Has(fsnotify.Write) {
		kinds = append(kinds, capture.Modify)
	}
	if op.Has(fsnotify.Chmod) {
		kinds = append(kinds, capture.Attrib)
	}
	if op.Has(fsnotify.Rename) {
		kinds = append(kinds, capture.Rename)
	}
	if op.Has(fsnotify.Remove) {
		kinds = append(kinds, capture.Remove)
	}
	return kinds
}
