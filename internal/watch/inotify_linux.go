package watch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"framecap/internal/capture"
)

const inotifyMask = unix.IN_CLOSE_WRITE | unix.IN_MODIFY | unix.IN_ATTRIB | unix.IN_CREATE |
	unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF

// InotifySource reports IN_CLOSE_WRITE as WriteComplete, so a frame is only
// read after the writer has closed the file.
type InotifySource struct {
	*delivery
	dir    string
	file   *os.File
	logger capture.Logger
}

var _ capture.EventSource = (*InotifySource)(nil)

// NewInotifySource subscribes to the directory of src. Notifications start
// flowing before it returns.
func NewInotifySource(src *capture.Source, logger capture.Logger) (*InotifySource, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, src.Dir, inotifyMask); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("watching %s: %w", src.Dir, err)
	}

	s := &InotifySource{
		delivery: newDelivery(),
		dir:      src.Dir,
		// A non-blocking fd wrapped by os.NewFile uses the runtime poller,
		// so Close unblocks a pending Read.
		file:   os.NewFile(uintptr(fd), "inotify"),
		logger: logger,
	}
	go s.loop()
	return s, nil
}

// Close removes the watch and waits for the delivery goroutine.
func (s *InotifySource) Close() error {
	return s.shutdown(s.file.Close)
}

func (s *InotifySource) loop() {
	defer s.finish()

	buf := make([]byte, unix.SizeofInotifyEvent*4096)
	for {
		n, err := s.file.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return
			}
			s.report(fmt.Errorf("reading inotify events: %w", err))
			return
		}

		events, gone, overflow := parseInotify(buf[:n], s.dir)
		if overflow {
			s.logger.Warn("inotify queue overflow", "dir", s.dir)
			s.report(ErrOverflow)
		}
		for _, ev := range events {
			if !s.send(ev) {
				return
			}
		}
		if gone {
			s.logger.Warn("watched directory went away", "dir", s.dir)
			s.report(fmt.Errorf("watched directory %s removed or moved", s.dir))
			return
		}
	}
}

// parseInotify decodes a buffer of raw inotify records. gone is set when
// the watched directory itself was removed or moved.
func parseInotify(buf []byte, dir string) (events []capture.Event, gone, overflow bool) {
	var offset uint32
	for int(offset)+unix.SizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		mask := raw.Mask
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + raw.Len
		if int(nameEnd) > len(buf) {
			break
		}
		name := string(bytes.TrimRight(buf[nameStart:nameEnd], "\x00"))
		offset = nameEnd

		if mask&unix.IN_Q_OVERFLOW != 0 {
			overflow = true
			continue
		}
		if mask&(unix.IN_DELETE_SELF|unix.IN_MOVE_SELF|unix.IN_IGNORED) != 0 {
			gone = true
			continue
		}
		if name == "" {
			continue
		}

		path := filepath.Join(dir, name)
		for _, kind := range inotifyKinds(mask) {
			events = append(events, capture.Event{Path: path, Kind: kind})
		}
	}
	return events, gone, overflow
}

func inotifyKinds(mask uint32) []capture.EventKind {
	var kinds []capture.EventKind
	if mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 {
		kinds = append(kinds, capture.Create)
	}
	if mask&unix.IN_MODIFY != 0 {
		kinds = append(kinds, capture.Modify)
	}
	if mask&unix.IN_ATTRIB != 0 {
		kinds = append(kinds, capture.Attrib)
	}
	if mask&unix.IN_CLOSE_WRITE != 0 {
		kinds = append(kinds, capture.WriteComplete)
	}
	if mask&unix.IN_MOVED_FROM != 0 {
		kinds = append(kinds, capture.Rename)
	}
	if mask&unix.IN_DELETE != 0 {
		kinds = append(kinds, capture.Remove)
	}
	return kinds
}
