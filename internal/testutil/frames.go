package testutil

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"framecap/internal/capture"
)

// MemoryFrameReader serves file contents from memory. Safe for concurrent use.
type MemoryFrameReader struct {
	mu    sync.Mutex
	files map[string][]byte
	errs  map[string][]error
	Reads int
}

var _ capture.FrameReader = (*MemoryFrameReader)(nil)

func NewMemoryFrameReader() *MemoryFrameReader {
	return &MemoryFrameReader{
		files: make(map[string][]byte),
		errs:  make(map[string][]error),
	}
}

// SetFile sets the bytes returned for path.
func (r *MemoryFrameReader) SetFile(path string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = data
}

// FailNext makes the next read of path fail with err. Calls queue up.
func (r *MemoryFrameReader) FailNext(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[path] = append(r.errs[path], err)
}

func (r *MemoryFrameReader) ReadFrame(path string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++

	if queued := r.errs[path]; len(queued) > 0 {
		r.errs[path] = queued[1:]
		return nil, capture.NewReadError(path, queued[0])
	}
	data, ok := r.files[path]
	if !ok {
		return nil, capture.NewReadError(path, fmt.Errorf("open %s: %w", path, fs.ErrNotExist))
	}
	return append([]byte(nil), data...), nil
}

// MemoryArchive records appended frames. Safe for concurrent use.
type MemoryArchive struct {
	mu        sync.Mutex
	frames    []capture.Frame
	appendErr []error
	closeErr  error
	closes    int
	discarded bool
}

var _ capture.ArchiveWriter = (*MemoryArchive)(nil)

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

// FailNextAppend makes the next Append return err. Calls queue up.
func (a *MemoryArchive) FailNextAppend(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendErr = append(a.appendErr, err)
}

// FailClose makes Close return err.
func (a *MemoryArchive) FailClose(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeErr = err
}

func (a *MemoryArchive) Append(f capture.Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closes > 0 {
		return fmt.Errorf("append after close: %w", capture.ErrArchiveUnusable)
	}
	if len(a.appendErr) > 0 {
		err := a.appendErr[0]
		a.appendErr = a.appendErr[1:]
		return err
	}
	a.frames = append(a.frames, f)
	return nil
}

func (a *MemoryArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closes++
	return a.closeErr
}

// Size returns the sum of payload sizes.
func (a *MemoryArchive) Size() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.discarded {
		return 0, errors.New("archive discarded")
	}
	var n int64
	for _, f := range a.frames {
		n += f.Size()
	}
	return n, nil
}

func (a *MemoryArchive) Discard() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded = true
	return nil
}

// Frames returns a copy of the appended frames.
func (a *MemoryArchive) Frames() []capture.Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]capture.Frame(nil), a.frames...)
}

// Names returns the entry names in append order.
func (a *MemoryArchive) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, len(a.frames))
	for i, f := range a.frames {
		names[i] = f.Name
	}
	return names
}

// Closes returns how many times Close was called.
func (a *MemoryArchive) Closes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closes
}

// Discarded reports whether Discard was called.
func (a *MemoryArchive) Discarded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discarded
}
