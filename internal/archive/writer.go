// Package archive writes captured frames into a gzip-compressed tar file.
//
// Entries are appended in capture order with their exact length and the
// capture wall-clock time as mtime. No index or other structure is added,
// so any tar implementation can read the result.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"

	"framecap/internal/capture"
)

// Writer is an append-only tar.gz archive.
// It is safe for concurrent use, although capture only appends from one goroutine.
type Writer struct {
	path string

	mu     sync.Mutex
	file   *os.File
	gz     *gzip.Writer
	tw     *tar.Writer
	err    error // sticky; set once the stream can no longer be trusted
	closed bool

	closeOnce sync.Once
	closeErr  error
}

var _ capture.ArchiveWriter = (*Writer)(nil)

// Create creates (or truncates) the archive at path.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	gz, err := gzip.NewWriterLevel(f, gzip.DefaultCompression)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}

	return &Writer{
		path: path,
		file: f,
		gz:   gz,
		tw:   tar.NewWriter(gz),
	}, nil
}

// Append writes one frame as a tar entry.
// A frame with an empty name is rejected without touching the stream.
// Any write failure poisons the writer: the tar stream may hold a partial
// entry, so this and every later append return capture.ErrArchiveUnusable.
func (w *Writer) Append(frame capture.Frame) error {
	if frame.Name == "" {
		return fmt.Errorf("frame has no name")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("append after close: %w", capture.ErrArchiveUnusable)
	}
	if w.err != nil {
		return fmt.Errorf("%w: %v", capture.ErrArchiveUnusable, w.err)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     frame.Name,
		Size:     frame.Size(),
		Mode:     0644,
		ModTime:  frame.ModTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		w.err = fmt.Errorf("writing header for %s: %w", frame.Name, err)
		return fmt.Errorf("%w: %v", capture.ErrArchiveUnusable, w.err)
	}
	if _, err := w.tw.Write(frame.Data); err != nil {
		w.err = fmt.Errorf("writing payload for %s: %w", frame.Name, err)
		return fmt.Errorf("%w: %v", capture.ErrArchiveUnusable, w.err)
	}
	return nil
}

// Close flushes the tar and gzip streams and closes the file.
// Only the first call has effect; later calls return its result.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.closed = true

		var errs []error
		if err := w.tw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing tar stream: %w", err))
		}
		if err := w.gz.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing gzip stream: %w", err))
		}
		if err := w.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("syncing archive: %w", err))
		}
		if err := w.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing archive file: %w", err))
		}
		w.closeErr = errors.Join(errs...)
	})
	return w.closeErr
}

// Size returns the size of the archive file on disk.
func (w *Writer) Size() (int64, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return info.Size(), nil
}

// Discard closes the archive if needed and removes the file.
// A missing file is not an error.
func (w *Writer) Discard() error {
	w.Close()
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing archive: %w", err)
	}
	return nil
}
