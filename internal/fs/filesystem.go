package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"framecap/internal/capture"
)

// OSFilesystem resolves and reads the watched source on the real filesystem.
type OSFilesystem struct{}

// NewOSFilesystem creates a filesystem that operates on the real filesystem.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// ResolveSource validates a raw path and returns the Source to watch.
// The path must exist and be a regular file; a missing file wraps
// capture.ErrSourceNotFound.
func (m *OSFilesystem) ResolveSource(rawPath string) (*capture.Source, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", capture.ErrSourceNotFound, absPath)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	mode := info.Mode()
	if mode.IsDir() {
		return nil, fmt.Errorf("source is a directory: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return capture.NewSource(absPath), nil
}

// ReadFrame reads the whole file. It either returns every byte present at
// the time of the read or an error; partial reads are never returned.
func (m *OSFilesystem) ReadFrame(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, capture.NewReadError(path, err)
	}
	return data, nil
}

// Compile-time check that OSFilesystem implements capture.FrameReader interface
var _ capture.FrameReader = (*OSFilesystem)(nil)
