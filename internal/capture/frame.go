package capture

import (
	"fmt"
	"time"
)

// FrameExtension is appended to every entry name. Frames are opaque bytes;
// the extension only records what the producer is expected to write.
const FrameExtension = ".fits"

// Frame is one captured snapshot of the source.
type Frame struct {
	Name    string
	Data    []byte
	ModTime time.Time
}

// Size returns the exact payload length.
func (f Frame) Size() int64 { return int64(len(f.Data)) }

// FrameName returns "{stem}_{YYYYMMDD_HHMMSS_ffffff}.fits" for t in UTC.
func FrameName(stem string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s_%s_%06d%s", stem, t.Format("20060102_150405"), t.Nanosecond()/1000, FrameExtension)
}

// FrameReader reads the full current contents of a file.
type FrameReader interface {
	ReadFrame(path string) ([]byte, error)
}

// ArchiveWriter is the append-only container frames are written to.
type ArchiveWriter interface {
	// Append writes one entry. Errors wrapping ErrArchiveUnusable mean no
	// further entries can be written; other errors affect this frame only.
	Append(frame Frame) error

	// Close flushes and closes the archive. Only the first call has effect.
	Close() error

	// Size returns the archive size on disk. Valid after Close.
	Size() (int64, error)

	// Discard removes the archive file. Used when nothing was captured.
	Discard() error
}

// Reporter receives user-facing capture signals.
// Calls are made from the event dispatcher, one at a time.
type Reporter interface {
	// Started is called once, on the first qualifying event.
	Started(at time.Time)

	// Progress is called every ProgressEvery captured frames.
	Progress(frames int, rate float64)

	// Failed is called for every per-frame read or append failure. An
	// unusable archive ends the session instead and is not reported here.
	Failed(err error)
}

// NopReporter discards all signals.
type NopReporter struct{}

func (NopReporter) Started(time.Time)     {}
func (NopReporter) Progress(int, float64) {}
func (NopReporter) Failed(error)          {}
