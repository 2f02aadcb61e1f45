package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// StopReason records why a session ended.
type StopReason string

const (
	StopNone         StopReason = ""
	StopDuration     StopReason = "duration"
	StopInterrupted  StopReason = "interrupted"
	StopArchiveError StopReason = "archive_error"
	StopSourceClosed StopReason = "source_closed"
)

// Options configures a Controller.
type Options struct {
	// Duration is how long to keep capturing after the first frame.
	Duration time.Duration

	// ProgressEvery emits a progress signal every N captured frames.
	// Zero disables progress signals.
	ProgressEvery int

	// PollInterval is how often Run checks the termination flag.
	PollInterval time.Duration

	// AssumedFrameSize is the per-frame size used for the legacy
	// uncompressed-size estimate in the summary.
	AssumedFrameSize int64

	// ErrorLogRate limits how many per-frame failures per second are
	// written to the log. Every failure still reaches the Reporter.
	ErrorLogRate float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Duration:         30 * time.Second,
		ProgressEvery:    50,
		PollInterval:     100 * time.Millisecond,
		AssumedFrameSize: 26 * 1024,
		ErrorLogRate:     5,
	}
}

// Controller turns write-complete notifications for one Source into
// archive entries.
//
// Exactly one HandleEvent call executes at a time; Run guarantees this by
// dispatching from a single goroutine. All fields below the done flag are
// owned by that goroutine. Other goroutines only load done, and read the
// counters after the dispatcher has been joined.
type Controller struct {
	source   *Source
	archive  ArchiveWriter
	reader   FrameReader
	clock    Clock
	logger   Logger
	reporter Reporter
	opts     Options
	limiter  *rate.Limiter

	done atomic.Bool

	started        bool
	startTime      time.Time
	lastStamp      time.Time
	frames         int
	payloadBytes   int64
	readFailures   int
	appendFailures int
	reason         StopReason

	finalizeOnce sync.Once
	finalizeErr  error
}

// NewController creates a Controller. The archive must already be open.
func NewController(source *Source, archive ArchiveWriter, reader FrameReader, clock Clock, logger Logger, reporter Reporter, opts Options) *Controller {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.ErrorLogRate <= 0 {
		opts.ErrorLogRate = defaults.ErrorLogRate
	}

	return &Controller{
		source:   source,
		archive:  archive,
		reader:   reader,
		clock:    clock,
		logger:   logger,
		reporter: reporter,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.ErrorLogRate), 1),
	}
}

// Done reports whether the controller has stopped accepting frames.
func (c *Controller) Done() bool { return c.done.Load() }

// Reason returns why capture stopped, or StopNone while it is running.
// Same access rules as Frames.
func (c *Controller) Reason() StopReason { return c.reason }

// Frames returns the number of frames captured so far.
// Only safe from the dispatcher goroutine or after Run returns.
func (c *Controller) Frames() int { return c.frames }

// HandleEvent reacts to one notification. Only write-complete events for
// the source path are acted on; everything else is ignored without side
// effects.
func (c *Controller) HandleEvent(ev Event) {
	if c.done.Load() {
		return
	}
	if ev.Kind != WriteComplete || !c.source.Matches(ev.Path) {
		return
	}

	now := c.clock.Now()
	if !c.started {
		c.started = true
		c.startTime = now
		c.logger.Info("first frame detected", "path", c.source.Path)
		c.reporter.Started(now)
	}

	elapsed := now.Sub(c.startTime)
	if elapsed > c.opts.Duration {
		c.logger.Info("capture duration reached", "elapsed", elapsed, "frames", c.frames)
		c.stop(StopDuration)
		return
	}

	data, err := c.reader.ReadFrame(c.source.Path)
	if err != nil {
		c.readFailures++
		c.fail("frame read failed", NewReadError(c.source.Path, err))
		return
	}

	stamp := c.nextStamp(now)
	frame := Frame{
		Name:    FrameName(c.source.Stem, stamp),
		Data:    data,
		ModTime: now,
	}

	if err := c.archive.Append(frame); err != nil {
		if errors.Is(err, ErrArchiveUnusable) {
			c.logger.Error("archive unusable, stopping capture", "error", err, "frames", c.frames)
			c.stop(StopArchiveError)
			return
		}
		c.appendFailures++
		c.fail("archive append failed", err)
		return
	}

	c.lastStamp = stamp
	c.frames++
	c.payloadBytes += frame.Size()
	c.logger.Debug("frame captured", "name", frame.Name, "size", frame.Size())

	if c.opts.ProgressEvery > 0 && c.frames%c.opts.ProgressEvery == 0 {
		var hz float64
		if elapsed > 0 {
			hz = float64(c.frames) / elapsed.Seconds()
		}
		c.reporter.Progress(c.frames, hz)
	}
}

// Finalize closes the archive. It runs at most once; later calls return
// the result of the first.
func (c *Controller) Finalize() error {
	c.finalizeOnce.Do(func() {
		c.done.Store(true)
		c.finalizeErr = c.archive.Close()
		if c.finalizeErr != nil {
			c.logger.Error("closing archive", "error", c.finalizeErr)
		}
	})
	return c.finalizeErr
}

// nextStamp returns now truncated to microseconds, bumped forward when
// needed so that entry names strictly increase.
func (c *Controller) nextStamp(now time.Time) time.Time {
	stamp := now.UTC().Truncate(time.Microsecond)
	if !c.lastStamp.IsZero() && !stamp.After(c.lastStamp) {
		stamp = c.lastStamp.Add(time.Microsecond)
	}
	return stamp
}

func (c *Controller) stop(reason StopReason) {
	if c.reason == StopNone {
		c.reason = reason
	}
	c.done.Store(true)
}

func (c *Controller) fail(msg string, err error) {
	c.reporter.Failed(err)
	if !c.limiter.Allow() {
		return
	}
	var re *ReadError
	if errors.As(err, &re) {
		c.logger.Warn(msg, "kind", re.Kind.String(), "error", re.Err)
		return
	}
	c.logger.Warn(msg, "error", err)
}
