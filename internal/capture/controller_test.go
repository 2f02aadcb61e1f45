package capture_test

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"testing"
	"time"

	"framecap/internal/capture"
	"framecap/internal/testutil"
)

const sourcePath = "/data/dimm/boxframe.fits"

type harness struct {
	c        *capture.Controller
	archive  *testutil.MemoryArchive
	reader   *testutil.MemoryFrameReader
	clock    *testutil.StubClock
	reporter *testutil.RecordingReporter
}

func newHarness(t *testing.T, opts capture.Options) *harness {
	t.Helper()
	h := &harness{
		archive:  testutil.NewMemoryArchive(),
		reader:   testutil.NewMemoryFrameReader(),
		clock:    testutil.FixedClock(),
		reporter: testutil.NewRecordingReporter(),
	}
	h.reader.SetFile(sourcePath, []byte("frame"))
	h.c = capture.NewController(capture.NewSource(sourcePath), h.archive, h.reader, h.clock,
		capture.NewNopLogger(), h.reporter, opts)
	return h
}

// frame sets the file contents, advances the clock to offset from the
// fixed start, and delivers a write-complete event.
func (h *harness) frame(offset time.Duration, data string) {
	h.reader.SetFile(sourcePath, []byte(data))
	h.clock.Set(testutil.FixedClock().Now().Add(offset))
	h.c.HandleEvent(capture.Event{Path: sourcePath, Kind: capture.WriteComplete})
}

func testOptions(d time.Duration) capture.Options {
	opts := capture.DefaultOptions()
	opts.Duration = d
	opts.PollInterval = time.Millisecond
	return opts
}

func TestFrameName(t *testing.T) {
	tests := []struct {
		name string
		stem string
		t    time.Time
		want string
	}{
		{
			name: "microseconds",
			stem: "boxframe",
			t:    time.Date(2025, 3, 14, 1, 59, 26, 535897000, time.UTC),
			want: "boxframe_20250314_015926_535897.fits",
		},
		{
			name: "nanoseconds truncated",
			stem: "boxframe",
			t:    time.Date(2025, 3, 14, 1, 59, 26, 535897999, time.UTC),
			want: "boxframe_20250314_015926_535897.fits",
		},
		{
			name: "zero padded",
			stem: "cam",
			t:    time.Date(2024, 1, 2, 3, 4, 5, 7000, time.UTC),
			want: "cam_20240102_030405_000007.fits",
		},
		{
			name: "converted to UTC",
			stem: "cam",
			t:    time.Date(2024, 1, 2, 5, 4, 5, 0, time.FixedZone("EET", 2*3600)),
			want: "cam_20240102_030405_000000.fits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := capture.FrameName(tt.stem, tt.t); got != tt.want {
				t.Errorf("FrameName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSource(t *testing.T) {
	s := capture.NewSource("/data/dimm/../dimm/boxframe.fits")
	if s.Path != sourcePath {
		t.Errorf("Path = %q, want %q", s.Path, sourcePath)
	}
	if s.Dir != "/data/dimm" {
		t.Errorf("Dir = %q, want %q", s.Dir, "/data/dimm")
	}
	if s.Stem != "boxframe" {
		t.Errorf("Stem = %q, want %q", s.Stem, "boxframe")
	}
	if !s.Matches("/data/dimm/./boxframe.fits") {
		t.Error("Matches() = false for equivalent path")
	}
	if s.Matches("/data/dimm/boxframe.fits.tmp") {
		t.Error("Matches() = true for sibling file")
	}
}

func TestController_IgnoresUnrelatedEvents(t *testing.T) {
	tests := []struct {
		name string
		ev   capture.Event
	}{
		{name: "other file", ev: capture.Event{Path: "/data/dimm/other.fits", Kind: capture.WriteComplete}},
		{name: "modify", ev: capture.Event{Path: sourcePath, Kind: capture.Modify}},
		{name: "attrib", ev: capture.Event{Path: sourcePath, Kind: capture.Attrib}},
		{name: "create", ev: capture.Event{Path: sourcePath, Kind: capture.Create}},
		{name: "remove", ev: capture.Event{Path: sourcePath, Kind: capture.Remove}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testOptions(time.Second))
			h.c.HandleEvent(tt.ev)

			if h.c.Frames() != 0 {
				t.Errorf("Frames() = %d, want 0", h.c.Frames())
			}
			if h.reader.Reads != 0 {
				t.Errorf("reader called %d times, want 0", h.reader.Reads)
			}
			if len(h.reporter.StartedAt()) != 0 {
				t.Error("Started signalled for unrelated event")
			}
			if h.c.Done() {
				t.Error("Done() = true after unrelated event")
			}
		})
	}
}

func TestController_CapturesFrames(t *testing.T) {
	h := newHarness(t, testOptions(time.Second))

	h.frame(0, "A")
	h.frame(400*time.Millisecond, "B")
	h.frame(900*time.Millisecond, "C")

	want := []string{
		"boxframe_20250314_015926_535897.fits",
		"boxframe_20250314_015926_935897.fits",
		"boxframe_20250314_015927_435897.fits",
	}
	if got := h.archive.Names(); !slices.Equal(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i, f := range h.archive.Frames() {
		if wantData := string(rune('A' + i)); string(f.Data) != wantData {
			t.Errorf("frame %d data = %q, want %q", i, f.Data, wantData)
		}
	}

	started := h.reporter.StartedAt()
	if len(started) != 1 || !started[0].Equal(testutil.FixedClock().Now()) {
		t.Errorf("Started signals = %v, want exactly the first event time", started)
	}
	if h.c.Done() {
		t.Error("Done() = true before duration elapsed")
	}
}

func TestController_NamesStrictlyIncrease(t *testing.T) {
	h := newHarness(t, testOptions(time.Second))

	h.frame(0, "A")
	h.frame(0, "B")
	h.frame(300*time.Nanosecond, "C")
	h.frame(-time.Millisecond, "D")

	names := h.archive.Names()
	if len(names) != 4 {
		t.Fatalf("len(names) = %d, want 4", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i] <= names[i-1] {
			t.Errorf("names[%d] = %q not after %q", i, names[i], names[i-1])
		}
	}
	if names[1] != "boxframe_20250314_015926_535898.fits" {
		t.Errorf("names[1] = %q, want bump by one microsecond", names[1])
	}
}

func TestController_DurationLimit(t *testing.T) {
	h := newHarness(t, testOptions(time.Second))

	h.frame(0, "A")
	h.frame(500*time.Millisecond, "B")
	h.frame(time.Second, "C")
	if h.c.Done() {
		t.Fatal("Done() = true at exactly the duration")
	}
	h.frame(1500*time.Millisecond, "D")

	if h.c.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", h.c.Frames())
	}
	if !h.c.Done() {
		t.Error("Done() = false after duration exceeded")
	}
	if h.c.Reason() != capture.StopDuration {
		t.Errorf("Reason() = %q, want %q", h.c.Reason(), capture.StopDuration)
	}

	// The overrunning frame was not read.
	if h.reader.Reads != 3 {
		t.Errorf("reads = %d, want 3", h.reader.Reads)
	}

	h.frame(1600*time.Millisecond, "E")
	if h.c.Frames() != 3 {
		t.Errorf("Frames() after stop = %d, want 3", h.c.Frames())
	}
}

func TestController_ZeroDurationCapturesFirstFrame(t *testing.T) {
	h := newHarness(t, testOptions(0))

	h.frame(0, "A")
	if h.c.Frames() != 1 {
		t.Fatalf("Frames() = %d, want 1", h.c.Frames())
	}
	if h.c.Done() {
		t.Fatal("Done() = true after first frame")
	}

	h.frame(time.Millisecond, "B")
	if h.c.Frames() != 1 || !h.c.Done() {
		t.Errorf("Frames() = %d, Done() = %v; want 1, true", h.c.Frames(), h.c.Done())
	}
}

func TestController_ReadFailureContinues(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind capture.ReadKind
	}{
		{name: "vanished", err: fs.ErrNotExist, kind: capture.ReadRace},
		{name: "permission", err: fs.ErrPermission, kind: capture.ReadPermission},
		{name: "io", err: errors.New("input/output error"), kind: capture.ReadIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testOptions(time.Second))
			h.reader.FailNext(sourcePath, tt.err)

			h.frame(0, "A")
			h.frame(100*time.Millisecond, "B")

			if h.c.Frames() != 1 {
				t.Fatalf("Frames() = %d, want 1", h.c.Frames())
			}
			if h.c.Done() {
				t.Error("Done() = true after read failure")
			}

			failures := h.reporter.Failures()
			if len(failures) != 1 {
				t.Fatalf("failures = %v, want 1", failures)
			}
			var re *capture.ReadError
			if !errors.As(failures[0], &re) {
				t.Fatalf("failure %v is not a ReadError", failures[0])
			}
			if re.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", re.Kind, tt.kind)
			}
			if !errors.Is(failures[0], tt.err) {
				t.Errorf("failure %v does not wrap %v", failures[0], tt.err)
			}
		})
	}
}

func TestController_AppendFailure(t *testing.T) {
	t.Run("per-frame error continues", func(t *testing.T) {
		h := newHarness(t, testOptions(time.Second))
		h.archive.FailNextAppend(errors.New("bad header"))

		h.frame(0, "A")
		h.frame(100*time.Millisecond, "B")

		if h.c.Frames() != 1 || h.c.Done() {
			t.Errorf("Frames() = %d, Done() = %v; want 1, false", h.c.Frames(), h.c.Done())
		}
		if len(h.reporter.Failures()) != 1 {
			t.Errorf("failures = %v, want 1", h.reporter.Failures())
		}
	})

	t.Run("unusable archive stops capture", func(t *testing.T) {
		h := newHarness(t, testOptions(time.Second))
		h.frame(0, "A")

		h.archive.FailNextAppend(fmt.Errorf("write: no space left on device: %w", capture.ErrArchiveUnusable))
		h.frame(100*time.Millisecond, "B")

		if !h.c.Done() {
			t.Fatal("Done() = false after unusable archive")
		}
		if h.c.Reason() != capture.StopArchiveError {
			t.Errorf("Reason() = %q, want %q", h.c.Reason(), capture.StopArchiveError)
		}
		if n := len(h.reporter.Failures()); n != 0 {
			t.Errorf("failures = %d, want 0; the stop is reported once through the log", n)
		}

		h.frame(200*time.Millisecond, "C")
		if h.c.Frames() != 1 {
			t.Errorf("Frames() = %d, want 1", h.c.Frames())
		}
	})
}

func TestController_Progress(t *testing.T) {
	opts := testOptions(time.Minute)
	opts.ProgressEvery = 2
	h := newHarness(t, opts)

	for i := 0; i < 5; i++ {
		h.frame(time.Duration(i)*100*time.Millisecond, "x")
	}

	got := h.reporter.ProgressCalls()
	want := []testutil.Progress{
		{Frames: 2, Rate: 20},
		{Frames: 4, Rate: 4 / 0.3},
	}
	if len(got) != len(want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Frames != want[i].Frames {
			t.Errorf("progress[%d].Frames = %d, want %d", i, got[i].Frames, want[i].Frames)
		}
		if diff := got[i].Rate - want[i].Rate; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("progress[%d].Rate = %v, want %v", i, got[i].Rate, want[i].Rate)
		}
	}
}

func TestController_FinalizeOnce(t *testing.T) {
	h := newHarness(t, testOptions(time.Second))
	h.frame(0, "A")

	closeErr := errors.New("flush failed")
	h.archive.FailClose(closeErr)

	if err := h.c.Finalize(); !errors.Is(err, closeErr) {
		t.Fatalf("Finalize() error = %v, want %v", err, closeErr)
	}
	if err := h.c.Finalize(); !errors.Is(err, closeErr) {
		t.Fatalf("second Finalize() error = %v, want %v", err, closeErr)
	}
	if h.archive.Closes() != 1 {
		t.Errorf("archive closed %d times, want 1", h.archive.Closes())
	}
	if !h.c.Done() {
		t.Error("Done() = false after Finalize")
	}

	h.frame(100*time.Millisecond, "B")
	if h.c.Frames() != 1 {
		t.Errorf("Frames() after Finalize = %d, want 1", h.c.Frames())
	}
}

func TestNewReadError(t *testing.T) {
	inner := &capture.ReadError{Path: "/x", Kind: capture.ReadPermission, Err: fs.ErrPermission}
	if got := capture.NewReadError("/y", fmt.Errorf("wrapped: %w", inner)); got != inner {
		t.Errorf("NewReadError() = %v, want existing ReadError returned", got)
	}

	re := capture.NewReadError("/x", fmt.Errorf("open /x: %w", fs.ErrNotExist))
	if re.Kind != capture.ReadRace || re.Kind.String() != "race" {
		t.Errorf("Kind = %v, want race", re.Kind)
	}
}
