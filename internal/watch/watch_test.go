package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"framecap/internal/capture"
	"framecap/internal/config"
)

func newTestSource(t *testing.T) *capture.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boxframe.fits")
	if err := os.WriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}
	return capture.NewSource(path)
}

// waitFor reads events until one matches, failing after timeout.
func waitFor(t *testing.T, src capture.EventSource, path string, kind capture.EventKind) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				t.Fatalf("events channel closed while waiting for %v", kind)
			}
			if ev.Path == path && ev.Kind == kind {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v on %s", kind, path)
		}
	}
}

func assertClosed(t *testing.T, src capture.EventSource) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-src.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("events channel not closed after Close")
		}
	}
}

func TestFSNotifySource_WriteComplete(t *testing.T) {
	src := newTestSource(t)

	s, err := NewFSNotifySource(src, 20*time.Millisecond, capture.NewNopLogger())
	if err != nil {
		t.Fatalf("NewFSNotifySource() error = %v", err)
	}
	defer s.Close()

	if err := os.WriteFile(src.Path, []byte("frame 1"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, s, src.Path, capture.WriteComplete)
}

func TestFSNotifySource_InvalidSettle(t *testing.T) {
	if _, err := NewFSNotifySource(newTestSource(t), 0, capture.NewNopLogger()); err == nil {
		t.Fatal("NewFSNotifySource() expected error for zero settle period")
	}
}

func TestFSNotifySource_CloseIsIdempotent(t *testing.T) {
	s, err := NewFSNotifySource(newTestSource(t), 20*time.Millisecond, capture.NewNopLogger())
	if err != nil {
		t.Fatalf("NewFSNotifySource() error = %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	assertClosed(t, s)
}

func TestNewSourceFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{name: "fsnotify", source: "fsnotify"},
		{name: "default", source: ""},
		{name: "unknown", source: "kqueue-direct", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSourceFromConfig(config.CaptureConfig{Source: tt.source}, newTestSource(t), capture.NewNopLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSourceFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if s != nil {
					t.Error("NewSourceFromConfig() returned non-nil source with error")
				}
				return
			}
			if err := s.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestNewSourceFromConfig_MissingDirectory(t *testing.T) {
	src := capture.NewSource(filepath.Join(t.TempDir(), "missing", "boxframe.fits"))
	for _, typ := range []string{"fsnotify", config.DefaultSourceType()} {
		if _, err := NewSourceFromConfig(config.CaptureConfig{Source: typ}, src, capture.NewNopLogger()); err == nil {
			t.Errorf("%s: expected error for missing directory", typ)
		}
	}
}
