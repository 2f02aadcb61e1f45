package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"framecap/internal/archive"
	"framecap/internal/capture"
	"framecap/internal/config"
	"framecap/internal/database"
	"framecap/internal/encryption"
	"framecap/internal/fs"
	"framecap/internal/vault"
	"framecap/internal/watch"
)

// CaptureApp is the application layer between the CLI and the capture core.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type CaptureApp struct {
	cfg       *config.Config
	db        capture.SessionStore
	vault     capture.Vault     // nil when no vault is configured
	encryptor capture.Encryptor // nil when encryption is disabled
	fs        *fs.OSFilesystem
	clock     capture.Clock
	sessionID string
	logger    capture.Logger
	logFile   *os.File
}

// NewCaptureApp creates a fully wired CaptureApp from the given config.
// Each app instance is one session; its ID, taken from ids, tags every log
// line. The caller must call Close when done.
func NewCaptureApp(cfg *config.Config, ids capture.IDGenerator) (*CaptureApp, error) {
	var v capture.Vault
	if len(cfg.Vaults) > 0 {
		var err error
		v, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	var enc capture.Encryptor
	if cfg.Encryption.Enabled {
		var err error
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("encryption enabled but keys are missing: run `framecap config init --encrypt`")
		}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	sessionID := ids.New()
	logger, logFile, err := newLogger(cfg.LogDir, sessionID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &CaptureApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		fs:        fs.NewOSFilesystem(),
		clock:     capture.RealClock{},
		sessionID: sessionID,
		logger:    &slogAdapter{l: logger},
		logFile:   logFile,
	}, nil
}

// SessionID returns the ID this app records its capture session under.
func (a *CaptureApp) SessionID() string { return a.sessionID }

// EventSourceType returns the configured notification facility.
func (a *CaptureApp) EventSourceType() string { return a.cfg.Capture.WithDefaults().Source }

// CaptureRequest describes one capture session.
type CaptureRequest struct {
	Input  string
	Output string

	// Duration after the first frame. Nil means the configured default;
	// an explicit zero keeps only the first frame.
	Duration *time.Duration

	// Reporter receives user-facing signals. May be nil.
	Reporter capture.Reporter
}

// CaptureResult is the outcome of a session.
type CaptureResult struct {
	SessionID   string
	Source      *capture.Source
	ArchivePath string
	Duration    time.Duration
	Summary     *capture.Summary

	// VaultKey is set when the archive was published.
	VaultKey  string
	Encrypted bool
}

// Resolve validates the input path. It wraps capture.ErrSourceNotFound
// when the file does not exist.
func (a *CaptureApp) Resolve(input string) (*capture.Source, error) {
	return a.fs.ResolveSource(input)
}

// EffectiveDuration returns *d, or the configured default when d is nil.
func (a *CaptureApp) EffectiveDuration(d *time.Duration) time.Duration {
	if d != nil {
		return *d
	}
	secs := a.cfg.Capture.WithDefaults().DefaultDurationSeconds
	return time.Duration(secs * float64(time.Second))
}

// Capture runs one session: it resolves the source before subscribing,
// records the session, captures until a stop condition, records the
// outcome and publishes the archive when a vault is configured.
//
// When the returned error is non-nil the result may still be set: the
// archive is always finalized before recording or publishing is attempted.
func (a *CaptureApp) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	src, err := a.fs.ResolveSource(req.Input)
	if err != nil {
		return nil, err
	}
	archivePath, err := filepath.Abs(req.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}
	if archivePath == src.Path {
		return nil, fmt.Errorf("output archive must differ from the input file")
	}

	ccfg := a.cfg.Capture.WithDefaults()
	duration := a.EffectiveDuration(req.Duration)

	rec := newSessionRecord(a.sessionID, a.cfg.HostID, src, archivePath, duration, a.clock.Now())
	if err := a.db.CreateSession(rec); err != nil {
		return nil, fmt.Errorf("recording session: %w", err)
	}

	result := &CaptureResult{
		SessionID:   a.sessionID,
		Source:      src,
		ArchivePath: archivePath,
		Duration:    duration,
	}

	summary, runErr := a.run(ctx, src, archivePath, duration, ccfg, req.Reporter)
	result.Summary = summary

	finishSessionRecord(rec, summary, runErr, a.clock.Now())
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := a.db.FinishSession(rec); err != nil {
		a.logger.Error("recording session outcome", "error", err)
		errs = append(errs, fmt.Errorf("recording session outcome: %w", err))
	}

	if runErr == nil && summary != nil && summary.Captured && a.vault != nil {
		key, err := a.publish(archivePath)
		if err != nil {
			a.logger.Error("publishing archive", "error", err)
			errs = append(errs, err)
		} else {
			result.VaultKey = key
			result.Encrypted = a.encryptor != nil
			if err := a.db.SetSessionVaultKey(a.sessionID, key, result.Encrypted); err != nil {
				errs = append(errs, fmt.Errorf("recording vault key: %w", err))
			}
		}
	}

	return result, errors.Join(errs...)
}

func (a *CaptureApp) run(ctx context.Context, src *capture.Source, archivePath string, duration time.Duration, ccfg config.CaptureConfig, reporter capture.Reporter) (*capture.Summary, error) {
	w, err := archive.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	opts := capture.Options{
		Duration:         duration,
		ProgressEvery:    ccfg.ProgressEvery,
		PollInterval:     time.Duration(ccfg.PollIntervalMillis) * time.Millisecond,
		AssumedFrameSize: ccfg.AssumedFrameKB * 1024,
		ErrorLogRate:     ccfg.ErrorLogRate,
	}
	ctrl := capture.NewController(src, w, a.fs, a.clock, a.logger, reporter, opts)

	events, err := watch.NewSourceFromConfig(ccfg, src, a.logger)
	if err != nil {
		if derr := w.Discard(); derr != nil {
			a.logger.Warn("removing unused archive", "error", derr)
		}
		return nil, fmt.Errorf("subscribing to %s: %w", src.Dir, err)
	}

	a.logger.Info("capture started",
		"source", src.Path,
		"archive", archivePath,
		"duration", duration,
		"event_source", ccfg.Source,
	)
	return ctrl.Run(ctx, events)
}

// History returns the most recent sessions, newest first.
func (a *CaptureApp) History(limit int) ([]*capture.SessionRecord, error) {
	return a.db.ListSessions(limit)
}

// Inspect lists the entries of an archive without loading payloads.
func (a *CaptureApp) Inspect(path string) ([]archive.Entry, error) {
	return archive.ListFile(path, false)
}

// Close closes all resources.
func (a *CaptureApp) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
