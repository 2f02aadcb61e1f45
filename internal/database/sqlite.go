package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"framecap/internal/capture"
	"framecap/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements capture.SessionStore using SQLite.
type SQLiteDatabase struct {
	db *sql.DB
}

// NewSQLiteDatabase opens the database at path and migrates it to the
// latest schema. A database written by a newer binary is rejected.
// path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking schema version: %w", err)
	}

	return &SQLiteDatabase{db: db}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would be a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

const sessionColumns = `id, host_id, source_path, archive_path, started_at, first_frame_at, finished_at,
	duration_limit_ms, frames, payload_bytes, archive_bytes, stop_reason, status, vault_key, encrypted`

func (s *SQLiteDatabase) CreateSession(rec *capture.SessionRecord) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO capture_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.HostID, rec.SourcePath, rec.ArchivePath, rec.StartedAt.UTC(), nullTimeUTC(rec.FirstFrameAt), nullTimeUTC(rec.FinishedAt),
		rec.DurationLimit.Milliseconds(), rec.Frames, rec.PayloadBytes, rec.ArchiveBytes, rec.StopReason, rec.Status, rec.VaultKey, rec.Encrypted,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FinishSession(rec *capture.SessionRecord) error {
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE capture_sessions
		SET first_frame_at = ?, finished_at = ?, frames = ?, payload_bytes = ?, archive_bytes = ?, stop_reason = ?, status = ?
		WHERE id = ?`,
		nullTimeUTC(rec.FirstFrameAt), nullTimeUTC(rec.FinishedAt), rec.Frames, rec.PayloadBytes, rec.ArchiveBytes, rec.StopReason, rec.Status,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return expectOneRow(res, rec.ID)
}

func (s *SQLiteDatabase) SetSessionVaultKey(id string, key string, encrypted bool) error {
	res, err := s.db.ExecContext(context.Background(),
		"UPDATE capture_sessions SET vault_key = ?, encrypted = ? WHERE id = ?", key, encrypted, id)
	if err != nil {
		return fmt.Errorf("setting vault key: %w", err)
	}
	return expectOneRow(res, id)
}

func (s *SQLiteDatabase) FindSession(id string) (*capture.SessionRecord, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+sessionColumns+" FROM capture_sessions WHERE id = ?", id)

	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return rec, nil
}

func (s *SQLiteDatabase) ListSessions(limit int) ([]*capture.SessionRecord, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT "+sessionColumns+" FROM capture_sessions ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var result []*capture.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return result, nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*capture.SessionRecord, error) {
	var rec capture.SessionRecord
	var durationMillis int64
	err := row.Scan(
		&rec.ID, &rec.HostID, &rec.SourcePath, &rec.ArchivePath, &rec.StartedAt, &rec.FirstFrameAt, &rec.FinishedAt,
		&durationMillis, &rec.Frames, &rec.PayloadBytes, &rec.ArchiveBytes, &rec.StopReason, &rec.Status, &rec.VaultKey, &rec.Encrypted,
	)
	if err != nil {
		return nil, err
	}
	rec.DurationLimit = time.Duration(durationMillis) * time.Millisecond
	return &rec, nil
}

func nullTimeUTC(t sql.NullTime) sql.NullTime {
	if !t.Valid {
		return t
	}
	return sql.NullTime{Time: t.Time.UTC(), Valid: true}
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements capture.SessionStore interface
var _ capture.SessionStore = (*SQLiteDatabase)(nil)
