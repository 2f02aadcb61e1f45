package database

import (
	"fmt"
	"os"
	"path/filepath"

	"framecap/internal/capture"
	"framecap/internal/config"
)

// NewDatabaseFromConfig creates a SessionStore based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string) (capture.SessionStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return openStore(filepath.Join(cfg.DataDir, hostID+".db"))
	case "memory":
		return openStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// openStore avoids returning a typed nil inside the interface on error.
func openStore(path string) (capture.SessionStore, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
