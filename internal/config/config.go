package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for framecap.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Capture    CaptureConfig    `toml:"capture"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
}

// CaptureConfig tunes the capture loop. Zero values mean "use the default".
type CaptureConfig struct {
	Source                 string  `toml:"source"`                   // "inotify" (Linux default) or "fsnotify"
	SettleMillis           int     `toml:"settle_ms"`                // fsnotify only: quiet period that marks a write complete
	PollIntervalMillis     int     `toml:"poll_interval_ms"`         // termination flag polling interval
	ProgressEvery          int     `toml:"progress_every"`           // progress line every N frames
	DefaultDurationSeconds float64 `toml:"default_duration_seconds"` // used when --duration is not given
	AssumedFrameKB         int64   `toml:"assumed_frame_kb"`         // legacy uncompressed-size estimate
	ErrorLogRate           float64 `toml:"error_log_rate"`           // max per-frame failures logged per second
}

// Capture defaults.
const (
	DefaultSettleMillis       = 20
	DefaultPollIntervalMillis = 100
	DefaultProgressEvery      = 50
	DefaultDurationSeconds    = 30.0
	DefaultAssumedFrameKB     = 26
	DefaultErrorLogRate       = 5.0
)

// WithDefaults returns a copy with every unset field filled in.
func (c CaptureConfig) WithDefaults() CaptureConfig {
	if c.Source == "" {
		c.Source = DefaultSourceType()
	}
	if c.SettleMillis <= 0 {
		c.SettleMillis = DefaultSettleMillis
	}
	if c.PollIntervalMillis <= 0 {
		c.PollIntervalMillis = DefaultPollIntervalMillis
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.DefaultDurationSeconds <= 0 {
		c.DefaultDurationSeconds = DefaultDurationSeconds
	}
	if c.AssumedFrameKB <= 0 {
		c.AssumedFrameKB = DefaultAssumedFrameKB
	}
	if c.ErrorLogRate <= 0 {
		c.ErrorLogRate = DefaultErrorLogRate
	}
	return c
}

// DefaultSourceType returns the event source used when none is configured.
// inotify reports close-after-write natively; elsewhere completion is inferred.
func DefaultSourceType() string {
	if runtime.GOOS == "linux" {
		return "inotify"
	}
	return "fsnotify"
}

// EncryptionConfig holds paths to the age key pair used for published archives.
type EncryptionConfig struct {
	Enabled        bool   `toml:"enabled"`
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`          // S3-compatible stores (MinIO etc.)
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`     // empty: default credential chain
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"` // only with s3_access_key_id

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the session history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Capture: CaptureConfig{}.WithDefaults(),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "framecap.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "framecap.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
// A missing file yields an error wrapping os.ErrNotExist.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
