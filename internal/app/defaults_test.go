package app

import (
	"os"
	"path/filepath"
	"testing"

	"framecap/internal/config"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("FRAMECAP_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("FRAMECAP_HOME", "/custom/framecap")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/framecap" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/framecap")
		}
		if defaults["log_dir"] != "/custom/framecap/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/framecap/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("FRAMECAP_CONFIG_PATH", "")
		t.Setenv("FRAMECAP_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()
		wantConfig := filepath.Join(homeDir, ".config", "framecap.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}
		wantBase := filepath.Join(homeDir, ".local", "share", "framecap")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("FRAMECAP_CONFIG_PATH", filepath.Join(dir, "none.toml"))
		t.Setenv("FRAMECAP_HOME", dir)

		cfg, path, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if path != filepath.Join(dir, "none.toml") {
			t.Errorf("path = %q", path)
		}
		if cfg.HostID == "" {
			t.Error("HostID is empty")
		}
		if cfg.BaseDir != dir || cfg.LogDir != filepath.Join(dir, "log") {
			t.Errorf("BaseDir = %q, LogDir = %q", cfg.BaseDir, cfg.LogDir)
		}
	})

	t.Run("reads existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "framecap.toml")
		t.Setenv("FRAMECAP_CONFIG_PATH", path)
		t.Setenv("FRAMECAP_HOME", dir)

		if err := config.Init(path, config.NewConfig("host-from-file", dir)); err != nil {
			t.Fatal(err)
		}

		cfg, _, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.HostID != "host-from-file" {
			t.Errorf("HostID = %q, want %q", cfg.HostID, "host-from-file")
		}
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "framecap.toml")
		t.Setenv("FRAMECAP_CONFIG_PATH", path)
		if err := os.WriteFile(path, []byte("host_id = ["), 0644); err != nil {
			t.Fatal(err)
		}

		if _, _, err := LoadConfig(); err == nil {
			t.Error("LoadConfig() expected error for malformed file")
		}
	})
}
