package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"framecap/internal/config"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FRAMECAP_CONFIG_PATH: config file location (default: ~/.config/framecap.toml)
//   - FRAMECAP_HOME: base directory for framecap data (default: ~/.local/share/framecap)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// LoadConfig reads the config file at the default location. A missing file
// is not an error: capture works without `framecap config init`, using a
// default config rooted at the base directory.
func LoadConfig() (*config.Config, string, error) {
	defaults, err := GetDefaults()
	if err != nil {
		return nil, "", err
	}
	path := defaults["config_path"]

	cfg, err := config.ReadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.NewConfig(fallbackHostID(), defaults["base_dir"]), path, nil
	}
	if err != nil {
		return nil, path, err
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = defaults["base_dir"]
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	return cfg, path, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("FRAMECAP_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "framecap.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("FRAMECAP_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "framecap"), nil
}

// fallbackHostID names the host when no config file assigned an ID.
func fallbackHostID() string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "localhost"
}
