package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const appDirName = "commsync"

// Config holds settings loaded from config.yaml plus environment overrides.
type Config struct {
	OpenPhone OpenPhoneConfig `yaml:"openphone"`
	Sync      SyncConfig      `yaml:"sync"`
}

// OpenPhoneConfig configures the telephony provider client.
type OpenPhoneConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SyncConfig holds bulk-sync defaults.
type SyncConfig struct {
	PageSize      int `yaml:"page_size"`
	LookbackHours int `yaml:"lookback_hours"`
}

// GetConfigDir returns the directory holding config.yaml.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// GetDataDir returns the directory holding the sqlite database.
func GetDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDirName), nil
}

// Load reads config.yaml if present and applies environment overrides.
// A missing config file is not an error; env vars alone are enough to run.
func Load() (*Config, error) {
	cfg := &Config{}

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if key := strings.TrimSpace(os.Getenv("OPENPHONE_API_KEY")); key != "" {
		cfg.OpenPhone.APIKey = key
	}
	if url := strings.TrimSpace(os.Getenv("OPENPHONE_BASE_URL")); url != "" {
		cfg.OpenPhone.BaseURL = url
	}

	if cfg.OpenPhone.BaseURL == "" {
		cfg.OpenPhone.BaseURL = "https://api.openphone.com/v1"
	}
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.Sync.LookbackHours <= 0 {
		cfg.Sync.LookbackHours = 24
	}

	return cfg, nil
}
