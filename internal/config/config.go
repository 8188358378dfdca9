// ABOUTME: Configuration management for data location and sync tuning
// ABOUTME: JSON config in the XDG config dir, created with defaults on first run

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castsync/castsync/internal/storage"
)

// Config stores castsync configuration.
type Config struct {
	// DataDir is the root directory for the local library database.
	// Supports ~ expansion. Defaults to ~/.local/share/castsync.
	DataDir string `json:"data_dir,omitempty"`

	// SyncIntervalMinutes is the periodic smart-sync interval. Default 30.
	SyncIntervalMinutes int `json:"sync_interval_minutes,omitempty"`

	// FetchWorkers bounds parallel feed downloads in one cycle. Default 4.
	FetchWorkers int `json:"fetch_workers,omitempty"`

	// StalenessMinutes is how old a feed may be before a smart sync
	// refetches it. Default 60.
	StalenessMinutes int `json:"staleness_minutes,omitempty"`
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return defaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// SyncInterval returns the periodic sync interval.
func (c *Config) SyncInterval() time.Duration {
	if c.SyncIntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// StalenessThreshold returns the smart-sync feed staleness cutoff.
func (c *Config) StalenessThreshold() time.Duration {
	if c.StalenessMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.StalenessMinutes) * time.Minute
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage opens the SQLite store under the data directory.
func (c *Config) OpenStorage() (storage.Store, error) {
	dbPath := filepath.Join(c.GetDataDir(), "castsync.db")
	return storage.NewSQLiteStore(dbPath)
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "castsync", "config.json")
}

// Load reads config from disk, creating a default config on first run.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			if saveErr := cfg.Save(); saveErr != nil {
				fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func defaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "castsync")
}
