// Package config provides configuration loading and defaults for timekeep.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package covers tracking cadence, idle detection, mirror settings,
// and logging with sensible defaults.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.velia/pipeline/timekeep/internal/atomicfile"
	"tools.velia/pipeline/timekeep/internal/paths"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Tracking holds session tracking and idle detection settings.
	Tracking TrackingConfig `toml:"tracking"`
	// Mirror holds database mirror settings.
	Mirror MirrorConfig `toml:"mirror"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// TrackingConfig holds session tracking and idle detection settings.
type TrackingConfig struct {
	// Application is the default application label recorded in sessions
	// when the host does not report one.
	Application string `toml:"application"`
	// IdleThresholdSeconds is the inactivity duration before a tick is
	// counted as idle time instead of active time.
	IdleThresholdSeconds int `toml:"idle_threshold_seconds"`
	// CheckIntervalSeconds is the interval between activity checks. Each
	// check credits this many seconds to the active or idle total.
	CheckIntervalSeconds int `toml:"check_interval_seconds"`
	// PersistIntervalSeconds is how often the open session is written to disk.
	PersistIntervalSeconds int `toml:"persist_interval_seconds"`
	// Untracked is a list of glob patterns for files that are never tracked.
	Untracked []string `toml:"untracked"`
}

// MirrorConfig holds database mirror settings.
type MirrorConfig struct {
	// Enabled turns on mirroring of session records into the SQLite database.
	Enabled bool `toml:"enabled"`
	// DatabasePath overrides the default mirror database location.
	DatabasePath string `toml:"database_path,omitempty"`
	// RemoteURL is an optional HTTP endpoint session records are pushed to.
	RemoteURL string `toml:"remote_url,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			Application:            "standalone",
			IdleThresholdSeconds:   180,
			CheckIntervalSeconds:   5,
			PersistIntervalSeconds: 5,
			Untracked:              []string{},
		},
		Mirror: MirrorConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be debug, info, warn, or error", c.Log.Level)
	}

	if c.Tracking.IdleThresholdSeconds <= 0 {
		return fmt.Errorf("idle_threshold_seconds must be > 0, got %d", c.Tracking.IdleThresholdSeconds)
	}

	if c.Tracking.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check_interval_seconds must be > 0, got %d", c.Tracking.CheckIntervalSeconds)
	}

	if c.Tracking.PersistIntervalSeconds <= 0 {
		return fmt.Errorf("persist_interval_seconds must be > 0, got %d", c.Tracking.PersistIntervalSeconds)
	}

	if c.Tracking.IdleThresholdSeconds < c.Tracking.CheckIntervalSeconds {
		return fmt.Errorf("idle_threshold_seconds (%d) must be >= check_interval_seconds (%d)",
			c.Tracking.IdleThresholdSeconds, c.Tracking.CheckIntervalSeconds)
	}

	for _, pattern := range c.Tracking.Untracked {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid untracked pattern %q", pattern)
		}
	}

	return nil
}

// ///////////////////////////////////////////////
// Durations
// ///////////////////////////////////////////////

// IdleThreshold returns the idle threshold as a duration.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.Tracking.IdleThresholdSeconds) * time.Second
}

// CheckInterval returns the activity check interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Tracking.CheckIntervalSeconds) * time.Second
}

// PersistInterval returns the persistence interval as a duration.
func (c *Config) PersistInterval() time.Duration {
	return time.Duration(c.Tracking.PersistIntervalSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Untracked Files
// ///////////////////////////////////////////////

// IsUntracked reports whether path matches any of the configured untracked patterns.
// Patterns are matched against both the full path and the base name.
func (c *Config) IsUntracked(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range c.Tracking.Untracked {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
