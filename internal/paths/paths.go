// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "timekeep.pid"
	ConfigFile = "config.toml"
	LogFile    = "timekeep.log"
	MirrorFile = "activity_monitor.db"
	DataDirRel = ".timekeep" // relative to $HOME
)

// TrackingFileSuffix is appended to the normalized host ID to form the
// per-host JSON document name, e.g. "maya_time_tracking.json".
const TrackingFileSuffix = "_time_tracking.json"

// hostIDRegex strips everything that is not safe in a file name.
var hostIDRegex = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHostID lowercases a host name and collapses unsafe runs to single
// underscores, so "3DEqualizer 7.1" becomes "3dequalizer_7_1".
func NormalizeHostID(host string) string {
	id := strings.ToLower(strings.TrimSpace(host))
	id = hostIDRegex.ReplaceAllString(id, "_")
	return strings.Trim(id, "_")
}

// TrackingFile returns the JSON document name for a host, e.g.
// TrackingFile("maya") -> "maya_time_tracking.json".
func TrackingFile(host string) string {
	return NormalizeHostID(host) + TrackingFileSuffix
}

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Mirror returns the full path to the SQLite mirror database.
func (d DataDir) Mirror() string { return filepath.Join(d.Root, MirrorFile) }

// Tracking returns the full path to the per-host tracking document.
func (d DataDir) Tracking(host string) string {
	return filepath.Join(d.Root, TrackingFile(host))
}

// ///////////////////////////////////////////////
// Home Resolution
// ///////////////////////////////////////////////

// Default returns the platform default data directory, typically
// ~/.timekeep. Falls back to ./.timekeep if the home directory cannot be
// determined.
func Default() DataDir {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{Root: filepath.Join(".", DataDirRel)}
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}
}

// HomeTracking returns the legacy per-host document path directly under the
// user's home directory (e.g. ~/maya_time_tracking.json), which is where the
// in-host plugins write. Returns an error only if the home directory cannot
// be resolved.
func HomeTracking(host string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, TrackingFile(host)), nil
}
