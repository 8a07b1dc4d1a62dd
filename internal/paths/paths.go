// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile          = "watchbot.pid"
	ConfigFile       = "config.toml"
	LogFile          = "watchbot.log"
	MaplistCacheFile = "maplist-cache.json"
)

// BinaryName is the daemon binary name; DataDirRel is the default data
// directory relative to $HOME.
const (
	BinaryName = "watchbot"
	DataDirRel = ".watchbot"
)

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

// MaplistCache returns the full path to the map list cache file.
func (d DataDir) MaplistCache() string { return filepath.Join(d.Root, MaplistCacheFile) }
