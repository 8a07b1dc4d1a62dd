// Package config provides configuration loading and defaults for the
// watchbot daemon.
//
// Configuration is loaded from a TOML file in the daemon's data directory.
// The package covers the upstream session API, the monitored player roster,
// the Discord webhook destinations, the VSR map list source, and logging.
// The config is read once at startup and treated as immutable for the
// process lifetime.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/bz2vsr/bz2-watchbot/internal/atomicfile"
	"github.com/bz2vsr/bz2-watchbot/internal/migrate"
	"github.com/bz2vsr/bz2-watchbot/internal/paths"
)

// DefaultAPIURL is the public session listing endpoint for Battlezone II:
// Combat Commander.
const DefaultAPIURL = "https://multiplayersessionlist.iondriver.com/api/1.0/sessions?game=bigboat:battlezone_combat_commander"

// DefaultMaplistURL is the published VSR map metadata list.
const DefaultMaplistURL = "https://bz2vsr.com/data/vsrmaplist.json"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// API holds upstream session listing settings.
	API APIConfig `toml:"api"`
	// Roster holds the monitored player roster and exclusion filters.
	Roster RosterConfig `toml:"roster"`
	// Destinations lists the Discord webhook channels sessions mirror into.
	Destinations []DestinationConfig `toml:"destinations"`
	// Maplist holds VSR map metadata source settings.
	Maplist MaplistConfig `toml:"maplist"`
	// Display holds link bases used in rendered messages.
	Display DisplayConfig `toml:"display"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// APIConfig holds upstream session listing settings.
type APIConfig struct {
	// URL is the session listing endpoint.
	URL string `toml:"url"`
	// PollIntervalSeconds is the poll cycle interval.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// TimeoutSeconds bounds each listing request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// RosterConfig holds the monitored player roster.
type RosterConfig struct {
	// Match selects relevance: "host" tracks sessions hosted by a roster
	// player, "any" tracks sessions with any roster player present.
	Match string `toml:"match"`
	// SteamIDs and GogIDs identify the monitored players.
	SteamIDs []string `toml:"steam_ids"`
	GogIDs   []string `toml:"gog_ids"`
	// ExcludeSessionNames and ExcludeGameModes are glob patterns; matching
	// sessions are never tracked. Case-insensitive.
	ExcludeSessionNames []string `toml:"exclude_session_names"`
	ExcludeGameModes    []string `toml:"exclude_game_modes"`
}

// DestinationConfig holds one Discord webhook destination.
type DestinationConfig struct {
	// ID is the destination's stable identifier, used in the message
	// directory and logs. Must be unique.
	ID string `toml:"id"`
	// WebhookURL is the full Discord webhook URL.
	WebhookURL string `toml:"webhook_url"`
	// MentionTag is appended to new-game announcements (e.g. "@here" or a
	// role mention). Empty disables pings for this destination.
	MentionTag string `toml:"mention_tag,omitempty"`
}

// MaplistConfig holds settings for where VSR map metadata is loaded from.
type MaplistConfig struct {
	// Source selects the map list source: "url", "file", or "none".
	Source string `toml:"source"`
	// URL is the map list endpoint for source "url".
	URL string `toml:"url,omitempty"`
	// File is the local file path for source "file". File sources are
	// watched and hot-reloaded on change.
	File string `toml:"file,omitempty"`
}

// DisplayConfig holds link bases used in rendered messages.
type DisplayConfig struct {
	// JoinURLBase prefixes the encoded NAT ID to build the join link.
	JoinURLBase string `toml:"join_url_base"`
	// BrowseMapsURL is the map browser linked from the map details block.
	BrowseMapsURL string `toml:"browse_maps_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults. The
// roster and destinations start empty; the daemon refuses to run until at
// least one destination is configured.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		API: APIConfig{
			URL:                 DefaultAPIURL,
			PollIntervalSeconds: 30,
			TimeoutSeconds:      10,
		},
		Roster: RosterConfig{
			Match:               "host",
			SteamIDs:            []string{},
			GogIDs:              []string{},
			ExcludeSessionNames: []string{},
			ExcludeGameModes:    []string{},
		},
		Maplist: MaplistConfig{
			Source: "url",
			URL:    DefaultMaplistURL,
		},
		Display: DisplayConfig{
			JoinURLBase:   "https://join.bz2vsr.com/",
			BrowseMapsURL: "https://bz2vsr.com/maps/",
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns a Config suitable for generating config.default.toml.
// For this project all defaults are good examples; destinations are shown as
// commented alternatives by the generator.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
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

	version := PeekVersion(data)

	// Apply migrations if needed
	shouldMigrate := migrate.Config.NeedsMigration(version)
	if shouldMigrate {
		// Write backup before migration
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// Re-save after migration
	if shouldMigrate {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
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
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if err := validateHTTPURL(c.API.URL); err != nil {
		return fmt.Errorf("invalid api.url: %w", err)
	}
	if c.API.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.API.PollIntervalSeconds)
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be > 0, got %d", c.API.TimeoutSeconds)
	}

	switch c.Roster.Match {
	case "host", "any":
	default:
		return fmt.Errorf("invalid roster.match %q: must be host or any", c.Roster.Match)
	}
	for _, pat := range c.Roster.ExcludeSessionNames {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid exclude_session_names pattern %q", pat)
		}
	}
	for _, pat := range c.Roster.ExcludeGameModes {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid exclude_game_modes pattern %q", pat)
		}
	}

	if len(c.Destinations) == 0 {
		return fmt.Errorf("no destinations configured: add at least one [[destinations]] entry")
	}
	seen := make(map[string]bool, len(c.Destinations))
	for i, d := range c.Destinations {
		if d.ID == "" {
			return fmt.Errorf("destinations[%d]: id must not be empty", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate destination id %q", d.ID)
		}
		seen[d.ID] = true
		if err := validateHTTPURL(d.WebhookURL); err != nil {
			return fmt.Errorf("destination %q: invalid webhook_url: %w", d.ID, err)
		}
	}

	switch c.Maplist.Source {
	case "url":
		if err := validateHTTPURL(c.Maplist.URL); err != nil {
			return fmt.Errorf("invalid maplist.url: %w", err)
		}
	case "file":
		if c.Maplist.File == "" {
			return fmt.Errorf("maplist.source is file but maplist.file is empty")
		}
	case "none":
	default:
		return fmt.Errorf("invalid maplist.source %q: must be url, file, or none", c.Maplist.Source)
	}

	if err := validateHTTPURL(c.Display.JoinURLBase); err != nil {
		return fmt.Errorf("invalid display.join_url_base: %w", err)
	}
	if err := validateHTTPURL(c.Display.BrowseMapsURL); err != nil {
		return fmt.Errorf("invalid display.browse_maps_url: %w", err)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}

// validateHTTPURL rejects empty, unparseable, or non-HTTP(S) URLs.
func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}
