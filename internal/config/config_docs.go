package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "api.poll_interval_seconds")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated config.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version — do not edit.",
	},

	// ── API ───────────────────────────────────────────────────────
	"api.url": {
		Comment: "Session listing endpoint polled for multiplayer games.",
	},
	"api.poll_interval_seconds": {
		Comment: "How often to poll the session listing (seconds).",
	},
	"api.timeout_seconds": {
		Comment: "Per-request timeout for listing fetches (seconds).\nA failed or slow poll is skipped; the next tick tries again.",
	},

	// ── Roster ────────────────────────────────────────────────────
	"roster.match": {
		Comment: "Which sessions to track. Options: \"host\", \"any\"\n  host: sessions hosted by a roster player (first player slot)\n  any:  sessions with any roster player present",
		Alternatives: []string{
			`match = "any"`,
		},
	},
	"roster.steam_ids": {
		Comment: "Monitored players by platform ID. A session is tracked when the\nroster matches per the mode above.",
		Alternatives: []string{
			`# steam_ids = ["76561198000000001", "76561198000000002"]`,
		},
	},
	"roster.gog_ids": {
		Alternatives: []string{
			`# gog_ids = ["48628349587251645"]`,
		},
	},
	"roster.exclude_session_names": {
		Comment: "Never track sessions matching these glob patterns (case-insensitive).",
		Alternatives: []string{
			`# exclude_session_names = ["*test*", "private *"]`,
		},
	},
	"roster.exclude_game_modes": {
		Alternatives: []string{
			`# exclude_game_modes = ["DM"]`,
		},
	},

	// ── Maplist ───────────────────────────────────────────────────
	"maplist.source": {
		Comment: "Where to get VSR map metadata for the map details block.\nOptions: \"url\", \"file\", \"none\"\n  url:  fetch from a remote list (cached on disk for offline fallback)\n  file: read a local JSON file, hot-reloaded on change\n  none: omit map metadata from messages",
		Alternatives: []string{
			`source = "file"`,
			`source = "none"`,
		},
	},
	"maplist.url": {
		Comment: "Map list endpoint (for source = \"url\").",
	},
	"maplist.file": {
		Comment: "Local file path (for source = \"file\").",
		Alternatives: []string{
			`# file = "/path/to/vsrmaplist.json"`,
		},
	},

	// ── Display ───────────────────────────────────────────────────
	"display.join_url_base": {
		Comment: "Base URL for one-click join links; the session's encoded NAT ID is appended.",
	},
	"display.browse_maps_url": {
		Comment: "Map browser linked from the map details block.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
			`level = "warn"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},
}

// DestinationsExample is the commented-out [[destinations]] block appended to
// the generated config.default.toml. Array-of-table sections with no entries
// are dropped by the TOML encoder, so the generator emits this explicitly.
var DestinationsExample = []string{
	"# Discord channels to mirror tracked sessions into. Each destination gets",
	"# its own continuously-updated message per session. mention_tag is pinged",
	"# on new-game announcements; omit it for silent posts.",
	"#",
	"# [[destinations]]",
	`# id = "main"`,
	`# webhook_url = "https://discord.com/api/webhooks/ID/TOKEN"`,
	`# mention_tag = "@here"`,
	"#",
	"# [[destinations]]",
	`# id = "testing"`,
	`# webhook_url = "https://discord.com/api/webhooks/ID2/TOKEN2"`,
}
