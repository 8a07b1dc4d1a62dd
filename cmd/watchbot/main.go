// Package main implements the watchbot daemon, which polls the multiplayer
// session listing, tracks games involving monitored players, and mirrors each
// one into Discord channels via webhooks.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	rootpkg "github.com/bz2vsr/bz2-watchbot"
	"github.com/bz2vsr/bz2-watchbot/internal/api"
	"github.com/bz2vsr/bz2-watchbot/internal/config"
	"github.com/bz2vsr/bz2-watchbot/internal/directory"
	"github.com/bz2vsr/bz2-watchbot/internal/logger"
	"github.com/bz2vsr/bz2-watchbot/internal/maplist"
	"github.com/bz2vsr/bz2-watchbot/internal/paths"
	"github.com/bz2vsr/bz2-watchbot/internal/render"
	"github.com/bz2vsr/bz2-watchbot/internal/track"
	"github.com/bz2vsr/bz2-watchbot/internal/webhook"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is stamped at release time via -ldflags "-X main.version=...".
// Bare `go build` binaries keep "dev" and resolveVersion fills in the VCS
// revision the toolchain embeds, so dev builds still log something useful
// without git at runtime.
var version = "dev"

// resolveVersion returns [version] as-is when ldflags set it, otherwise a
// "dev+<hash>" tag built from the embedded VCS revision and dirty flag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token written alongside the
// PID. [removePID] checks it so one instance cannot delete a PID file that a
// different instance owns.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID opens the PID file, takes the advisory lock, and writes
// "PID:TOKEN". The returned handle must stay open for the daemon's lifetime
// to keep the lock held; hand it to [removePID] on shutdown.
func writePID(paths DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(paths.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the lock, closes the handle, and removes the PID file
// only when the stored token matches this instance's token.
func removePID(paths DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(paths.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(paths.PID())
	}
}

// checkStalePID probes for a running instance by trying to take the PID
// file's lock. A failed lock means another instance holds it and its PID is
// reported; a successful lock means the previous owner died, so the stale
// file is removed.
func checkStalePID(paths DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(paths.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(paths.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired: the previous owner is gone. Drop the stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(paths.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Config Builders
// ///////////////////////////////////////////////

// buildPredicate assembles the roster matcher from the loaded [config.Config].
func buildPredicate(cfg *config.Config) (*track.Predicate, error) {
	return track.NewPredicate(track.PredicateConfig{
		Match:               cfg.Roster.Match,
		SteamIDs:            cfg.Roster.SteamIDs,
		GogIDs:              cfg.Roster.GogIDs,
		ExcludeSessionNames: cfg.Roster.ExcludeSessionNames,
		ExcludeGameModes:    cfg.Roster.ExcludeGameModes,
	})
}

// buildMaplistSource creates a [maplist.SourceConfig] from the loaded
// [config.Config].
func buildMaplistSource(cfg *config.Config) maplist.SourceConfig {
	return maplist.SourceConfig{
		Source: cfg.Maplist.Source,
		URL:    cfg.Maplist.URL,
		File:   cfg.Maplist.File,
	}
}

// buildDestinations splits the configured destinations into the ordered list
// the reconciler plans over and the ID-to-URL map the dispatcher delivers to.
func buildDestinations(cfg *config.Config) ([]track.Destination, map[string]string) {
	dests := make([]track.Destination, 0, len(cfg.Destinations))
	urls := make(map[string]string, len(cfg.Destinations))
	for _, d := range cfg.Destinations {
		dests = append(dests, track.Destination{ID: d.ID, Mention: d.MentionTag})
		urls[d.ID] = d.WebhookURL
	}
	return dests, urls
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for watchbot data,
// typically ~/.watchbot. Falls back to ./.watchbot if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, cache, and logs")
	flag.Parse()

	dataPaths := DataPaths{Root: *dataDir}

	if err := os.MkdirAll(dataPaths.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if alive, pid := checkStalePID(dataPaths); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if _, err := os.Stat(dataPaths.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dataPaths.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dataPaths.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser, err := logger.NewLogger(dataPaths.Log(), logLevel, cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("watchbot starting",
		"version", resolveVersion(),
		"data_dir", dataPaths.Root,
		"poll_interval_s", cfg.API.PollIntervalSeconds,
		"destinations", len(cfg.Destinations),
	)

	token := pidToken()
	pidFile, err := writePID(dataPaths, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(dataPaths, token, pidFile)

	maps, mapsErr := maplist.Fetch(buildMaplistSource(cfg), dataPaths.Root)
	if mapsErr != nil {
		if maps == nil {
			slog.Warn("no map list available, running without map metadata", "error", mapsErr)
		} else {
			slog.Warn("map list loaded from cache fallback", "error", mapsErr)
		}
	}
	if maps != nil {
		slog.Info("map list loaded", "maps", maps.Len())
	}

	pred, err := buildPredicate(cfg)
	if err != nil {
		slog.Error("invalid roster configuration", "error", err)
		os.Exit(1)
	}

	renderer := render.New(render.Options{
		JoinURLBase:   cfg.Display.JoinURLBase,
		BrowseMapsURL: cfg.Display.BrowseMapsURL,
	}, maps)

	dests, urls := buildDestinations(cfg)
	dir := directory.New()
	reconciler := track.NewReconciler(renderer, dests, dir, pred)

	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	client := api.NewClient(cfg.API.URL, timeout)
	dispatcher := webhook.NewDispatcher(webhook.NewClient(timeout), urls, dir)

	var watcher *maplist.Watcher
	if cfg.Maplist.Source == "file" {
		watcher, err = maplist.NewWatcher(cfg.Maplist.File)
		if err != nil {
			slog.Error("failed to watch maplist file", "path", cfg.Maplist.File, "error", err)
			os.Exit(1)
		}
		defer watcher.Close()
		if watcher.Polling() {
			slog.Info("using polling mode for maplist watching")
		}
	}

	run(cfg, client, reconciler, dispatcher, dir, renderer, watcher, dataPaths)
}

// ///////////////////////////////////////////////
// Event Loop
// ///////////////////////////////////////////////

// run is the main event loop. Each poll tick fetches a snapshot, reconciles it
// against the retained records, and dispatches the resulting intent plan. A
// maplist watcher event hot-reloads map metadata. The loop runs until an OS
// interrupt/terminate signal is received.
func run(
	cfg *config.Config,
	client *api.Client,
	reconciler *track.Reconciler,
	dispatcher *webhook.Dispatcher,
	dir *directory.Directory,
	renderer *render.Renderer,
	watcher *maplist.Watcher,
	dataPaths DataPaths,
) {
	pollInterval := time.Duration(cfg.API.PollIntervalSeconds) * time.Second

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	sigCh := signalChannel()

	// A nil watcher yields a nil channel, which never fires.
	var watcherEvents <-chan struct{}
	if watcher != nil {
		watcherEvents = watcher.Events()
	}

	records := make(map[string]*track.Record)
	records = runCycle(pollInterval, client, reconciler, dispatcher, dir, records)

	for {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			return

		case <-watcherEvents:
			reloadMaplist(cfg, renderer, dataPaths)

		case <-pollTicker.C:
			records = runCycle(pollInterval, client, reconciler, dispatcher, dir, records)
		}
	}
}

// runCycle executes one poll cycle: fetch, reconcile, dispatch, retire. A
// failed fetch skips the cycle and keeps the previous records, so transient
// upstream outages never end tracked sessions.
func runCycle(
	pollInterval time.Duration,
	client *api.Client,
	reconciler *track.Reconciler,
	dispatcher *webhook.Dispatcher,
	dir *directory.Directory,
	records map[string]*track.Record,
) map[string]*track.Record {
	ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
	defer cancel()

	snap, err := client.FetchSnapshot(ctx)
	if err != nil {
		slog.Warn("snapshot fetch failed, skipping cycle", "error", err)
		return records
	}

	res := reconciler.Reconcile(records, snap)

	for _, diff := range res.Diffs {
		slog.Info("session change", "change", diff)
	}

	if len(res.Intents) > 0 {
		slog.Debug("dispatching intent plan", "intents", len(res.Intents))
		dispatcher.Dispatch(ctx, res.Intents)
	}

	// Retire directory slots for sessions that left tracking. Done after
	// dispatch so the terminal edits saw their message IDs, and regardless of
	// edit outcome so a vanished message cannot pin a dead session.
	for _, id := range res.Ended {
		dir.ClearSession(id)
	}

	logger.Trace(slog.Default(), "cycle complete",
		"sessions", len(snap.Sessions),
		"tracked", len(res.Next),
		"intents", len(res.Intents),
	)

	return res.Next
}

// reloadMaplist re-reads the map list after a file change and swaps it into
// the renderer. A failed reload keeps the previous list.
func reloadMaplist(cfg *config.Config, renderer *render.Renderer, dataPaths DataPaths) {
	maps, err := maplist.Fetch(buildMaplistSource(cfg), dataPaths.Root)
	if maps == nil {
		slog.Warn("maplist reload failed, keeping previous list", "error", err)
		return
	}
	renderer.SetMaplist(maps)
	slog.Info("map list reloaded", "maps", maps.Len())
}
