// Package maplist fetches, caches, and looks up VSR map metadata.
//
// Map metadata (pool count, loose scrap, base-to-base distance, author) is
// cosmetic: the renderer attaches it to the map details block when present.
// The list can come from a remote URL or a local file. For both sources a
// fallback strategy applies: primary source, then on-disk cache. If both
// fail the daemon runs without map metadata.
//
// [Fetch] is the main entry point. A file source can additionally be watched
// for changes with [NewWatcher] so local edits are picked up live.
package maplist

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/bz2vsr/bz2-watchbot/internal/atomicfile"
	"github.com/bz2vsr/bz2-watchbot/internal/paths"
)

// httpClient is a lazily-initialized retryablehttp client shared across all
// map list fetches. Initialized once via httpClientOnce.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client, initializing it on
// first call.
func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 10 * time.Second
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// SourceConfig describes where the map list is loaded from.
// Built from config.MaplistConfig at startup.
type SourceConfig struct {
	Source string // "url", "file", "none"
	URL    string
	File   string
}

// Entry holds the VSR metadata for one map.
type Entry struct {
	Name   string  `json:"Name"`
	File   string  `json:"File"`
	Pools  int     `json:"Pools"`
	Loose  int     `json:"Loose"`
	Size   MapSize `json:"Size"`
	Author string  `json:"Author"`
}

// MapSize holds the map dimension strings as published in the list.
type MapSize struct {
	BaseToBase    string `json:"baseToBase"`
	FormattedSize string `json:"formattedSize"`
}

// List is an immutable lookup table keyed by cleaned map file name.
type List struct {
	byFile map[string]Entry
}

// New builds a List from raw entries, indexing each by its cleaned file name.
func New(entries []Entry) *List {
	l := &List{byFile: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		l.byFile[CleanMapFile(e.File)] = e
	}
	return l
}

// Lookup returns the metadata for a session's map file, applying the same
// cleanup as [CleanMapFile] before matching.
func (l *List) Lookup(mapFile string) (Entry, bool) {
	if l == nil {
		return Entry{}, false
	}
	e, ok := l.byFile[CleanMapFile(mapFile)]
	return e, ok
}

// Len returns the number of maps in the list.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.byFile)
}

// CleanMapFile normalizes an upstream map file name for lookup and URL use:
// lowercase, the .bzn extension stripped, and the trailing "25" variant
// suffix removed.
func CleanMapFile(file string) string {
	name := strings.ToLower(file)
	name = strings.TrimSuffix(name, ".bzn")
	name = strings.TrimSuffix(name, "25")
	return name
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Fetch loads the map list based on the source config.
//
// For "url" and "file" sources, uses fallback: primary -> cache. For source
// "none", returns an empty list so callers need no special casing.
//
// Returns nil with an error when both primary and cache sources fail.
// The returned error is non-nil when the data came from a cache fallback.
func Fetch(src SourceConfig, cacheDir string) (*List, error) {
	switch src.Source {
	case "none":
		return New(nil), nil
	case "file":
		return fetchWithFallback(cacheDir, func() ([]Entry, error) {
			return fetchFromFile(src.File)
		})
	default: // "url"
		if src.URL == "" {
			return nil, fmt.Errorf("maplist source is url but no URL configured")
		}
		url := src.URL
		return fetchWithFallback(cacheDir, func() ([]Entry, error) {
			return fetchFromURL(url)
		})
	}
}

// ///////////////////////////////////////////////
// Fallback Logic
// ///////////////////////////////////////////////

// fetchWithFallback attempts the primary fetch, then cache.
// Returns nil with an error when both sources fail.
func fetchWithFallback(cacheDir string, primary func() ([]Entry, error)) (*List, error) {
	entries, err := primary()
	if err == nil {
		if len(entries) == 0 {
			return nil, fmt.Errorf("primary source returned an empty map list")
		}
		if cacheErr := WriteCache(cacheDir, entries); cacheErr != nil {
			slog.Warn("failed to write maplist cache", "error", cacheErr)
		}
		return New(entries), nil
	}
	slog.Warn("failed to fetch map list from primary source, trying cache", "error", err)

	entries, cacheErr := ReadCache(cacheDir)
	if cacheErr == nil {
		return New(entries), fmt.Errorf("using cached map list: primary fetch failed: %w", err)
	}
	slog.Warn("no maplist cache available", "error", cacheErr)

	return nil, fmt.Errorf("all maplist sources failed: primary: %w; cache: %w", err, cacheErr)
}

// fetchFromURL downloads the map list from the given URL and parses it.
func fetchFromURL(url string) ([]Entry, error) {
	const maxResponseBytes = 10 << 20 // 10 MiB

	client := getHTTPClient()

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, maxResponseBytes)
	}

	return parseBody(body)
}

// fetchFromFile reads the map list from a local file and parses it.
func fetchFromFile(path string) ([]Entry, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read maplist file %s: %w", path, err)
	}
	return parseBody(body)
}

// parseBody parses the published format: a flat JSON array of map entries.
func parseBody(body []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing map list: %w", err)
	}
	return entries, nil
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

// WriteCache writes map list entries to the cache file in the given directory.
func WriteCache(cacheDir string, entries []Entry) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("creating maplist cache directory: %w", err)
	}
	path := filepath.Join(cacheDir, paths.MaplistCacheFile)
	return atomicfile.WriteJSON(path, entries, 0o644)
}

// ReadCache reads map list entries from the cache file in the given directory.
func ReadCache(cacheDir string) ([]Entry, error) {
	path := filepath.Join(cacheDir, paths.MaplistCacheFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading maplist cache: %w", err)
	}
	return parseBody(b)
}
