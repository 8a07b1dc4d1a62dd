package maplist

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// timeAfter bounds watcher tests; polling mode fires at 2s intervals so 5s
// is comfortably past one poll tick.
func timeAfter(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(5 * time.Second)
}

const sampleList = `[
	{"Name": "Dunes", "File": "vsrdunes25.bzn", "Pools": 8, "Loose": 20,
	 "Size": {"baseToBase": "1200", "formattedSize": "2048 x 2048"}, "Author": "Avatar"},
	{"Name": "Core", "File": "vsrcore.bzn", "Pools": 6, "Loose": 10,
	 "Size": {"baseToBase": "900", "formattedSize": "1024 x 1024"}, "Author": "Sly"}
]`

// ///////////////////////////////////////////////
// CleanMapFile Tests
// ///////////////////////////////////////////////

func TestCleanMapFile(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"vsrdunes25.bzn", "vsrdunes"},
		{"VSRDunes25.BZN", "vsrdunes"},
		{"vsrcore.bzn", "vsrcore"},
		{"vsrcore", "vsrcore"},
		{"plainmap25", "plainmap"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanMapFile(tt.input); got != tt.want {
				t.Errorf("CleanMapFile(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Lookup Tests
// ///////////////////////////////////////////////

func TestLookup(t *testing.T) {
	entries, err := parseBody([]byte(sampleList))
	if err != nil {
		t.Fatalf("parseBody: %v", err)
	}
	l := New(entries)

	e, ok := l.Lookup("vsrdunes25.bzn")
	if !ok {
		t.Fatal("Lookup(vsrdunes25.bzn) not found")
	}
	if e.Author != "Avatar" || e.Pools != 8 {
		t.Errorf("entry = %+v, want Avatar/8 pools", e)
	}

	// The stored file name and the session's map file both clean to the
	// same key, regardless of case and suffix variants.
	if _, ok := l.Lookup("VSRDUNES.bzn"); !ok {
		t.Error("Lookup should be case-insensitive and suffix-tolerant")
	}

	if _, ok := l.Lookup("unknownmap.bzn"); ok {
		t.Error("Lookup(unknownmap) should miss")
	}
}

func TestNilListLookup(t *testing.T) {
	var l *List
	if _, ok := l.Lookup("anything"); ok {
		t.Error("nil list Lookup should miss")
	}
	if l.Len() != 0 {
		t.Error("nil list Len should be 0")
	}
}

// ///////////////////////////////////////////////
// Fetch Tests
// ///////////////////////////////////////////////

func TestFetchFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleList))
	}))
	defer server.Close()

	dir := t.TempDir()
	l, err := Fetch(SourceConfig{Source: "url", URL: server.URL}, dir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}

	// A successful fetch populates the cache.
	if _, err := ReadCache(dir); err != nil {
		t.Errorf("cache not written: %v", err)
	}
}

func TestFetchURLFallsBackToCache(t *testing.T) {
	dir := t.TempDir()
	entries, _ := parseBody([]byte(sampleList))
	if err := WriteCache(dir, entries); err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	l, err := Fetch(SourceConfig{Source: "url", URL: server.URL}, dir)
	if err == nil {
		t.Fatal("expected non-nil error signalling cache fallback")
	}
	if l == nil || l.Len() != 2 {
		t.Fatalf("expected cached list with 2 entries, got %v", l)
	}
}

func TestFetchAllSourcesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	l, err := Fetch(SourceConfig{Source: "url", URL: server.URL}, t.TempDir())
	if err == nil {
		t.Fatal("expected error when primary and cache both fail")
	}
	if l != nil {
		t.Errorf("expected nil list, got %v", l)
	}
}

func TestFetchFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vsrmaplist.json")
	if err := os.WriteFile(path, []byte(sampleList), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Fetch(SourceConfig{Source: "file", File: path}, dir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestFetchSourceNone(t *testing.T) {
	l, err := Fetch(SourceConfig{Source: "none"}, t.TempDir())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestFetchEmptyPrimary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := Fetch(SourceConfig{Source: "url", URL: server.URL}, t.TempDir()); err == nil {
		t.Fatal("expected error for empty primary list with no cache")
	}
}

// ///////////////////////////////////////////////
// Watcher Tests
// ///////////////////////////////////////////////

func TestWatcherSignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vsrmaplist.json")
	if err := os.WriteFile(path, []byte(sampleList), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(sampleList), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Events():
	case <-timeAfter(t):
		t.Fatal("no event received after file write")
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vsrmaplist.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
