package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// sampleSnapshot is a trimmed upstream document exercising the fields the
// tracker and renderer rely on.
const sampleSnapshot = `{
	"Sessions": [
		{
			"ID": "sess-1",
			"Name": "Evening Strat",
			"Players": [
				{
					"Name": "Domakus",
					"IDs": {"Steam": {"ID": "76561198006115793"}},
					"Team": {"ID": 1},
					"Stats": {"Kills": 3, "Deaths": 1, "Score": 30}
				},
				{
					"Name": "Xohm",
					"IDs": {"Gog": {"ID": "gog-123"}},
					"Team": {"SubTeam": {"ID": 2}},
					"Stats": {"Kills": 0, "Deaths": 0, "Score": 0}
				}
			],
			"PlayerCount": {"Player": 2},
			"PlayerTypes": [{"Max": 10}],
			"Level": {
				"Name": "VSR: Dunes",
				"MapFile": "vsrdunes25.bzn",
				"GameMode": {"ID": "STRAT"},
				"Image": "https://example.com/dunes.png"
			},
			"Status": {"State": "PreGame", "IsLocked": false},
			"Time": {"Seconds": 300},
			"Address": {"NAT": "a@b-c_d", "NAT_TYPE": "Full Cone"},
			"Game": {"Mod": "0"}
		}
	],
	"Mods": {"0": {"Name": "VSR", "Url": "https://example.com/vsr"}},
	"DataCache": {
		"Players": {
			"IDs": {
				"Steam": {
					"76561198006115793": {"Nickname": "Doma", "ProfileUrl": "https://steam.example/doma"}
				},
				"Gog": {
					"gog-123": {"Username": "XohmG", "ProfileUrl": "https://gog.example/xohm"}
				}
			}
		}
	}
}`

func TestFetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleSnapshot))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}

	if len(snap.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d, want 1", len(snap.Sessions))
	}
	s := snap.Sessions[0]
	if s.ID != "sess-1" {
		t.Errorf("ID = %q, want %q", s.ID, "sess-1")
	}
	if s.Status.State != StatePreGame {
		t.Errorf("State = %q, want %q", s.Status.State, StatePreGame)
	}
	if s.MaxPlayers() != 10 {
		t.Errorf("MaxPlayers() = %d, want 10", s.MaxPlayers())
	}
	if s.Address.NATType != "Full Cone" {
		t.Errorf("NATType = %q, want %q", s.Address.NATType, "Full Cone")
	}
	if snap.Mods["0"].Name != "VSR" {
		t.Errorf("Mods[0].Name = %q, want VSR", snap.Mods["0"].Name)
	}
}

func TestFetchSnapshotNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	if _, err := c.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestFetchSnapshotMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Sessions": [`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	if _, err := c.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestFetchSnapshotUnreachable(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(url, 1*time.Second)
	if _, err := c.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected error for unreachable upstream")
	}
}

// ///////////////////////////////////////////////
// Type Helper Tests
// ///////////////////////////////////////////////

func TestPlayerTeamID(t *testing.T) {
	one, two := 1, 2
	tests := []struct {
		name string
		p    Player
		want int
	}{
		{"top-level ID", Player{Team: Team{ID: &one}}, 1},
		{"subteam fallback", Player{Team: Team{SubTeam: &SubTeam{ID: &two}}}, 2},
		{"neither", Player{}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.TeamID(); got != tt.want {
				t.Errorf("TeamID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProfileFor(t *testing.T) {
	var snap Snapshot
	snap.DataCache.Players.IDs.Steam = map[string]SteamProfile{
		"s1": {Nickname: "SteamNick", ProfileURL: "https://steam/s1"},
	}
	snap.DataCache.Players.IDs.Gog = map[string]GogProfile{
		"g1": {Username: "GogUser", ProfileURL: "https://gog/g1"},
	}

	tests := []struct {
		name     string
		p        Player
		wantName string
		wantURL  string
	}{
		{
			"steam preferred",
			Player{Name: "fallback", IDs: PlayerIDs{Steam: &PlatformID{ID: "s1"}, Gog: &PlatformID{ID: "g1"}}},
			"SteamNick", "https://steam/s1",
		},
		{
			"gog fallback",
			Player{Name: "fallback", IDs: PlayerIDs{Gog: &PlatformID{ID: "g1"}}},
			"GogUser", "https://gog/g1",
		},
		{
			"uncached steam id falls back to session name",
			Player{Name: "fallback", IDs: PlayerIDs{Steam: &PlatformID{ID: "unknown"}}},
			"fallback", "",
		},
		{
			"no platform ids",
			Player{Name: "fallback"},
			"fallback", "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, url := snap.ProfileFor(&tt.p)
			if name != tt.wantName || url != tt.wantURL {
				t.Errorf("ProfileFor() = (%q, %q), want (%q, %q)", name, url, tt.wantName, tt.wantURL)
			}
		})
	}
}

func TestSessionHost(t *testing.T) {
	empty := Session{}
	if empty.Host() != nil {
		t.Error("Host() on empty session should be nil")
	}

	s := Session{Players: []Player{{Name: "first"}, {Name: "second"}}}
	if host := s.Host(); host == nil || host.Name != "first" {
		t.Errorf("Host() = %v, want first player", host)
	}
}
