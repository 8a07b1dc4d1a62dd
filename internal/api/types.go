// Package api fetches and models the multiplayer session list published by
// the upstream session listing service.
//
// A [Snapshot] is the full document returned by one poll: the session array,
// the mod metadata map, and the player profile cache. Snapshots are
// immutable once fetched; the tracker only ever replaces its retained copy,
// never mutates one.
package api

// Lifecycle states reported by the upstream service in Status.State.
const (
	StatePreGame = "PreGame"
	StateInGame  = "InGame"
)

// ///////////////////////////////////////////////
// Snapshot
// ///////////////////////////////////////////////

// Snapshot is one poll's view of the upstream world state.
type Snapshot struct {
	// Sessions lists every game session currently known upstream.
	Sessions []Session `json:"Sessions"`
	// Mods maps mod IDs (Game.Mod) to their display metadata.
	Mods map[string]Mod `json:"Mods"`
	// DataCache carries player profile lookups keyed by platform ID.
	DataCache DataCache `json:"DataCache"`
}

// Mod describes one game mod referenced by sessions.
type Mod struct {
	Name string `json:"Name"`
	URL  string `json:"Url"`
}

// DataCache holds the upstream's cached profile data.
type DataCache struct {
	Players struct {
		IDs struct {
			Steam map[string]SteamProfile `json:"Steam"`
			Gog   map[string]GogProfile   `json:"Gog"`
		} `json:"IDs"`
	} `json:"Players"`
}

// SteamProfile is a cached Steam community profile.
type SteamProfile struct {
	Nickname   string `json:"Nickname"`
	ProfileURL string `json:"ProfileUrl"`
}

// GogProfile is a cached GOG Galaxy profile.
type GogProfile struct {
	Username   string `json:"Username"`
	ProfileURL string `json:"ProfileUrl"`
}

// ///////////////////////////////////////////////
// Session
// ///////////////////////////////////////////////

// Session is one externally-reported multiplayer game instance. The ID is
// opaque but stable across polls for as long as the session exists.
type Session struct {
	ID          string       `json:"ID"`
	Name        string       `json:"Name"`
	Players     []Player     `json:"Players"`
	PlayerCount PlayerCount  `json:"PlayerCount"`
	PlayerTypes []PlayerType `json:"PlayerTypes"`
	Level       Level        `json:"Level"`
	Status      Status       `json:"Status"`
	Time        GameTime     `json:"Time"`
	Address     Address      `json:"Address"`
	Game        GameInfo     `json:"Game"`
}

// PlayerCount holds the current player tally.
type PlayerCount struct {
	Player int `json:"Player"`
}

// PlayerType holds slot limits for one participant class.
type PlayerType struct {
	Max int `json:"Max"`
}

// Level describes the map and game mode the session is running.
type Level struct {
	Name     string   `json:"Name"`
	MapFile  string   `json:"MapFile"`
	GameMode GameMode `json:"GameMode"`
	Image    string   `json:"Image"`
}

// GameMode identifies the mode (e.g. "STRAT", "MPI", "DM").
type GameMode struct {
	ID string `json:"ID"`
}

// Status holds the session lifecycle state and lock flag.
type Status struct {
	State    string `json:"State"`
	IsLocked bool   `json:"IsLocked"`
}

// GameTime holds the elapsed session time.
type GameTime struct {
	Seconds int `json:"Seconds"`
}

// Address holds NAT traversal info used to build the join link.
type Address struct {
	NAT     string `json:"NAT"`
	NATType string `json:"NAT_TYPE"`
}

// GameInfo references the mod the session is running.
type GameInfo struct {
	Mod string `json:"Mod"`
}

// Host returns the session host, by upstream convention the first entry in
// the player array. Returns nil for a session with no players.
func (s *Session) Host() *Player {
	if len(s.Players) == 0 {
		return nil
	}
	return &s.Players[0]
}

// MaxPlayers returns the player slot limit, or 0 when unreported.
func (s *Session) MaxPlayers() int {
	if len(s.PlayerTypes) == 0 {
		return 0
	}
	return s.PlayerTypes[0].Max
}

// ///////////////////////////////////////////////
// Player
// ///////////////////////////////////////////////

// Player is one roster entry inside a session.
type Player struct {
	Name  string    `json:"Name"`
	IDs   PlayerIDs `json:"IDs"`
	Team  Team      `json:"Team"`
	Stats Stats     `json:"Stats"`
}

// PlayerIDs holds the player's platform identities. Either may be absent.
type PlayerIDs struct {
	Steam *PlatformID `json:"Steam"`
	Gog   *PlatformID `json:"Gog"`
}

// PlatformID is a single platform account reference.
type PlatformID struct {
	ID string `json:"ID"`
}

// Team holds the player's team assignment. Some mods report the slot under
// SubTeam instead of the top-level ID.
type Team struct {
	ID      *int     `json:"ID"`
	SubTeam *SubTeam `json:"SubTeam"`
}

// SubTeam is the nested team reference used by some mods.
type SubTeam struct {
	ID *int `json:"ID"`
}

// Stats holds the player's in-game score line.
type Stats struct {
	Kills  int `json:"Kills"`
	Deaths int `json:"Deaths"`
	Score  int `json:"Score"`
}

// SteamID returns the player's Steam ID, or "" if absent.
func (p *Player) SteamID() string {
	if p.IDs.Steam == nil {
		return ""
	}
	return p.IDs.Steam.ID
}

// GogID returns the player's GOG ID, or "" if absent.
func (p *Player) GogID() string {
	if p.IDs.Gog == nil {
		return ""
	}
	return p.IDs.Gog.ID
}

// HasPlatformID reports whether the player carries at least one platform
// identity. Sessions whose host has none are never tracked.
func (p *Player) HasPlatformID() bool {
	return p.SteamID() != "" || p.GogID() != ""
}

// TeamID returns the player's team number, preferring the top-level ID and
// falling back to SubTeam. Returns -1 when neither is reported.
func (p *Player) TeamID() int {
	if p.Team.ID != nil {
		return *p.Team.ID
	}
	if p.Team.SubTeam != nil && p.Team.SubTeam.ID != nil {
		return *p.Team.SubTeam.ID
	}
	return -1
}

// ///////////////////////////////////////////////
// Profile Resolution
// ///////////////////////////////////////////////

// ProfileFor resolves a player's display name and profile URL from the
// snapshot's data cache, Steam first, then GOG. Falls back to the in-session
// name with an empty URL when no cached profile exists.
func (s *Snapshot) ProfileFor(p *Player) (name, profileURL string) {
	if id := p.SteamID(); id != "" {
		if prof, ok := s.DataCache.Players.IDs.Steam[id]; ok && prof.Nickname != "" {
			return prof.Nickname, prof.ProfileURL
		}
	}
	if id := p.GogID(); id != "" {
		if prof, ok := s.DataCache.Players.IDs.Gog[id]; ok && prof.Username != "" {
			return prof.Username, prof.ProfileURL
		}
	}
	return p.Name, ""
}
