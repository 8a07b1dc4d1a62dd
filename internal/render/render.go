// Package render converts a session snapshot into a destination-agnostic
// webhook message payload: an announcement content line plus a structured
// embed describing the game, its players, and its map.
//
// Rendering is pure with respect to tracker state — the same session and
// snapshot always produce the same embed (modulo the footer clock), so a
// regenerated patch after a dropped delivery is byte-equivalent.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/bz2vsr/bz2-watchbot/internal/api"
	"github.com/bz2vsr/bz2-watchbot/internal/maplist"
)

// Embed accent colors.
const (
	colorLive  = 3447003  // blue
	colorEnded = 15158332 // red
)

// blank is Discord's zero-width space, used for spacer fields that keep the
// three-column embed grid aligned.
const blank = "​"

// ///////////////////////////////////////////////
// Payload Types
// ///////////////////////////////////////////////

// Payload is one webhook message body: optional content line plus embeds.
type Payload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds"`
}

// Embed is a Discord rich embed.
type Embed struct {
	Title     string     `json:"title,omitempty"`
	URL       string     `json:"url,omitempty"`
	Color     int        `json:"color,omitempty"`
	Fields    []Field    `json:"fields,omitempty"`
	Footer    *Footer    `json:"footer,omitempty"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty"`
}

// Field is one embed field; Inline fields flow three to a row.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the embed footer line.
type Footer struct {
	Text string `json:"text"`
}

// Thumbnail is the embed thumbnail image.
type Thumbnail struct {
	URL string `json:"url"`
}

// ///////////////////////////////////////////////
// Renderer
// ///////////////////////////////////////////////

// Options holds the link bases used in rendered embeds.
type Options struct {
	// JoinURLBase prefixes the encoded NAT ID to form the one-click join link.
	JoinURLBase string
	// BrowseMapsURL is the map browser; the cleaned map file is appended as
	// a query parameter.
	BrowseMapsURL string
}

// Renderer builds webhook payloads for live, updated, and ended sessions.
type Renderer struct {
	opts Options
	maps *maplist.List
	now  func() time.Time
}

// New creates a Renderer with the given link options and map metadata.
// maps may be nil; the map details block then omits the VSR rows.
func New(opts Options, maps *maplist.List) *Renderer {
	return &Renderer{opts: opts, maps: maps, now: time.Now}
}

// SetMaplist swaps the map metadata, used when a file-sourced list is
// hot-reloaded. Called only from the poll-processing path.
func (r *Renderer) SetMaplist(maps *maplist.List) {
	r.maps = maps
}

// RenderCreate builds the payload for a newly posted session message,
// including the announcement content line. newCount is the number of
// sessions that became relevant this poll; mention is the destination's
// configured ping tag ("" for no ping).
func (r *Renderer) RenderCreate(s *api.Session, snap *api.Snapshot, newCount int, mention string) Payload {
	return Payload{
		Content: r.announcement(s, snap, newCount, mention),
		Embeds:  []Embed{r.sessionEmbed(s, snap, false)},
	}
}

// RenderUpdate builds the payload for patching an existing session message.
func (r *Renderer) RenderUpdate(s *api.Session, snap *api.Snapshot) Payload {
	return Payload{Embeds: []Embed{r.sessionEmbed(s, snap, false)}}
}

// RenderEnded re-renders the last-known session state with the terminal
// presentation: no join link, red accent, "Game Over" title. No fresh data
// exists once a session disappears from the listing, so the embed body is
// built from the retained snapshot.
func (r *Renderer) RenderEnded(s *api.Session, snap *api.Snapshot) Payload {
	return Payload{Embeds: []Embed{r.sessionEmbed(s, snap, true)}}
}

// ///////////////////////////////////////////////
// Announcement Line
// ///////////////////////////////////////////////

// announcement builds the content line for a create. A single new game names
// the host; several new games in the same poll collapse into a count.
func (r *Renderer) announcement(s *api.Session, snap *api.Snapshot, newCount int, mention string) string {
	var line string
	if newCount <= 1 {
		hostName := "Unknown"
		if host := s.Host(); host != nil {
			hostName, _ = snap.ProfileFor(host)
		}
		line = fmt.Sprintf("🆕 Game Up (Host: %s)", hostName)
	} else {
		line = fmt.Sprintf("🆕 %d Games Up", newCount)
	}
	if mention != "" {
		line += " " + mention
	}
	return line
}

// ///////////////////////////////////////////////
// Session Embed
// ///////////////////////////////////////////////

// sessionEmbed builds the full embed for a session. When ended is true the
// join link is dropped and the terminal presentation is applied.
func (r *Renderer) sessionEmbed(s *api.Session, snap *api.Snapshot, ended bool) Embed {
	e := Embed{Color: colorLive}
	if ended {
		e.Title = "⏹️  Game Over"
		e.Color = colorEnded
		e.Footer = &Footer{Text: fmt.Sprintf("GameWatch • Ended: %s", r.now().Format("3:04 PM"))}
	} else {
		e.Title = "▶️  Join Game"
		e.URL = r.opts.JoinURLBase + encodeNAT(s.Address.NAT)
		e.Footer = &Footer{Text: fmt.Sprintf("GameWatch • Last Updated: %s 🔄", r.now().Format("3:04 PM"))}
	}

	hostName := "Unknown"
	if host := s.Host(); host != nil {
		hostName, _ = snap.ProfileFor(host)
	}

	name := s.Name
	if name == "" {
		name = "Unnamed"
	}

	e.Fields = append(e.Fields,
		// Row 1: Game Name | Host
		Field{Name: "🎮  Game Name", Value: codeBlock(name), Inline: true},
		Field{Name: "👤  Host", Value: codeBlock(hostName), Inline: true},
		Field{Name: blank, Value: blank, Inline: true},
		// Row 2: Players | Status
		Field{Name: "👥  Players", Value: codeBlock(fmt.Sprintf("%d/%d", s.PlayerCount.Player, s.MaxPlayers())), Inline: true},
		Field{Name: "📊  Status", Value: codeBlock(statusText(s)), Inline: true},
		Field{Name: blank, Value: blank, Inline: true},
		// Row 3: Mode | NAT Type
		Field{Name: "🎲  Mode", Value: codeBlock(orUnknown(s.Level.GameMode.ID)), Inline: true},
		Field{Name: "🌐  NAT Type", Value: codeBlock(orUnknown(s.Address.NATType)), Inline: true},
		Field{Name: blank, Value: blank, Inline: true},
	)

	if s.Status.IsLocked {
		e.Fields = append(e.Fields,
			Field{Name: "🔒  Locked", Value: "```ansi\n[31mYes[0m```", Inline: true},
			Field{Name: blank, Value: blank, Inline: true},
			Field{Name: blank, Value: blank, Inline: true},
		)
	}

	r.appendTeamFields(&e, s, snap)
	r.appendMapFields(&e, s)
	r.appendModField(&e, s, snap)

	if img := s.Level.Image; img != "" {
		e.Thumbnail = &Thumbnail{URL: img}
	}

	return e
}

// statusText formats the lifecycle state with elapsed minutes, e.g.
// "In-Lobby (4 mins)". Unrecognized states pass through unchanged.
func statusText(s *api.Session) string {
	mins := s.Time.Seconds / 60
	switch s.Status.State {
	case api.StatePreGame:
		return fmt.Sprintf("In-Lobby (%d mins)", mins)
	case api.StateInGame:
		return fmt.Sprintf("In-Game (%d mins)", mins)
	case "":
		return "Unknown"
	default:
		return s.Status.State
	}
}

// ///////////////////////////////////////////////
// Team Listings
// ///////////////////////////////////////////////

// appendTeamFields adds the TEAM 1 / TEAM 2 columns. Only the team-based
// modes get listings: STRAT shows both player teams, MPI shows team 1 versus
// the computer. Players appear in roster order.
func (r *Renderer) appendTeamFields(e *Embed, s *api.Session, snap *api.Snapshot) {
	mode := s.Level.GameMode.ID
	isMPI := mode == "MPI"
	isStrat := mode == "STRAT"
	if !isMPI && !isStrat {
		return
	}

	var team1, team2 []string
	for i := range s.Players {
		p := &s.Players[i]
		switch p.TeamID() {
		case 1:
			team1 = append(team1, r.playerLine(p, snap))
		case 2:
			team2 = append(team2, r.playerLine(p, snap))
		}
	}

	team1Value := "*Empty*"
	if len(team1) > 0 {
		team1Value = strings.Join(team1, "\n")
	}
	team2Value := "*Empty*"
	if isMPI {
		team2Value = "**Computer**"
	} else if len(team2) > 0 {
		team2Value = strings.Join(team2, "\n")
	}

	e.Fields = append(e.Fields,
		Field{Name: blank, Value: blank, Inline: false},
		Field{Name: "👥  **TEAM 1**", Value: team1Value, Inline: true},
		Field{Name: "👥  **TEAM 2**", Value: team2Value, Inline: true},
		Field{Name: blank, Value: blank, Inline: true},
		Field{Name: blank, Value: blank, Inline: false},
	)
}

// playerLine formats one roster entry: a profile-linked name when the data
// cache knows the player, followed by kills/deaths/score.
func (r *Renderer) playerLine(p *api.Player, snap *api.Snapshot) string {
	name, profileURL := snap.ProfileFor(p)
	if profileURL != "" {
		name = fmt.Sprintf("[%s](%s)", name, profileURL)
	}
	return fmt.Sprintf("%s (%d/%d/%d)", name, p.Stats.Kills, p.Stats.Deaths, p.Stats.Score)
}

// ///////////////////////////////////////////////
// Map and Mod Fields
// ///////////////////////////////////////////////

// appendMapFields adds the full-width map details block, enriched with VSR
// metadata when the map list knows the file.
func (r *Renderer) appendMapFields(e *Embed, s *api.Session) {
	mapName := orUnknown(s.Level.Name)
	// Upstream map names carry a mod prefix ("VSR: Dunes"); keep the part
	// after the last colon.
	if idx := strings.LastIndex(mapName, ":"); idx >= 0 {
		mapName = strings.TrimSpace(mapName[idx+1:])
	}
	cleanFile := maplist.CleanMapFile(s.Level.MapFile)

	var details strings.Builder
	fmt.Fprintf(&details, "Name: %s\n", mapName)
	fmt.Fprintf(&details, "File: %s\n", orUnknown(cleanFile))

	if entry, ok := r.maps.Lookup(s.Level.MapFile); ok {
		fmt.Fprintf(&details, "\nPools: %d", entry.Pools)
		fmt.Fprintf(&details, "\nLoose: %d", entry.Loose)
		fmt.Fprintf(&details, "\nB2B Distance (m): %s", orUnknown(entry.Size.BaseToBase))
		fmt.Fprintf(&details, "\nSize (m): %s", orUnknown(entry.Size.FormattedSize))
		fmt.Fprintf(&details, "\nAuthor: %s", orUnknown(entry.Author))
	}

	value := fmt.Sprintf("[Browse Maps](%s?map=%s)\n%s", r.opts.BrowseMapsURL, cleanFile, codeBlock(details.String()))
	e.Fields = append(e.Fields, Field{Name: "🗺️  Map Details", Value: value, Inline: false})
}

// appendModField adds the mod name, linked when the snapshot carries a URL.
func (r *Renderer) appendModField(e *Embed, s *api.Session, snap *api.Snapshot) {
	mod, ok := snap.Mods[s.Game.Mod]
	value := "Unknown"
	if ok {
		value = mod.Name
		if mod.URL != "" {
			value = fmt.Sprintf("[%s](%s)", mod.Name, mod.URL)
		}
	}
	e.Fields = append(e.Fields, Field{Name: blank, Value: value, Inline: false})
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// encodeNAT maps the NAT ID into the join service's URL alphabet:
// '@' -> 'A', '-' -> '0', '_' -> 'L'.
func encodeNAT(nat string) string {
	r := strings.NewReplacer("@", "A", "-", "0", "_", "L")
	return r.Replace(nat)
}

// codeBlock wraps a value in a fenced block for fixed-width display.
func codeBlock(s string) string {
	return "```" + s + "```"
}

// orUnknown substitutes "Unknown" for empty values.
func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
