package track

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bz2vsr/bz2-watchbot/internal/api"
	"github.com/bz2vsr/bz2-watchbot/internal/maplist"
)

// ///////////////////////////////////////////////
// Structural Diff
// ///////////////////////////////////////////////

// diffSessions compares two polls of the same session and returns one change
// summary per difference, for the operator log and for deciding whether a
// patch is warranted. The result is independent of upstream array order:
// names within a change are sorted, and the change categories appear in a
// fixed sequence. An empty result means the session is structurally unchanged.
func diffSessions(prev, cur *api.Session, snap *api.Snapshot) []string {
	var changes []string

	if prev.PlayerCount.Player != cur.PlayerCount.Player {
		changes = append(changes, fmt.Sprintf("players %d -> %d", prev.PlayerCount.Player, cur.PlayerCount.Player))
	}
	if prev.Status.State != cur.Status.State {
		changes = append(changes, fmt.Sprintf("status %s -> %s", prev.Status.State, cur.Status.State))
	}
	if prev.Status.IsLocked != cur.Status.IsLocked {
		changes = append(changes, fmt.Sprintf("locked -> %t", cur.Status.IsLocked))
	}
	if pm, cm := maplist.CleanMapFile(prev.Level.MapFile), maplist.CleanMapFile(cur.Level.MapFile); pm != cm {
		changes = append(changes, fmt.Sprintf("map %s -> %s", orDash(pm), orDash(cm)))
	}

	prevRoster := rosterIndex(prev, snap)
	curRoster := rosterIndex(cur, snap)

	if joined := missingFrom(curRoster, prevRoster); len(joined) > 0 {
		changes = append(changes, "joined: "+strings.Join(joined, ", "))
	}
	if left := missingFrom(prevRoster, curRoster); len(left) > 0 {
		changes = append(changes, "left: "+strings.Join(left, ", "))
	}

	changes = append(changes, teamSwitches(prevRoster, curRoster)...)
	changes = append(changes, statChanges(prevRoster, curRoster)...)

	return changes
}

// rosterEntry is one player's comparable state for diffing.
type rosterEntry struct {
	name  string
	team  int
	stats api.Stats
}

// rosterIndex keys each player by platform identity so renames do not read as
// a join/leave pair; players without one fall back to their in-session name.
// Display names come from the profile cache for consistency with the embeds.
func rosterIndex(s *api.Session, snap *api.Snapshot) map[string]rosterEntry {
	idx := make(map[string]rosterEntry, len(s.Players))
	for i := range s.Players {
		p := &s.Players[i]
		key := p.SteamID()
		if key == "" {
			key = p.GogID()
		}
		if key == "" {
			key = "name:" + p.Name
		}
		name, _ := snap.ProfileFor(p)
		idx[key] = rosterEntry{name: name, team: p.TeamID(), stats: p.Stats}
	}
	return idx
}

// missingFrom returns the sorted display names present in a but absent from b.
func missingFrom(a, b map[string]rosterEntry) []string {
	var names []string
	for key, e := range a {
		if _, ok := b[key]; !ok {
			names = append(names, e.name)
		}
	}
	sort.Strings(names)
	return names
}

// teamSwitches reports players present in both polls whose team changed.
func teamSwitches(prev, cur map[string]rosterEntry) []string {
	var lines []string
	for key, c := range cur {
		p, ok := prev[key]
		if !ok || p.team == c.team {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s moved to team %d", c.name, c.team))
	}
	sort.Strings(lines)
	return lines
}

// statChanges reports players present in both polls whose score line moved.
func statChanges(prev, cur map[string]rosterEntry) []string {
	var lines []string
	for key, c := range cur {
		p, ok := prev[key]
		if !ok || p.stats == c.stats {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %d/%d/%d", c.name, c.stats.Kills, c.stats.Deaths, c.stats.Score))
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return nil
	}
	return []string{"stats: " + strings.Join(lines, ", ")}
}

// orDash substitutes "-" for an empty value in diff text.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
