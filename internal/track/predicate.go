package track

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bz2vsr/bz2-watchbot/internal/api"
)

// ///////////////////////////////////////////////
// Relevance Predicate
// ///////////////////////////////////////////////

// Match modes for the roster predicate.
const (
	MatchHost = "host" // the session host must be on the roster
	MatchAny  = "any"  // any player on the roster makes the session relevant
)

// PredicateConfig is the roster portion of the daemon config.
type PredicateConfig struct {
	// Match selects the matching mode, MatchHost or MatchAny.
	Match string
	// SteamIDs and GogIDs are the monitored platform identities.
	SteamIDs []string
	GogIDs   []string
	// ExcludeSessionNames and ExcludeGameModes are glob patterns; a session
	// matching any pattern is never relevant. Matching is case-insensitive.
	ExcludeSessionNames []string
	ExcludeGameModes    []string
}

// Predicate decides whether a session belongs to the monitored roster.
type Predicate struct {
	matchAny     bool
	steamIDs     map[string]struct{}
	gogIDs       map[string]struct{}
	excludeNames []string
	excludeModes []string
}

// NewPredicate builds a Predicate from config, validating the glob patterns
// and the match mode up front so a typo fails at startup rather than silently
// matching nothing.
func NewPredicate(cfg PredicateConfig) (*Predicate, error) {
	switch cfg.Match {
	case MatchHost, MatchAny:
	default:
		return nil, fmt.Errorf("invalid roster match mode %q (want %q or %q)", cfg.Match, MatchHost, MatchAny)
	}

	for _, pat := range cfg.ExcludeSessionNames {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid exclude_session_names pattern %q", pat)
		}
	}
	for _, pat := range cfg.ExcludeGameModes {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid exclude_game_modes pattern %q", pat)
		}
	}

	p := &Predicate{
		matchAny: cfg.Match == MatchAny,
		steamIDs: make(map[string]struct{}, len(cfg.SteamIDs)),
		gogIDs:   make(map[string]struct{}, len(cfg.GogIDs)),
	}
	for _, id := range cfg.SteamIDs {
		p.steamIDs[id] = struct{}{}
	}
	for _, id := range cfg.GogIDs {
		p.gogIDs[id] = struct{}{}
	}
	for _, pat := range cfg.ExcludeSessionNames {
		p.excludeNames = append(p.excludeNames, strings.ToLower(pat))
	}
	for _, pat := range cfg.ExcludeGameModes {
		p.excludeModes = append(p.excludeModes, strings.ToLower(pat))
	}
	return p, nil
}

// Relevant reports whether the session should be tracked. A session with no
// players, or whose host carries no platform identity, is never relevant;
// neither is one whose name or game mode matches an exclusion pattern.
func (p *Predicate) Relevant(s *api.Session) bool {
	host := s.Host()
	if host == nil || !host.HasPlatformID() {
		return false
	}
	if matchesAny(p.excludeNames, s.Name) || matchesAny(p.excludeModes, s.Level.GameMode.ID) {
		return false
	}

	if p.matchAny {
		for i := range s.Players {
			if p.onRoster(&s.Players[i]) {
				return true
			}
		}
		return false
	}
	return p.onRoster(host)
}

// onRoster reports whether the player's Steam or GOG identity is monitored.
func (p *Predicate) onRoster(pl *api.Player) bool {
	if id := pl.SteamID(); id != "" {
		if _, ok := p.steamIDs[id]; ok {
			return true
		}
	}
	if id := pl.GogID(); id != "" {
		if _, ok := p.gogIDs[id]; ok {
			return true
		}
	}
	return false
}

// matchesAny reports whether value matches any of the lowercased glob
// patterns. Patterns were validated at construction, so match errors cannot
// occur here.
func matchesAny(patterns []string, value string) bool {
	value = strings.ToLower(value)
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, value); ok {
			return true
		}
	}
	return false
}
