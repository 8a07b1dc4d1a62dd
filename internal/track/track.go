// Package track is the session reconciliation engine. Each poll it compares
// the fresh upstream snapshot against the retained session records, decides
// which sessions are new, changed, restarted, or gone, and emits an ordered
// plan of notification intents for the dispatcher to execute.
//
// Reconciliation is a pure computation over (records, snapshot, directory):
// it performs no I/O and mutates nothing, so a dropped intent is simply
// regenerated from the same inputs on the next cycle.
package track

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bz2vsr/bz2-watchbot/internal/api"
	"github.com/bz2vsr/bz2-watchbot/internal/directory"
	"github.com/bz2vsr/bz2-watchbot/internal/render"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Record retains what was last published for one tracked session: the session
// body for end-of-life rendering, plus the snapshot it came from so player
// profiles still resolve after the session vanishes upstream.
type Record struct {
	Session  *api.Session
	Snapshot *api.Snapshot
}

// IntentKind classifies a notification intent.
type IntentKind int

const (
	// IntentCreate posts a fresh message for a (session, destination) pair.
	IntentCreate IntentKind = iota
	// IntentPatch edits the pair's existing message in place.
	IntentPatch
	// IntentMarkEnded applies the terminal presentation to the existing
	// message; the slot is retired afterwards.
	IntentMarkEnded
)

// String returns the kind's log label.
func (k IntentKind) String() string {
	switch k {
	case IntentCreate:
		return "create"
	case IntentPatch:
		return "patch"
	case IntentMarkEnded:
		return "mark-ended"
	default:
		return fmt.Sprintf("IntentKind(%d)", int(k))
	}
}

// Intent is one planned message operation. MessageID is resolved from the
// directory at plan time (empty for creates), so executing goroutines never
// touch shared state.
type Intent struct {
	SessionID   string
	Destination string
	Kind        IntentKind
	MessageID   string
	Payload     render.Payload
}

// Destination is one configured delivery target, identified by its stable ID.
// Mention is the ping tag appended to create announcements ("" disables it).
type Destination struct {
	ID      string
	Mention string
}

// Renderer converts session state into webhook payloads. Implemented by
// render.Renderer; declared here so the engine can be tested with a stub.
type Renderer interface {
	RenderCreate(s *api.Session, snap *api.Snapshot, newCount int, mention string) render.Payload
	RenderUpdate(s *api.Session, snap *api.Snapshot) render.Payload
	RenderEnded(s *api.Session, snap *api.Snapshot) render.Payload
}

// Result is one cycle's reconciliation outcome.
type Result struct {
	// Next replaces the retained records wholesale.
	Next map[string]*Record
	// Intents is the ordered delivery plan. Order is significant only
	// within one destination's subsequence.
	Intents []Intent
	// Diffs are human-readable change summaries for the operator log.
	Diffs []string
	// Ended lists sessions that left tracking this cycle; the caller clears
	// their directory slots after dispatch so nothing leaks when a terminal
	// edit fails against a vanished session.
	Ended []string
}

// ///////////////////////////////////////////////
// Reconciler
// ///////////////////////////////////////////////

// Reconciler plans notification intents from poll-to-poll session changes.
type Reconciler struct {
	renderer Renderer
	dests    []Destination
	dir      *directory.Directory
	pred     *Predicate
}

// NewReconciler wires the engine to its collaborators. dests keeps the
// configured order, which fixes intent ordering across cycles.
func NewReconciler(renderer Renderer, dests []Destination, dir *directory.Directory, pred *Predicate) *Reconciler {
	return &Reconciler{renderer: renderer, dests: dests, dir: dir, pred: pred}
}

// Reconcile compares the retained records against the snapshot and returns
// the cycle's plan. prev is not mutated. Sessions are processed in sorted ID
// order and destinations in configured order, so identical inputs always
// yield an identical plan.
//
// Classification per session:
//   - relevant and untracked: create per destination, announced.
//   - tracked and still relevant: structural diff; patch live slots when the
//     diff is non-empty, create for any destination whose slot was lost.
//   - tracked, in-game last poll, in-lobby now: the host restarted the game;
//     the old message is marked ended and a fresh one created.
//   - tracked but gone (or no longer relevant): mark ended per live slot and
//     drop the record.
func (r *Reconciler) Reconcile(prev map[string]*Record, snap *api.Snapshot) Result {
	res := Result{Next: make(map[string]*Record)}

	relevant := make(map[string]*api.Session)
	for i := range snap.Sessions {
		s := &snap.Sessions[i]
		if s.ID == "" || !r.pred.Relevant(s) {
			continue
		}
		relevant[s.ID] = s
	}

	// Announcement count: sessions getting a fresh message this cycle,
	// whether brand new or restarted.
	announced := 0
	for id, s := range relevant {
		rec, tracked := prev[id]
		if !tracked || isRestart(rec.Session, s) {
			announced++
		}
	}

	// Departures first, in sorted ID order.
	for _, id := range sortedKeys(prev) {
		if _, still := relevant[id]; still {
			continue
		}
		rec := prev[id]
		res.Intents = append(res.Intents, r.endIntents(id, rec)...)
		res.Ended = append(res.Ended, id)
		res.Diffs = append(res.Diffs, fmt.Sprintf("%s (%s): ended", sessionLabel(rec.Session), id))
	}

	for _, id := range sortedKeys(relevant) {
		s := relevant[id]
		rec, tracked := prev[id]

		switch {
		case !tracked:
			res.Intents = append(res.Intents, r.createIntents(s, snap, announced)...)
			res.Diffs = append(res.Diffs, fmt.Sprintf("%s (%s): up", sessionLabel(s), id))

		case isRestart(rec.Session, s):
			// End-then-create per destination keeps each pair's message
			// history linear even when one destination's edit fails.
			for _, d := range r.dests {
				if msgID := r.dir.Get(id, d.ID); msgID != "" {
					res.Intents = append(res.Intents, Intent{
						SessionID:   id,
						Destination: d.ID,
						Kind:        IntentMarkEnded,
						MessageID:   msgID,
						Payload:     r.renderer.RenderEnded(rec.Session, rec.Snapshot),
					})
				}
				res.Intents = append(res.Intents, Intent{
					SessionID:   id,
					Destination: d.ID,
					Kind:        IntentCreate,
					Payload:     r.renderer.RenderCreate(s, snap, announced, d.Mention),
				})
			}
			res.Diffs = append(res.Diffs, fmt.Sprintf("%s (%s): restarted", sessionLabel(s), id))

		default:
			changes := diffSessions(rec.Session, s, snap)
			if len(changes) > 0 {
				res.Diffs = append(res.Diffs, fmt.Sprintf("%s (%s): %s", sessionLabel(s), id, strings.Join(changes, "; ")))
			}
			for _, d := range r.dests {
				msgID := r.dir.Get(id, d.ID)
				if msgID == "" {
					// Slot lost (deleted message, or a failed earlier
					// create); re-establish it.
					res.Intents = append(res.Intents, Intent{
						SessionID:   id,
						Destination: d.ID,
						Kind:        IntentCreate,
						Payload:     r.renderer.RenderCreate(s, snap, announced, d.Mention),
					})
					continue
				}
				if len(changes) > 0 {
					res.Intents = append(res.Intents, Intent{
						SessionID:   id,
						Destination: d.ID,
						Kind:        IntentPatch,
						MessageID:   msgID,
						Payload:     r.renderer.RenderUpdate(s, snap),
					})
				}
			}
		}

		res.Next[id] = &Record{Session: s, Snapshot: snap}
	}

	return res
}

// createIntents plans one fresh message per configured destination.
func (r *Reconciler) createIntents(s *api.Session, snap *api.Snapshot, announced int) []Intent {
	intents := make([]Intent, 0, len(r.dests))
	for _, d := range r.dests {
		intents = append(intents, Intent{
			SessionID:   s.ID,
			Destination: d.ID,
			Kind:        IntentCreate,
			Payload:     r.renderer.RenderCreate(s, snap, announced, d.Mention),
		})
	}
	return intents
}

// endIntents plans the terminal edit for every destination still holding a
// live message for the session. Rendering uses the retained record since no
// fresh data exists for a vanished session.
func (r *Reconciler) endIntents(id string, rec *Record) []Intent {
	var intents []Intent
	for _, destID := range r.dir.Destinations(id) {
		intents = append(intents, Intent{
			SessionID:   id,
			Destination: destID,
			Kind:        IntentMarkEnded,
			MessageID:   r.dir.Get(id, destID),
			Payload:     r.renderer.RenderEnded(rec.Session, rec.Snapshot),
		})
	}
	return intents
}

// isRestart reports the in-game to in-lobby transition, which means the host
// ended the match and reopened the lobby under the same session ID.
func isRestart(prev, cur *api.Session) bool {
	return prev.Status.State == api.StateInGame && cur.Status.State == api.StatePreGame
}

// sessionLabel names a session for log lines.
func sessionLabel(s *api.Session) string {
	if s.Name == "" {
		return "unnamed"
	}
	return s.Name
}

// sortedKeys returns the map's keys in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
