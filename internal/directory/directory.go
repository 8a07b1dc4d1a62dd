// Package directory maintains the mapping from (session, destination) to the
// Discord message created for that pair. It is the single source of truth
// the reconciler consults when deciding between creating a fresh message and
// patching an existing one.
//
// The directory has no internal locking: it is owned by the poll-processing
// path, which reads it during reconciliation and applies dispatch results to
// it before the next cycle begins.
package directory

import "sort"

// key identifies one message slot.
type key struct {
	session     string
	destination string
}

// Directory maps (session, destination) pairs to Discord message IDs.
// A missing entry means "needs creation".
type Directory struct {
	slots map[key]string
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{slots: make(map[key]string)}
}

// Get returns the message ID for the pair, or "" when no live message exists.
func (d *Directory) Get(session, destination string) string {
	return d.slots[key{session, destination}]
}

// Set records the message ID for the pair, replacing any previous entry.
func (d *Directory) Set(session, destination, messageID string) {
	d.slots[key{session, destination}] = messageID
}

// Clear removes the pair's entry, so the next reconcile treats the
// destination as needing a fresh create.
func (d *Directory) Clear(session, destination string) {
	delete(d.slots, key{session, destination})
}

// ClearSession removes every destination entry for the session. Called after
// a session's end-of-life intents have been attempted, so abandoned slots do
// not accumulate.
func (d *Directory) ClearSession(session string) {
	for k := range d.slots {
		if k.session == session {
			delete(d.slots, k)
		}
	}
}

// Destinations returns the IDs of every destination holding a live message
// for the session, sorted for deterministic intent ordering.
func (d *Directory) Destinations(session string) []string {
	var dests []string
	for k := range d.slots {
		if k.session == session {
			dests = append(dests, k.destination)
		}
	}
	sort.Strings(dests)
	return dests
}

// Len returns the number of live slots, for logging and tests.
func (d *Directory) Len() int {
	return len(d.slots)
}
