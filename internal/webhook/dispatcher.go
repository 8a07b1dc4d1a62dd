package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bz2vsr/bz2-watchbot/internal/directory"
	"github.com/bz2vsr/bz2-watchbot/internal/track"
)

// ///////////////////////////////////////////////
// Dispatcher
// ///////////////////////////////////////////////

// Dispatcher executes a cycle's intent plan against the configured webhook
// destinations. Destinations are worked concurrently; within one destination
// the intents run strictly in plan order, which preserves the end-then-create
// sequencing a restart produces.
//
// Directory mutations are collected during the fan-out and applied on the
// calling goroutine after all deliveries finish, so the directory is never
// touched concurrently.
type Dispatcher struct {
	client *Client
	// urls maps destination IDs to their webhook URLs.
	urls map[string]string
	dir  *directory.Directory
}

// NewDispatcher wires the dispatcher to its client, the destination webhook
// URLs, and the message directory it repairs after each cycle.
func NewDispatcher(client *Client, urls map[string]string, dir *directory.Directory) *Dispatcher {
	return &Dispatcher{client: client, urls: urls, dir: dir}
}

// delivery pairs an executed intent with its classified result.
type delivery struct {
	intent  track.Intent
	outcome Outcome
}

// Dispatch delivers the plan and applies the results to the directory:
// a successful create records its message ID, a not-found patch clears the
// slot for recreation, and a finished (or already-deleted) terminal edit
// retires the slot. Retryable and fatal failures leave the slot untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []track.Intent) {
	byDest := make(map[string][]track.Intent)
	for _, in := range intents {
		byDest[in.Destination] = append(byDest[in.Destination], in)
	}

	results := make(map[string][]delivery, len(byDest))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for destID, seq := range byDest {
		url, ok := d.urls[destID]
		if !ok {
			slog.Error("intent for unknown destination dropped", "destination", destID, "intents", len(seq))
			continue
		}

		wg.Add(1)
		go func(destID, url string, seq []track.Intent) {
			defer wg.Done()
			deliveries := d.deliverSequence(ctx, url, seq)
			mu.Lock()
			results[destID] = deliveries
			mu.Unlock()
		}(destID, url, seq)
	}
	wg.Wait()

	// Apply mutations in sorted destination order for a stable log.
	destIDs := make([]string, 0, len(results))
	for id := range results {
		destIDs = append(destIDs, id)
	}
	sort.Strings(destIDs)
	for _, destID := range destIDs {
		for _, del := range results[destID] {
			d.apply(del)
		}
	}
}

// deliverSequence runs one destination's intents in order.
func (d *Dispatcher) deliverSequence(ctx context.Context, url string, seq []track.Intent) []delivery {
	deliveries := make([]delivery, 0, len(seq))
	for _, in := range seq {
		var out Outcome
		switch in.Kind {
		case track.IntentCreate:
			out = d.client.CreateMessage(ctx, url, in.Payload)
		case track.IntentPatch, track.IntentMarkEnded:
			out = d.client.EditMessage(ctx, url, in.MessageID, in.Payload)
		default:
			out = Outcome{Kind: Fatal, Err: fmt.Errorf("unknown intent kind %v", in.Kind)}
		}
		deliveries = append(deliveries, delivery{intent: in, outcome: out})
	}
	return deliveries
}

// apply translates one delivery result into its directory mutation and log
// line.
func (d *Dispatcher) apply(del delivery) {
	in, out := del.intent, del.outcome

	switch {
	case in.Kind == track.IntentCreate && out.Kind == OK:
		d.dir.Set(in.SessionID, in.Destination, out.MessageID)
		slog.Info("message created", "session", in.SessionID, "destination", in.Destination, "message", out.MessageID)

	case in.Kind == track.IntentPatch && out.Kind == OK:
		slog.Debug("message patched", "session", in.SessionID, "destination", in.Destination, "message", in.MessageID)

	case in.Kind == track.IntentPatch && out.Kind == NotFound:
		// Someone deleted the message; forget it so next cycle recreates.
		d.dir.Clear(in.SessionID, in.Destination)
		slog.Warn("message vanished, slot cleared for recreation",
			"session", in.SessionID, "destination", in.Destination, "message", in.MessageID)

	case in.Kind == track.IntentMarkEnded && (out.Kind == OK || out.Kind == NotFound):
		d.dir.Clear(in.SessionID, in.Destination)
		slog.Info("message retired", "session", in.SessionID, "destination", in.Destination, "message", in.MessageID)

	case out.Kind == Retryable:
		slog.Warn("delivery failed, will retry next cycle",
			"intent", in.Kind.String(), "session", in.SessionID, "destination", in.Destination, "error", out.Err)

	default:
		slog.Error("delivery failed permanently",
			"intent", in.Kind.String(), "session", in.SessionID, "destination", in.Destination, "error", out.Err)
	}
}
