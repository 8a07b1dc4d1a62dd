package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bz2vsr/bz2-watchbot/internal/directory"
	"github.com/bz2vsr/bz2-watchbot/internal/render"
	"github.com/bz2vsr/bz2-watchbot/internal/track"
)

// fakeWebhook is an httptest-backed webhook endpoint that assigns sequential
// message IDs and records the operations it served.
type fakeWebhook struct {
	mu     sync.Mutex
	nextID int
	ops    []string // "POST" or "PATCH <id>"
	server *httptest.Server
}

func newFakeWebhook() *fakeWebhook {
	f := &fakeWebhook{nextID: 1}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			id := fmt.Sprintf("msg-%d", f.nextID)
			f.nextID++
			f.ops = append(f.ops, "POST")
			json.NewEncoder(w).Encode(map[string]string{"id": id})
		case http.MethodPatch:
			f.ops = append(f.ops, "PATCH "+r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	return f
}

func (f *fakeWebhook) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func intent(kind track.IntentKind, session, dest, msgID string) track.Intent {
	return track.Intent{
		SessionID:   session,
		Destination: dest,
		Kind:        kind,
		MessageID:   msgID,
		Payload:     render.Payload{Content: "x"},
	}
}

func TestDispatchCreateRecordsMessageID(t *testing.T) {
	fake := newFakeWebhook()
	defer fake.server.Close()

	dir := directory.New()
	d := NewDispatcher(NewClient(5*time.Second), map[string]string{"main": fake.server.URL}, dir)

	d.Dispatch(context.Background(), []track.Intent{
		intent(track.IntentCreate, "s1", "main", ""),
	})

	if got := dir.Get("s1", "main"); got != "msg-1" {
		t.Errorf("directory slot = %q, want msg-1", got)
	}
}

func TestDispatchPatchNotFoundClearsSlot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := directory.New()
	dir.Set("s1", "main", "msg-1")
	d := NewDispatcher(NewClient(5*time.Second), map[string]string{"main": server.URL}, dir)

	d.Dispatch(context.Background(), []track.Intent{
		intent(track.IntentPatch, "s1", "main", "msg-1"),
	})

	if got := dir.Get("s1", "main"); got != "" {
		t.Errorf("slot = %q, want cleared after not-found patch", got)
	}
}

func TestDispatchMarkEndedClearsSlot(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"edit succeeds", http.StatusNoContent},
		{"message already deleted", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			dir := directory.New()
			dir.Set("s1", "main", "msg-1")
			d := NewDispatcher(NewClient(5*time.Second), map[string]string{"main": server.URL}, dir)

			d.Dispatch(context.Background(), []track.Intent{
				intent(track.IntentMarkEnded, "s1", "main", "msg-1"),
			})

			if got := dir.Get("s1", "main"); got != "" {
				t.Errorf("slot = %q, want cleared", got)
			}
		})
	}
}

func TestDispatchRetryableLeavesSlotUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	dir := directory.New()
	dir.Set("s1", "main", "msg-1")
	d := NewDispatcher(NewClient(time.Second), map[string]string{"main": server.URL}, dir)

	d.Dispatch(context.Background(), []track.Intent{
		intent(track.IntentMarkEnded, "s1", "main", "msg-1"),
	})

	if got := dir.Get("s1", "main"); got != "msg-1" {
		t.Errorf("slot = %q, want msg-1 preserved for retry", got)
	}
}

func TestDispatchPreservesOrderWithinDestination(t *testing.T) {
	fake := newFakeWebhook()
	defer fake.server.Close()

	dir := directory.New()
	dir.Set("s1", "main", "msg-old")
	d := NewDispatcher(NewClient(5*time.Second), map[string]string{"main": fake.server.URL}, dir)

	// A restart plan: retire the old message, then post the new lobby.
	d.Dispatch(context.Background(), []track.Intent{
		intent(track.IntentMarkEnded, "s1", "main", "msg-old"),
		intent(track.IntentCreate, "s1", "main", ""),
	})

	ops := fake.operations()
	if len(ops) != 2 || ops[0] != "PATCH /messages/msg-old" || ops[1] != "POST" {
		t.Errorf("operations = %v, want [PATCH /messages/msg-old POST]", ops)
	}
	// The create's fresh ID wins the slot; mutations apply in plan order.
	if got := dir.Get("s1", "main"); got != "msg-1" {
		t.Errorf("slot = %q, want msg-1", got)
	}
}

func TestDispatchIsolatesDestinationFailures(t *testing.T) {
	healthy := newFakeWebhook()
	defer healthy.server.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	broken.Close()

	dir := directory.New()
	d := NewDispatcher(NewClient(time.Second), map[string]string{
		"good": healthy.server.URL,
		"bad":  broken.URL,
	}, dir)

	d.Dispatch(context.Background(), []track.Intent{
		intent(track.IntentCreate, "s1", "bad", ""),
		intent(track.IntentCreate, "s1", "good", ""),
	})

	if got := dir.Get("s1", "good"); got != "msg-1" {
		t.Errorf("healthy destination slot = %q, want msg-1", got)
	}
	if got := dir.Get("s1", "bad"); got != "" {
		t.Errorf("failed destination slot = %q, want empty", got)
	}
}

func TestDispatchUnknownDestinationDropped(t *testing.T) {
	dir := directory.New()
	d := NewDispatcher(NewClient(time.Second), map[string]string{}, dir)

	// Must not panic or hang.
	d.Dispatch(context.Background(), []track.Intent{
		intent(track.IntentCreate, "s1", "ghost", ""),
	})

	if dir.Len() != 0 {
		t.Errorf("directory len = %d, want 0", dir.Len())
	}
}
