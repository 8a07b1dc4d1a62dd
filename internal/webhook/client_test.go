package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bz2vsr/bz2-watchbot/internal/render"
)

func testPayload() render.Payload {
	return render.Payload{Content: "hello", Embeds: []render.Embed{{Title: "t"}}}
}

func TestCreateMessage(t *testing.T) {
	var gotPath, gotQuery, gotContentType string
	var gotBody render.Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "msg-42"})
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	out := c.CreateMessage(context.Background(), server.URL+"/webhooks/1/tok", testPayload())

	if out.Kind != OK {
		t.Fatalf("outcome = %v (%v), want OK", out.Kind, out.Err)
	}
	if out.MessageID != "msg-42" {
		t.Errorf("message ID = %q, want msg-42", out.MessageID)
	}
	if gotPath != "/webhooks/1/tok" || gotQuery != "wait=true" {
		t.Errorf("request = %s?%s, want /webhooks/1/tok?wait=true", gotPath, gotQuery)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotBody.Content != "hello" {
		t.Errorf("body content = %q", gotBody.Content)
	}
}

func TestCreateMessageMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	if out := c.CreateMessage(context.Background(), server.URL, testPayload()); out.Kind != Fatal {
		t.Errorf("outcome = %v, want Fatal for create without message ID", out.Kind)
	}
}

func TestEditMessage(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	out := c.EditMessage(context.Background(), server.URL+"/webhooks/1/tok", "msg-42", testPayload())

	if out.Kind != OK {
		t.Fatalf("outcome = %v (%v), want OK", out.Kind, out.Err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotPath != "/webhooks/1/tok/messages/msg-42" {
		t.Errorf("path = %s", gotPath)
	}
}

func TestOutcomeClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   OutcomeKind
	}{
		{"200", http.StatusOK, `{"id":"1"}`, OK},
		{"204", http.StatusNoContent, "", OK},
		{"404", http.StatusNotFound, "", NotFound},
		{"400 unknown message", http.StatusBadRequest, `{"code":10008}`, NotFound},
		{"400 other", http.StatusBadRequest, `{"code":50006}`, Fatal},
		{"401", http.StatusUnauthorized, "", Fatal},
		{"429", http.StatusTooManyRequests, "", Retryable},
		{"500", http.StatusInternalServerError, "", Retryable},
		{"503", http.StatusServiceUnavailable, "", Retryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.status, []byte(tt.body), "POST", "url"); got.Kind != tt.want {
				t.Errorf("classify(%d) = %v, want %v", tt.status, got.Kind, tt.want)
			}
		})
	}
}

func TestUnreachableServerIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(time.Second)
	if out := c.EditMessage(context.Background(), server.URL, "m1", testPayload()); out.Kind != Retryable {
		t.Errorf("outcome = %v, want Retryable", out.Kind)
	}
}

func TestRetryableRetriesOnServerError(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	out := c.CreateMessage(context.Background(), server.URL, testPayload())
	if out.Kind != OK || out.MessageID != "msg-1" {
		t.Errorf("outcome = %+v, want OK/msg-1 after one retry", out)
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
}
