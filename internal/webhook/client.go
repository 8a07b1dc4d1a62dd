// Package webhook delivers notification intents to Discord webhook
// destinations and applies the results back to the message directory.
//
// Delivery failures are classified, never unwound: one destination being
// down, rate-limited, or misconfigured has no effect on the others, and a
// failed intent is simply regenerated from upstream state next cycle.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/bz2vsr/bz2-watchbot/internal/render"
)

// ///////////////////////////////////////////////
// Outcomes
// ///////////////////////////////////////////////

// OutcomeKind classifies a delivery attempt.
type OutcomeKind int

const (
	// OK: the operation succeeded.
	OK OutcomeKind = iota
	// NotFound: the target message no longer exists (deleted by a
	// moderator, or the webhook itself is gone). The slot should be
	// cleared so the next cycle recreates it.
	NotFound
	// Retryable: a transient failure (timeout, rate limit, server error).
	// The slot is left untouched; the intent regenerates next cycle.
	Retryable
	// Fatal: a permanent failure for this payload (malformed request,
	// permission revoked). Logged; the slot is left untouched.
	Fatal
)

// String returns the kind's log label.
func (k OutcomeKind) String() string {
	switch k {
	case OK:
		return "ok"
	case NotFound:
		return "not-found"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classified result of one delivery attempt. MessageID is set
// only for successful creates.
type Outcome struct {
	Kind      OutcomeKind
	MessageID string
	Err       error
}

// discordUnknownMessage is Discord's error code for an edit against a
// deleted message.
const discordUnknownMessage = 10008

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client executes webhook HTTP calls. Safe for concurrent use; the
// dispatcher shares one client across its per-destination goroutines.
type Client struct {
	http *retryablehttp.Client
}

// NewClient creates a webhook client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 1
	c.HTTPClient.Timeout = timeout
	c.Logger = nil // suppress retryablehttp's default logging
	return &Client{http: c}
}

// CreateMessage posts a new message to the webhook and returns the created
// message's ID on success. The wait flag makes Discord return the message
// object instead of a bare 204.
func (c *Client) CreateMessage(ctx context.Context, webhookURL string, payload render.Payload) Outcome {
	out := c.do(ctx, http.MethodPost, webhookURL+"?wait=true", payload)
	if out.Kind != OK {
		return out
	}
	if out.MessageID == "" {
		return Outcome{Kind: Fatal, Err: errors.New("create response carried no message ID")}
	}
	return out
}

// EditMessage patches an existing webhook message in place.
func (c *Client) EditMessage(ctx context.Context, webhookURL, messageID string, payload render.Payload) Outcome {
	return c.do(ctx, http.MethodPatch, webhookURL+"/messages/"+messageID, payload)
}

// do executes one webhook call and classifies the result.
func (c *Client) do(ctx context.Context, method, url string, payload render.Payload) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Kind: Fatal, Err: fmt.Errorf("marshalling payload: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: Fatal, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failure or exhausted retries on 429/5xx.
		return Outcome{Kind: Retryable, Err: fmt.Errorf("%s %s: %w", method, url, err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return classify(resp.StatusCode, respBody, method, url)
}

// classify maps an HTTP response to an Outcome per the delivery taxonomy.
func classify(status int, body []byte, method, url string) Outcome {
	switch {
	case status >= 200 && status < 300:
		var msg struct {
			ID string `json:"id"`
		}
		// A 204 (edit without wait) has no body; that is still OK.
		_ = json.Unmarshal(body, &msg)
		return Outcome{Kind: OK, MessageID: msg.ID}

	case status == http.StatusNotFound:
		return Outcome{Kind: NotFound, Err: fmt.Errorf("%s %s: status 404", method, url)}

	case status == http.StatusTooManyRequests || status >= 500:
		return Outcome{Kind: Retryable, Err: fmt.Errorf("%s %s: status %d", method, url, status)}

	default:
		var discordErr struct {
			Code int `json:"code"`
		}
		if json.Unmarshal(body, &discordErr) == nil && discordErr.Code == discordUnknownMessage {
			return Outcome{Kind: NotFound, Err: fmt.Errorf("%s %s: unknown message (code %d)", method, url, discordUnknownMessage)}
		}
		return Outcome{Kind: Fatal, Err: fmt.Errorf("%s %s: status %d: %s", method, url, status, body)}
	}
}
