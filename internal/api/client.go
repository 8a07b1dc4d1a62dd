package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxResponseBytes caps the snapshot document size. The live list is a few
// hundred KB at most; anything larger is a malformed or hostile response.
const maxResponseBytes = 10 << 20 // 10 MiB

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client fetches session snapshots from the upstream listing service.
type Client struct {
	url  string
	http *retryablehttp.Client
}

// NewClient creates a snapshot client for the given listing URL. The timeout
// bounds each fetch including retries, so a slow upstream cannot stall a
// poll cycle.
func NewClient(url string, timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil // suppress retryablehttp's default logging
	return &Client{url: url, http: rc}
}

// FetchSnapshot performs one GET against the listing URL and parses the
// response. Any failure (network, non-200, malformed JSON) returns an error;
// the caller treats that as "no snapshot this cycle" and carries state over
// unchanged.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", c.url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", c.url, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", c.url, maxResponseBytes)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parsing session list: %w", err)
	}
	return &snap, nil
}
