// Package api provides the HTTP plumbing shared by the client core: base URL,
// timeout, bearer token and the mapping from transport/status failures to the
// sentinel error taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"costtracker/internal/errs"
)

const defaultTimeout = 15 * time.Second

// Client is a thin JSON client for the cost tracker API. Safe for concurrent use.
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New constructs a client for the given base URL, e.g. "https://host:8443".
// A zero timeout falls back to a default; calls never hang indefinitely.
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token used on subsequent calls.
func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// Token returns the current bearer token ("" when signed out).
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Do performs one JSON round trip. in and out may be nil. Failures come back
// wrapped in a sentinel from the errs package:
//
//	transport error, timeout, 5xx -> ErrRemoteUnavailable
//	404                           -> ErrNotFound
//	401, 403                      -> ErrUnauthorized
//	429                           -> ErrRateLimited
//	any other 4xx                 -> ErrRemoteRejected
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, errs.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(method, path, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w: %v", method, path, errs.ErrRemoteUnavailable, err)
		}
	}
	return nil
}

// statusError converts a non-2xx response into a sentinel-wrapped error,
// keeping the server-reported message when one is present.
func statusError(method, path string, resp *http.Response) error {
	var sentinel error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		sentinel = errs.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		sentinel = errs.ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		sentinel = errs.ErrRateLimited
	case resp.StatusCode >= 500:
		sentinel = errs.ErrRemoteUnavailable
	default:
		sentinel = errs.ErrRemoteRejected
	}

	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	if body.Error != "" {
		return fmt.Errorf("%s %s: %w: %s", method, path, sentinel, body.Error)
	}
	return fmt.Errorf("%s %s: %w: status %d", method, path, sentinel, resp.StatusCode)
}
