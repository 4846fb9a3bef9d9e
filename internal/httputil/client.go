// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/pdiddy/headline-sentiment/internal/resilience"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// StatusError is returned for non-2xx responses after retries.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client is an http.Client that paces requests per host, sets a User-Agent,
// and retries transient responses.
type Client struct {
	HTTP       *http.Client
	UserAgent  string
	MaxRetries int

	delay    time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient builds a Client from cfg. A zero RequestDelay disables pacing.
func NewClient(cfg types.HTTPConfig) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		delay:      cfg.RequestDelay,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// limiter returns the pacing limiter for host, or nil when pacing is off.
func (c *Client) limiter(host string) *rate.Limiter {
	if c.delay <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.delay), 1)
		c.limiters[host] = l
	}
	return l
}

// Do waits for the host's pacing limiter, sends req with retries, and converts a
// final non-2xx response into a StatusError. Retryable statuses are wrapped
// as resilience.TransientError. The caller closes the body on success.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if l := c.limiter(req.URL.Host); l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "waiting for rate limiter")
		}
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	serr := &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted(), Body: string(body)}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(serr, resp.StatusCode)
	}
	return nil, serr
}

// Get fetches url with the given Accept header.
func (c *Client) Get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "building request for %s", url)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.Do(ctx, req)
}
