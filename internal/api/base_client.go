package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// MaxConcurrentRequests limits concurrent API requests to avoid overwhelming the API
	MaxConcurrentRequests = 5
	// MaxRetryAttempts is the maximum number of retry attempts for rate-limited requests
	MaxRetryAttempts = 3
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 100
	// InitialBackoff is the first wait after a rate-limited response without hints
	InitialBackoff = 1 * time.Second
	// MaxBackoff caps any single wait, including server-provided hints
	MaxBackoff = 60 * time.Second
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseClient contains common fields and functionality for all API clients.
// It bounds concurrency, paces requests and retries rate-limited responses.
type BaseClient struct {
	BaseURL    string
	Token      string
	HTTPClient HTTPClient
	Semaphore  chan struct{} // Limits concurrent requests
	Limiter    *rate.Limiter // nil disables pacing

	// Sleep waits between retries. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now is used to interpret X-RateLimit-Reset. Replaced in tests.
	Now func() time.Time
}

// NewBaseClient creates a new base client with rate limiting.
func NewBaseClient(config ClientConfig, httpClient HTTPClient) *BaseClient {
	concurrency := config.MaxConcurrentRequests
	if concurrency <= 0 {
		concurrency = MaxConcurrentRequests
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), concurrency)
	}

	return &BaseClient{
		BaseURL:    config.BaseURL,
		Token:      config.Token,
		HTTPClient: httpClient,
		Semaphore:  make(chan struct{}, concurrency),
		Limiter:    limiter,
		Sleep:      sleepContext,
		Now:        time.Now,
	}
}

// Do sends req with concurrency bounding, pacing and rate-limit retries.
// The caller closes the returned response body. Only bodiless requests are
// retried, since the request is cloned for each attempt.
func (c *BaseClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case c.Semaphore <- struct{}{}:
		defer func() { <-c.Semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	backoff := InitialBackoff
	for attempt := 0; ; attempt++ {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.HTTPClient.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if !isRateLimitedResponse(resp) || attempt >= MaxRetryAttempts || req.Body != nil {
			return resp, nil
		}

		wait := c.retryAfter(resp.Header, backoff)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := c.Sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

// retryAfter picks the wait before the next attempt: Retry-After first,
// then X-RateLimit-Reset, then the exponential fallback.
func (c *BaseClient) retryAfter(header http.Header, fallback time.Duration) time.Duration {
	wait := fallback
	if s := header.Get("Retry-After"); s != "" {
		if seconds, err := strconv.Atoi(s); err == nil && seconds > 0 {
			wait = time.Duration(seconds) * time.Second
		}
	} else if s := header.Get("X-RateLimit-Reset"); s != "" && header.Get("X-RateLimit-Remaining") == "0" {
		if reset, err := strconv.ParseInt(s, 10, 64); err == nil {
			if d := time.Unix(reset, 0).Sub(c.Now()); d > 0 {
				wait = d
			}
		}
	}
	if wait > MaxBackoff {
		wait = MaxBackoff
	}
	return wait
}

// isRateLimitedResponse covers 429, the primary limit (403 with an exhausted
// quota) and the secondary limit (403 with Retry-After or a rate limit
// message in the body). The body is peeked and left readable.
func isRateLimitedResponse(resp *http.Response) bool {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true
	case resp.StatusCode != http.StatusForbidden:
		return false
	case resp.Header.Get("X-RateLimit-Remaining") == "0", resp.Header.Get("Retry-After") != "":
		return true
	}
	return isRateLimitMessage(string(peekBody(resp, 4<<10)))
}

// peekBody returns up to limit bytes of the body and rewinds it for the caller.
func peekBody(resp *http.Response, limit int64) []byte {
	if resp.Body == nil {
		return nil
	}
	head, _ := io.ReadAll(io.LimitReader(resp.Body, limit))
	resp.Body = readCloser{io.MultiReader(bytes.NewReader(head), resp.Body), resp.Body}
	return head
}

type readCloser struct {
	io.Reader
	io.Closer
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
