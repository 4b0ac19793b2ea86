// Package remote talks to a running triage dashboard over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vilaca/triage-dashboard/internal/api"
	"github.com/vilaca/triage-dashboard/internal/domain"
)

// DefaultTimeout bounds one dashboard request. A fetch walks the whole
// organization, so it is generous.
const DefaultTimeout = 3 * time.Minute

// Error is a non-2xx dashboard response.
type Error struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s (status %d): %s", msg, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
}

// Client calls the dashboard API.
type Client struct {
	baseURL    string
	httpClient api.HTTPClient
	logger     *slog.Logger
}

// NewClient creates a client for the dashboard at baseURL.
// Follows Dependency Injection - the HTTP client is supplied by the caller.
func NewClient(baseURL string, httpClient api.HTTPClient, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchIssues asks the dashboard for open issues, leaving out the given ids.
func (c *Client) FetchIssues(ctx context.Context, validIDs, invalidIDs []int64) (*domain.FetchResult, error) {
	query := url.Values{}
	query.Set("validIds", joinIDs(validIDs))
	query.Set("invalidIds", joinIDs(invalidIDs))

	var result domain.FetchResult
	if err := c.getJSON(ctx, "/api/github?"+query.Encode(), &result); err != nil {
		return nil, err
	}
	c.logger.Debug("fetched issues from dashboard", "issues", len(result.Issues), "issueless", len(result.IssuelessRepos))
	return &result, nil
}

// ListIssues syncs and lists every persisted record.
func (c *Client) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	var body struct {
		Issues []domain.Issue `json:"issues"`
	}
	if err := c.getJSON(ctx, "/api/issues", &body); err != nil {
		return nil, err
	}
	return body.Issues, nil
}

// UpdateStatus sets the status of a persisted record.
func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error) {
	payload, err := json.Marshal(map[string]string{"id": id, "status": string(status)})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/issues", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var issue domain.Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &issue, nil
}

// ExportCSV copies the server-side CSV export into w.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/issues/export.csv", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends a request and converts non-2xx responses into *Error.
// On success the caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	remoteErr := &Error{StatusCode: resp.StatusCode}
	if json.Unmarshal(data, &payload) == nil {
		// /api/github uses message+error; the issue endpoints use error alone.
		if payload.Message != "" {
			remoteErr.Message, remoteErr.Detail = payload.Message, payload.Error
		} else {
			remoteErr.Message = payload.Error
		}
	} else {
		remoteErr.Detail = strings.TrimSpace(string(data))
	}
	return nil, remoteErr
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
