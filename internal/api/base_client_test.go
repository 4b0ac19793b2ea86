package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient is a test double for HTTPClient.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func response(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newTestBaseClient(doFunc func(req *http.Request) (*http.Response, error)) (*BaseClient, *[]time.Duration) {
	var waits []time.Duration
	client := NewBaseClient(ClientConfig{BaseURL: "https://api.example.com"}, &mockHTTPClient{doFunc: doFunc})
	client.Sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return client, &waits
}

// TestBaseClient_RetriesRateLimited tests that 429 responses are retried using Retry-After.
func TestBaseClient_RetriesRateLimited(t *testing.T) {
	// Arrange
	calls := 0
	client, waits := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return response(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"2"}}, "slow down"), nil
		}
		return response(http.StatusOK, nil, "[]"), nil
	})
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	// Act
	resp, err := client.Do(context.Background(), req)

	// Assert
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, *waits)
}

// TestBaseClient_ExponentialBackoff tests the fallback schedule and the retry cap.
func TestBaseClient_ExponentialBackoff(t *testing.T) {
	calls := 0
	client, waits := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		calls++
		return response(http.StatusTooManyRequests, nil, ""), nil
	})
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	resp, err := client.Do(context.Background(), req)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, MaxRetryAttempts+1, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *waits)
}

// TestBaseClient_PrimaryLimitUsesReset tests 403 with an exhausted quota.
func TestBaseClient_PrimaryLimitUsesReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	calls := 0
	client, waits := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			header := http.Header{}
			header.Set("X-RateLimit-Remaining", "0")
			header.Set("X-RateLimit-Reset", "1700000010")
			return response(http.StatusForbidden, header, "API rate limit exceeded"), nil
		}
		return response(http.StatusOK, nil, "[]"), nil
	})
	client.Now = func() time.Time { return now }
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	resp, err := client.Do(context.Background(), req)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, []time.Duration{10 * time.Second}, *waits)
}

// TestBaseClient_ForbiddenIsNotRetried tests that permission errors pass straight through.
func TestBaseClient_ForbiddenIsNotRetried(t *testing.T) {
	calls := 0
	client, waits := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		calls++
		return response(http.StatusForbidden, nil, "forbidden"), nil
	})
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	resp, err := client.Do(context.Background(), req)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

// TestBaseClient_SecondaryLimitRetried tests that a 403 secondary limit with quota left is retried.
func TestBaseClient_SecondaryLimitRetried(t *testing.T) {
	// Arrange
	calls := 0
	client, waits := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			header := http.Header{}
			header.Set("Retry-After", "2")
			header.Set("X-RateLimit-Remaining", "4000")
			return response(http.StatusForbidden, header, "You have exceeded a secondary rate limit"), nil
		}
		return response(http.StatusOK, nil, "[]"), nil
	})
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	// Act
	resp, err := client.Do(context.Background(), req)

	// Assert
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, *waits)
}

// TestBaseClient_SecondaryLimitByMessage tests a 403 without hints whose body names the limit.
func TestBaseClient_SecondaryLimitByMessage(t *testing.T) {
	calls := 0
	client, waits := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return response(http.StatusForbidden, nil, `{"message":"You have exceeded a secondary rate limit."}`), nil
		}
		return response(http.StatusOK, nil, "[]"), nil
	})
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	resp, err := client.Do(context.Background(), req)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{InitialBackoff}, *waits)
}

// TestBaseClient_ForbiddenBodyStillReadable tests that peeking a 403 body does not consume it.
func TestBaseClient_ForbiddenBodyStillReadable(t *testing.T) {
	client, _ := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		return response(http.StatusForbidden, nil, "Must have admin rights"), nil
	})
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	resp, err := client.Do(context.Background(), req)

	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Must have admin rights", string(body))
}

// TestBaseClient_CancelledWhileWaitingForSlot tests the semaphore honours context cancellation.
func TestBaseClient_CancelledWhileWaitingForSlot(t *testing.T) {
	client, _ := newTestBaseClient(func(req *http.Request) (*http.Response, error) {
		return response(http.StatusOK, nil, ""), nil
	})
	for i := 0; i < cap(client.Semaphore); i++ {
		client.Semaphore <- struct{}{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	_, err := client.Do(ctx, req)

	assert.ErrorIs(t, err, context.Canceled)
}

// TestIsRateLimited tests classification of APIError values.
func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&APIError{StatusCode: 429}))
	assert.True(t, IsRateLimited(&APIError{StatusCode: 403, Body: "API rate limit exceeded"}))
	assert.False(t, IsRateLimited(&APIError{StatusCode: 403, Body: "Must have admin rights"}))
	assert.True(t, IsNotFound(&APIError{StatusCode: 404}))
	assert.Equal(t, 502, StatusCode(&APIError{StatusCode: 502}))
	assert.Equal(t, 0, StatusCode(io.EOF))
}
