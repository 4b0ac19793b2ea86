package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// mockOrgClient is a test double for OrgClient.
type mockOrgClient struct {
	teamsCalls  int
	issuesCalls int
	issuesErr   error
}

func (m *mockOrgClient) ListTeams(ctx context.Context, org string) ([]domain.Team, error) {
	m.teamsCalls++
	return []domain.Team{{ID: 1, Name: "Core", Slug: "core"}}, nil
}

func (m *mockOrgClient) ListTeamMembers(ctx context.Context, org, teamSlug string) ([]domain.Member, error) {
	return []domain.Member{{Login: "alice"}}, nil
}

func (m *mockOrgClient) ListRepositories(ctx context.Context, org string) ([]domain.Repository, error) {
	return []domain.Repository{{Name: "api"}}, nil
}

func (m *mockOrgClient) ListOpenIssues(ctx context.Context, org, repo string) ([]domain.Issue, error) {
	m.issuesCalls++
	if m.issuesErr != nil {
		return nil, m.issuesErr
	}
	return []domain.Issue{{ID: 7, Title: "crash", Repo: repo}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestCachingClient_CachesListTeams tests that a second call is served from cache.
func TestCachingClient_CachesListTeams(t *testing.T) {
	// Arrange
	mock := &mockOrgClient{}
	client := NewCachingClient(mock, NewMemoryCache(), time.Minute, discardLogger())

	// Act
	first, err1 := client.ListTeams(context.Background(), "acme")
	second, err2 := client.ListTeams(context.Background(), "acme")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, 1, mock.teamsCalls)
	assert.Equal(t, first, second)
}

// TestCachingClient_KeysIncludeArguments tests that different repos are cached separately.
func TestCachingClient_KeysIncludeArguments(t *testing.T) {
	mock := &mockOrgClient{}
	client := NewCachingClient(mock, NewMemoryCache(), time.Minute, discardLogger())

	a, err := client.ListOpenIssues(context.Background(), "acme", "a")
	require.NoError(t, err)
	b, err := client.ListOpenIssues(context.Background(), "acme", "b")
	require.NoError(t, err)

	assert.Equal(t, 2, mock.issuesCalls)
	assert.Equal(t, "a", a[0].Repo)
	assert.Equal(t, "b", b[0].Repo)
}

// TestCachingClient_DoesNotCacheErrors tests that failures are retried on the next call.
func TestCachingClient_DoesNotCacheErrors(t *testing.T) {
	mock := &mockOrgClient{issuesErr: errors.New("boom")}
	client := NewCachingClient(mock, NewMemoryCache(), time.Minute, discardLogger())

	_, err := client.ListOpenIssues(context.Background(), "acme", "a")
	require.Error(t, err)

	mock.issuesErr = nil
	issues, err := client.ListOpenIssues(context.Background(), "acme", "a")

	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Equal(t, 2, mock.issuesCalls)
}

// TestMemoryCache_Expiry tests that entries disappear after their TTL.
func TestMemoryCache_Expiry(t *testing.T) {
	// Arrange
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }
	cache.Set("k", []byte("v"), time.Second)

	// Act
	_, freshFound := cache.Get("k")
	now = now.Add(2 * time.Second)
	_, staleFound := cache.Get("k")

	// Assert
	assert.True(t, freshFound)
	assert.False(t, staleFound)
}

// TestMemcachedExpiration tests that long TTLs become absolute times instead of expiring at once.
func TestMemcachedExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.Equal(t, int32(60), memcachedExpiration(time.Minute, now))
	assert.Equal(t, int32(2_592_000), memcachedExpiration(30*24*time.Hour, now))
	assert.Equal(t, int32(1_700_000_000+31*24*3600), memcachedExpiration(31*24*time.Hour, now))
}

// TestMemcachedCache_RoundTrip runs against a real memcached when one is configured.
func TestMemcachedCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("TRIAGE_TEST_MEMCACHED_ADDR")
	if addr == "" {
		t.Skip("TRIAGE_TEST_MEMCACHED_ADDR not set")
	}

	cache := NewMemcachedCache("triage-test:", discardLogger(), addr)
	require.NoError(t, cache.Ping())

	key := generateCacheKey("roundtrip", time.Now().UnixNano())
	cache.Set(key, []byte(`["x"]`), time.Minute)
	got, found := cache.Get(key)

	assert.True(t, found)
	assert.Equal(t, `["x"]`, string(got))
}
