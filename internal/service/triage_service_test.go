package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/triage-dashboard/internal/domain"
	"github.com/vilaca/triage-dashboard/internal/store"
)

// mockFetcher is a test double for Fetcher.
type mockFetcher struct {
	result *domain.FetchResult
	err    error
}

func (m *mockFetcher) Fetch(ctx context.Context, org string, exclude map[int64]struct{}) (*domain.FetchResult, error) {
	return m.result, m.err
}

// failingStore fails every upsert after the first n.
type failingStore struct {
	*store.MemoryStore
	allowed int
}

func (s *failingStore) UpsertIfAbsent(ctx context.Context, issue domain.Issue) (bool, error) {
	if s.allowed == 0 {
		return false, errors.New("store unavailable")
	}
	s.allowed--
	return s.MemoryStore.UpsertIfAbsent(ctx, issue)
}

func fetched(issues ...domain.Issue) *mockFetcher {
	return &mockFetcher{result: &domain.FetchResult{Issues: issues}}
}

// TestSync_StatusSurvivesResync tests that verdicts are durable across polls.
func TestSync_StatusSurvivesResync(t *testing.T) {
	// Arrange
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewTriageService(fetched(domain.Issue{ID: 1, Title: "a"}, domain.Issue{ID: 2, Title: "b"}), st, "acme", discardLogger())
	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	// Act
	_, err = svc.UpdateStatus(ctx, "1", domain.StatusValid)
	require.NoError(t, err)
	all, err := svc.Sync(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.StatusValid, all[0].Status)
	assert.Equal(t, domain.StatusUnmarked, all[1].Status)
}

// TestSync_KeepsIssuesNoLongerUpstream tests that the listing is the store, not the poll.
func TestSync_KeepsIssuesNoLongerUpstream(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fetcher := fetched(domain.Issue{ID: 1})
	svc := NewTriageService(fetcher, st, "acme", discardLogger())
	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	fetcher.result = &domain.FetchResult{Issues: []domain.Issue{{ID: 2}}}
	all, err := svc.Sync(ctx)

	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// TestSync_PartialFailureIsRecoverable tests idempotent retry after a store failure.
func TestSync_PartialFailureIsRecoverable(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{MemoryStore: store.NewMemoryStore(), allowed: 1}
	svc := NewTriageService(fetched(domain.Issue{ID: 1}, domain.Issue{ID: 2}), st, "acme", discardLogger())

	_, err := svc.Sync(ctx)
	require.Error(t, err)

	st.allowed = 10
	all, err := svc.Sync(ctx)

	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// TestSync_FetchError tests that upstream failures propagate.
func TestSync_FetchError(t *testing.T) {
	svc := NewTriageService(&mockFetcher{err: errors.New("upstream down")}, store.NewMemoryStore(), "acme", discardLogger())

	_, err := svc.Sync(context.Background())

	assert.EqualError(t, err, "upstream down")
}

// TestUpdateStatus_NotFound tests the not-found path.
func TestUpdateStatus_NotFound(t *testing.T) {
	svc := NewTriageService(fetched(), store.NewMemoryStore(), "acme", discardLogger())

	_, err := svc.UpdateStatus(context.Background(), "404", domain.StatusInvalid)

	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestExport tests CSV output of persisted records.
func TestExport(t *testing.T) {
	ctx := context.Background()
	svc := NewTriageService(fetched(domain.Issue{ID: 1, Title: "a,b"}), store.NewMemoryStore(), "acme", discardLogger())
	_, err := svc.Sync(ctx)
	require.NoError(t, err)
	var buf bytes.Buffer

	require.NoError(t, svc.Export(ctx, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"1","a,b"`))
	assert.True(t, strings.HasSuffix(lines[1], `"UNMARKED"`))
}

// TestSync_RecordsIssueless tests that the last issueless list is kept.
func TestSync_RecordsIssueless(t *testing.T) {
	fetcher := &mockFetcher{result: &domain.FetchResult{IssuelessRepos: []domain.IssuelessRepo{{Name: "docs"}}}}
	svc := NewTriageService(fetcher, store.NewMemoryStore(), "acme", discardLogger())
	assert.Empty(t, svc.Issueless())

	_, err := svc.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.IssuelessRepo{{Name: "docs"}}, svc.Issueless())
}
