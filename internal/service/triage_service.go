package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vilaca/triage-dashboard/internal/domain"
	"github.com/vilaca/triage-dashboard/internal/export"
	"github.com/vilaca/triage-dashboard/internal/store"
)

// Fetcher is the upstream issue source used by TriageService.
type Fetcher interface {
	Fetch(ctx context.Context, org string, exclude map[int64]struct{}) (*domain.FetchResult, error)
}

// TriageService synchronizes upstream issues into a triage store and applies
// human verdicts. Status changes survive later syncs because sync never
// overwrites an existing document.
type TriageService struct {
	fetcher Fetcher
	store   store.Store
	org     string
	logger  *slog.Logger

	mu        sync.RWMutex
	issueless []domain.IssuelessRepo
}

// NewTriageService creates a new triage service.
func NewTriageService(fetcher Fetcher, st store.Store, org string, logger *slog.Logger) *TriageService {
	return &TriageService{
		fetcher: fetcher,
		store:   st,
		org:     org,
		logger:  logger,
	}
}

// Sync fetches every open issue, inserts unseen ones as UNMARKED and returns
// every persisted record. A store failure midway leaves earlier inserts in
// place; the next sync picks up the rest.
func (s *TriageService) Sync(ctx context.Context) ([]domain.Issue, error) {
	startTime := time.Now()

	result, err := s.fetcher.Fetch(ctx, s.org, nil)
	if err != nil {
		return nil, err
	}

	created := 0
	for _, issue := range result.Issues {
		ok, err := s.store.UpsertIfAbsent(ctx, issue)
		if err != nil {
			return nil, fmt.Errorf("sync issue %d: %w", issue.ID, err)
		}
		if ok {
			created++
		}
	}

	s.mu.Lock()
	s.issueless = slices.Clone(result.IssuelessRepos)
	s.mu.Unlock()

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	s.logger.Info("synced triage store",
		"fetched", len(result.Issues),
		"created", created,
		"total", len(all),
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
	return all, nil
}

// List returns every persisted record without contacting upstream.
func (s *TriageService) List(ctx context.Context) ([]domain.Issue, error) {
	return s.store.ListAll(ctx)
}

// Issueless returns the issueless repositories reported by the last sync.
func (s *TriageService) Issueless() []domain.IssuelessRepo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.issueless)
}

// UpdateStatus records a status for a persisted issue.
func (s *TriageService) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error) {
	updated, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("issue status updated", "id", id, "status", status)
	return updated, nil
}

// Export writes every persisted record as CSV.
func (s *TriageService) Export(ctx context.Context, w io.Writer) error {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	return export.Write(w, export.IssueRecords(all))
}
