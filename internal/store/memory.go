package store

import (
	"context"
	"sync"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]domain.Issue
	order []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]domain.Issue)}
}

func (s *MemoryStore) UpsertIfAbsent(ctx context.Context, issue domain.Issue) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := issue.Key()
	if _, exists := s.docs[key]; exists {
		return false, nil
	}
	s.docs[key] = newRecord(issue)
	s.order = append(s.order, key)
	return true, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.docs[id]
	if !exists {
		return nil, ErrNotFound
	}
	doc.Status = status
	s.docs[id] = doc
	return &doc, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]domain.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Issue, 0, len(s.order))
	for _, key := range s.order {
		all = append(all, s.docs[key])
	}
	return all, nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = make(map[string]domain.Issue)
	s.order = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
