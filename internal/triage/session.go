// Package triage holds the client side of triage: a session that merges
// polled issues into local state without resurrecting classified ones.
package triage

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// ErrInvalidVerdict is returned when classifying with a status other than VALID or INVALID.
var ErrInvalidVerdict = errors.New("verdict must be VALID or INVALID")

// Snapshot is a copy of every set held by a session.
type Snapshot struct {
	Unmarked  []domain.Issue
	Valid     []domain.Issue
	Invalid   []domain.Issue
	Issueless []domain.IssuelessRepo
}

// Session owns the unmarked, valid and invalid issue sets and the issueless
// repository set. An issue id is in at most one issue set at any time.
// Every mutation is persisted through the injected StateStore.
type Session struct {
	mu        sync.Mutex
	store     StateStore
	logger    *slog.Logger
	unmarked  []domain.Issue
	valid     []domain.Issue
	invalid   []domain.Issue
	issueless []domain.IssuelessRepo
}

// NewSession creates a session seeded from store. A load failure is logged
// and the session starts empty.
func NewSession(store StateStore, logger *slog.Logger) *Session {
	s := &Session{store: store, logger: logger}

	state, err := store.Load()
	if err != nil {
		logger.Warn("failed to load local state, starting empty", "error", err)
		return s
	}

	s.valid = uniqueIssues(state.ValidIssues)
	s.invalid = uniqueIssues(state.InvalidIssues)
	// A hand-edited file could list one id under both verdicts.
	s.invalid = slices.DeleteFunc(s.invalid, func(i domain.Issue) bool {
		return containsID(s.valid, i.ID)
	})
	s.issueless = uniqueRepos(state.IssuelessRepos)
	return s
}

// Reconcile merges one poll result into the session.
//
// Repositories that now have a live issue leave the issueless set, newly
// reported issueless repositories join it, and entries for repositories the
// poll said nothing about are kept. Issues whose id is already in any set
// are ignored; the rest are appended to unmarked. Classified issues are never
// dropped, so a repository whose issues all closed can be issueless while
// still holding valid or invalid entries.
func (s *Session) Reconcile(serverIssues []domain.Issue, serverIssueless []domain.IssuelessRepo) (added int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]struct{}, len(serverIssues))
	for _, issue := range serverIssues {
		live[issue.Repo] = struct{}{}
	}

	s.issueless = slices.DeleteFunc(s.issueless, func(r domain.IssuelessRepo) bool {
		_, ok := live[r.Name]
		return ok
	})
	for _, r := range serverIssueless {
		if _, ok := live[r.Name]; ok {
			continue
		}
		if !slices.Contains(s.issueless, r) {
			s.issueless = append(s.issueless, r)
		}
	}

	known := make(map[int64]struct{})
	for _, set := range [][]domain.Issue{s.unmarked, s.valid, s.invalid} {
		for _, issue := range set {
			known[issue.ID] = struct{}{}
		}
	}

	for _, issue := range serverIssues {
		if _, ok := known[issue.ID]; ok {
			continue
		}
		known[issue.ID] = struct{}{}
		s.unmarked = append(s.unmarked, issue)
		added++
	}

	return added, s.persist()
}

// Classify moves issue into the set matching verdict. The issue is removed
// from unmarked and from the other verdict set if present, and added to the
// target set unless it is already there.
func (s *Session) Classify(issue domain.Issue, verdict domain.Status) error {
	if !verdict.IsVerdict() {
		return fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.unmarked = removeID(s.unmarked, issue.ID)

	target, other := &s.valid, &s.invalid
	if verdict == domain.StatusInvalid {
		target, other = &s.invalid, &s.valid
	}
	*other = removeID(*other, issue.ID)
	if !containsID(*target, issue.ID) {
		*target = append(*target, issue)
	}

	s.logger.Info("issue classified", "id", issue.ID, "repo", issue.Repo, "verdict", verdict)
	return s.persist()
}

// ExcludedIDs returns the valid and invalid ids, sorted. Sending them with the
// next poll keeps classified issues out of the result.
func (s *Session) ExcludedIDs() (valid, invalid []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.valid), sortedIDs(s.invalid)
}

// Snapshot returns copies of all sets.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Unmarked:  slices.Clone(s.unmarked),
		Valid:     slices.Clone(s.valid),
		Invalid:   slices.Clone(s.invalid),
		Issueless: slices.Clone(s.issueless),
	}
}

// Reset clears every set and persists the empty state.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unmarked, s.valid, s.invalid, s.issueless = nil, nil, nil, nil
	s.logger.Info("local triage state reset")
	return s.persist()
}

// persist must be called with mu held.
func (s *Session) persist() error {
	err := s.store.Save(State{
		ValidIssues:    slices.Clone(s.valid),
		InvalidIssues:  slices.Clone(s.invalid),
		IssuelessRepos: slices.Clone(s.issueless),
	})
	if err != nil {
		s.logger.Error("failed to save local state", "error", err)
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func containsID(issues []domain.Issue, id int64) bool {
	return slices.ContainsFunc(issues, func(i domain.Issue) bool { return i.ID == id })
}

func removeID(issues []domain.Issue, id int64) []domain.Issue {
	return slices.DeleteFunc(issues, func(i domain.Issue) bool { return i.ID == id })
}

// uniqueIssues keeps the first occurrence of each id.
func uniqueIssues(issues []domain.Issue) []domain.Issue {
	seen := make(map[int64]struct{}, len(issues))
	out := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if _, ok := seen[issue.ID]; ok {
			continue
		}
		seen[issue.ID] = struct{}{}
		out = append(out, issue)
	}
	return out
}

func uniqueRepos(repos []domain.IssuelessRepo) []domain.IssuelessRepo {
	out := make([]domain.IssuelessRepo, 0, len(repos))
	for _, r := range repos {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

func sortedIDs(issues []domain.Issue) []int64 {
	ids := make([]int64, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	slices.Sort(ids)
	return ids
}
