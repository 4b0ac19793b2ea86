package triage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// Keys under which the local state file stores each set.
const (
	KeyValidIssues    = "triage.validIssues"
	KeyInvalidIssues  = "triage.invalidIssues"
	KeyIssuelessRepos = "triage.issuelessRepos"
)

// State is the persisted part of a session. Unmarked issues are not
// persisted; the next poll brings them back.
type State struct {
	ValidIssues    []domain.Issue
	InvalidIssues  []domain.Issue
	IssuelessRepos []domain.IssuelessRepo
}

// StateStore loads and saves session state.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// MemoryStateStore keeps state in memory. Useful for tests and one-shot runs.
type MemoryStateStore struct {
	mu    sync.Mutex
	state State
	Saves int
}

func (m *MemoryStateStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStateStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.Saves++
	return nil
}

// FileStateStore persists state as a JSON object holding one array per key.
// Follows Single Responsibility Principle - only handles file-based persistence.
type FileStateStore struct {
	filePath string
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewFileStateStore creates a file-backed state store.
func NewFileStateStore(filePath string, logger *slog.Logger) *FileStateStore {
	return &FileStateStore{
		filePath: filePath,
		logger:   logger,
	}
}

// Load reads the state file. A missing file yields empty state. Each key is
// decoded on its own, so a corrupt entry degrades to an empty set without
// discarding the others.
func (s *FileStateStore) Load() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state State
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.logger.Debug("no local state file", "path", s.filePath)
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read state: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("local state file is corrupt, starting empty", "path", s.filePath, "error", err)
		return state, nil
	}

	state.ValidIssues = decodeEntry[domain.Issue](s.logger, raw, KeyValidIssues)
	state.InvalidIssues = decodeEntry[domain.Issue](s.logger, raw, KeyInvalidIssues)
	state.IssuelessRepos = decodeEntry[domain.IssuelessRepo](s.logger, raw, KeyIssuelessRepos)

	s.logger.Debug("loaded local state",
		"path", s.filePath,
		"valid", len(state.ValidIssues),
		"invalid", len(state.InvalidIssues),
		"issueless", len(state.IssuelessRepos),
	)
	return state, nil
}

// decodeEntry returns nil for a missing or corrupt entry; a partially
// decodable array is discarded whole.
func decodeEntry[T any](logger *slog.Logger, raw map[string]json.RawMessage, key string) []T {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	var out []T
	if err := json.Unmarshal(value, &out); err != nil {
		logger.Warn("ignoring corrupt state entry", "key", key, "error", err)
		return nil
	}
	return out
}

// Save writes the state atomically: temp file first, then rename.
func (s *FileStateStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := map[string]any{
		KeyValidIssues:    nonNil(state.ValidIssues),
		KeyInvalidIssues:  nonNil(state.InvalidIssues),
		KeyIssuelessRepos: nonNil(state.IssuelessRepos),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Clear removes the state file.
func (s *FileStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
