package triage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// TestFileStateStore_MissingFile tests that no file means empty state.
func TestFileStateStore_MissingFile(t *testing.T) {
	store := NewFileStateStore(filepath.Join(t.TempDir(), "state.json"), discardLogger())

	state, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

// TestFileStateStore_RoundTrip tests save and load through the fixed keys.
func TestFileStateStore_RoundTrip(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStateStore(path, discardLogger())
	want := State{
		ValidIssues:    []domain.Issue{issue(1, "a")},
		InvalidIssues:  []domain.Issue{issue(2, "b")},
		IssuelessRepos: []domain.IssuelessRepo{{Name: "c"}},
	}

	// Act
	require.NoError(t, store.Save(want))
	got, err := store.Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, want, got)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"triage.validIssues"`)
	assert.Contains(t, string(data), `"triage.invalidIssues"`)
	assert.Contains(t, string(data), `"triage.issuelessRepos"`)
	assert.NoFileExists(t, path+".tmp")
}

// TestFileStateStore_CorruptEntryDegrades tests per-key recovery.
func TestFileStateStore_CorruptEntryDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{
  "triage.validIssues": "not an array",
  "triage.invalidIssues": [{"id": 9, "title": "x", "repo": "r"}],
  "triage.issuelessRepos": [{"name": 42}]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	store := NewFileStateStore(path, discardLogger())

	state, err := store.Load()

	require.NoError(t, err)
	assert.Empty(t, state.ValidIssues)
	require.Len(t, state.InvalidIssues, 1)
	assert.Equal(t, int64(9), state.InvalidIssues[0].ID)
	assert.Empty(t, state.IssuelessRepos)
}

// TestFileStateStore_CorruptFile tests that an unreadable document yields empty state.
func TestFileStateStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o644))
	store := NewFileStateStore(path, discardLogger())

	state, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, State{}, state)

	// A session over the corrupt file still works.
	s := NewSession(store, discardLogger())
	_, err = s.Reconcile([]domain.Issue{issue(1, "a")}, nil)
	require.NoError(t, err)
}

// TestFileStateStore_Clear tests removal, including of a missing file.
func TestFileStateStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStateStore(path, discardLogger())
	require.NoError(t, store.Save(State{}))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	assert.NoFileExists(t, path)
}
