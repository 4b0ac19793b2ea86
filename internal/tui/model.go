// Package tui is the terminal client for triaging issues.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"

	"github.com/vilaca/triage-dashboard/internal/domain"
	"github.com/vilaca/triage-dashboard/internal/export"
	"github.com/vilaca/triage-dashboard/internal/triage"
)

// Tab is one of the four views.
type Tab int

const (
	TabUnmarked Tab = iota
	TabValid
	TabInvalid
	TabIssueless
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabUnmarked:
		return "Unmarked"
	case TabValid:
		return "Valid"
	case TabInvalid:
		return "Invalid"
	case TabIssueless:
		return "Issueless"
	}
	return "?"
}

// Poller is the part of the poll scheduler the UI drives.
type Poller interface {
	Trigger()
}

// Model is the bubbletea model of the triage client.
type Model struct {
	session   *triage.Session
	poller    Poller
	exportDir string

	keys  KeyMap
	help  help.Model
	table table.Model

	tab      Tab
	snapshot triage.Snapshot
	loading  bool
	err      error
	status   string

	width  int
	height int
}

// New creates the model. The first poll is expected to be in flight.
func New(session *triage.Session, poller Poller, exportDir string) *Model {
	m := &Model{
		session:   session,
		poller:    poller,
		exportDir: exportDir,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		table:     table.New(table.WithFocused(true), table.WithHeight(15)),
		loading:   true,
	}
	m.refresh()
	return m
}

// refresh reloads the snapshot and rebuilds the table for the current tab.
func (m *Model) refresh() {
	m.snapshot = m.session.Snapshot()
	cursor := m.table.Cursor()

	// Rows must be cleared before the column count changes.
	m.table.SetRows(nil)
	if m.tab == TabIssueless {
		m.table.SetColumns([]table.Column{{Title: "Repository", Width: m.columnWidth(60)}})
		rows := make([]table.Row, 0, len(m.snapshot.Issueless))
		for _, r := range m.snapshot.Issueless {
			rows = append(rows, table.Row{r.Name})
		}
		m.table.SetRows(rows)
	} else {
		m.table.SetColumns([]table.Column{
			{Title: "ID", Width: 12},
			{Title: "Repo", Width: 18},
			{Title: "Title", Width: m.columnWidth(40)},
			{Title: "Reporter", Width: 16},
			{Title: "Team", Width: 16},
			{Title: "Created", Width: 20},
		})
		issues := m.currentIssues()
		rows := make([]table.Row, 0, len(issues))
		for _, i := range issues {
			rows = append(rows, table.Row{
				strconv.FormatInt(i.ID, 10), i.Repo, i.Title, i.Reporter, i.ReporterTeam, i.CreatedAt,
			})
		}
		m.table.SetRows(rows)
	}

	if n := len(m.table.Rows()); cursor >= n {
		cursor = n - 1
	}
	m.table.SetCursor(max(cursor, 0))
}

// columnWidth gives the flexible column whatever the fixed ones leave.
func (m *Model) columnWidth(fallback int) int {
	if m.width == 0 {
		return fallback
	}
	return max(m.width-12-18-16-16-20-14, 20)
}

func (m *Model) currentIssues() []domain.Issue {
	switch m.tab {
	case TabUnmarked:
		return m.snapshot.Unmarked
	case TabValid:
		return m.snapshot.Valid
	case TabInvalid:
		return m.snapshot.Invalid
	}
	return nil
}

// SelectedIssue returns the issue under the cursor, if any.
func (m *Model) SelectedIssue() (domain.Issue, bool) {
	issues := m.currentIssues()
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(issues) {
		return domain.Issue{}, false
	}
	return issues[cursor], true
}

func (m *Model) classify(verdict domain.Status) {
	issue, ok := m.SelectedIssue()
	if !ok {
		return
	}
	if err := m.session.Classify(issue, verdict); err != nil {
		m.err = err
		return
	}
	m.status = fmt.Sprintf("#%d marked %s", issue.ID, strings.ToLower(string(verdict)))
	m.refresh()
}

// exportCurrent writes the current tab as CSV and returns the file path.
func (m *Model) exportCurrent() (string, error) {
	var records []export.Record
	if m.tab == TabIssueless {
		records = export.RepoRecords(m.snapshot.Issueless)
	} else {
		records = export.IssueRecords(m.currentIssues())
	}
	if len(records) == 0 {
		return "", export.ErrNoRecords
	}

	path := filepath.Join(m.exportDir, "triage-"+strings.ToLower(m.tab.String())+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := export.Write(f, records); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
