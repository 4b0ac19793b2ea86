package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(max(msg.Height-8, 3))
		m.refresh()
		return m, nil

	case MsgPolled:
		m.loading = false
		m.err = msg.Result.Err
		if msg.Result.Err == nil {
			m.status = fmt.Sprintf("poll added %d new issue(s) in %s", msg.Result.Added, msg.Result.Duration.Round(time.Millisecond))
		}
		m.refresh()
		return m, nil

	case MsgExported:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.err = nil
			m.status = "exported " + msg.Path
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Valid):
		m.classify(domain.StatusValid)
		return m, nil

	case key.Matches(msg, m.keys.Invalid):
		m.classify(domain.StatusInvalid)
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		m.tab = (m.tab + 1) % tabCount
		m.table.SetCursor(0)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PrevTab):
		m.tab = (m.tab + tabCount - 1) % tabCount
		m.table.SetCursor(0)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		m.poller.Trigger()
		return m, nil

	case key.Matches(msg, m.keys.Export):
		path, err := m.exportCurrent()
		return m, func() tea.Msg {
			return MsgExported{Path: path, Err: err}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}
