package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vilaca/triage-dashboard/internal/triage"
)

// Run starts the poller and blocks until the user quits.
func Run(ctx context.Context, session *triage.Session, poller *triage.Poller, exportDir string) error {
	model := New(session, poller, exportDir)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	poller.OnResult = func(r triage.Result) {
		program.Send(MsgPolled{Result: r})
	}
	poller.Start(ctx)
	defer poller.Stop()

	_, err := program.Run()
	return err
}
