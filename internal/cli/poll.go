package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vilaca/triage-dashboard/internal/triage"
	"github.com/vilaca/triage-dashboard/internal/tui"
)

func newPollCommand(e *env) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the dashboard and reconcile local triage state without a UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			session, _ := newSession(e.cfg, e.logger)
			poller := triage.NewPoller(session, newRemote(e.cfg, e.logger), e.cfg.PollInterval(), e.logger)

			if once {
				if err := poller.PollOnce(ctx); err != nil {
					return err
				}
				return printCounts(cmd, session.Snapshot())
			}

			poller.OnResult = func(r triage.Result) {
				if r.Err != nil {
					return
				}
				snap := session.Snapshot()
				e.logger.Info("local state",
					"unmarked", len(snap.Unmarked),
					"valid", len(snap.Valid),
					"invalid", len(snap.Invalid),
					"issueless", len(snap.Issueless),
				)
			}
			poller.Start(ctx)
			<-ctx.Done()
			poller.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "poll a single time and print counts")
	return cmd
}

func newTUICommand(e *env) *cobra.Command {
	var exportDir string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Triage issues interactively in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, _ := newSession(e.cfg, e.logger)
			poller := triage.NewPoller(session, newRemote(e.cfg, e.logger), e.cfg.PollInterval(), e.logger)
			return tui.Run(cmd.Context(), session, poller, exportDir)
		},
	}

	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "directory for CSV exports")
	return cmd
}

func printCounts(cmd *cobra.Command, snap triage.Snapshot) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "unmarked  %d\nvalid     %d\ninvalid   %d\nissueless %d\n",
		len(snap.Unmarked), len(snap.Valid), len(snap.Invalid), len(snap.Issueless))
	return err
}
