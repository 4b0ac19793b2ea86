package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

func newIssuesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List or mark issues in the dashboard's triage store",
	}
	cmd.AddCommand(newIssuesListCommand(e), newIssuesMarkCommand(e))
	return cmd
}

func newIssuesListCommand(e *env) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Sync the triage store and list its records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter domain.Status
			if status != "" {
				parsed, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = parsed
			}

			issues, err := newRemote(e.cfg, e.logger).ListIssues(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tREPO\tTEAM\tTITLE")
			for _, issue := range issues {
				if filter != "" && issue.Status != filter {
					continue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", issue.ID, issue.Status, issue.Repo, issue.ReporterTeam, issue.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show records with this status")
	return cmd
}

func newIssuesMarkCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <id> <unmarked|valid|invalid>",
		Short: "Set the status of a record in the triage store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			issue, err := newRemote(e.cfg, e.logger).UpdateStatus(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", issue.ID, issue.Status)
			return err
		},
	}
}
