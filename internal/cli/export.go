package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vilaca/triage-dashboard/internal/export"
)

func newExportCommand(e *env) *cobra.Command {
	var (
		local  bool
		set    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export triage records as CSV",
		Long: `Export the dashboard's triage store as CSV. With --local, export one set
of the local triage state instead (unmarked, valid, invalid or issueless).
Unmarked issues live only in memory, so a local export of that set is
always empty; poll first or use the TUI.`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, createErr := os.Create(output)
				if createErr != nil {
					return createErr
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}

			if !local {
				return newRemote(e.cfg, e.logger).ExportCSV(cmd.Context(), w)
			}

			records, err := localRecords(e, set)
			if err != nil {
				return err
			}
			return export.Write(w, records)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "export local triage state instead of the server store")
	cmd.Flags().StringVar(&set, "set", "valid", "local set to export: unmarked, valid, invalid or issueless")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func localRecords(e *env, set string) ([]export.Record, error) {
	session, _ := newSession(e.cfg, e.logger)
	snap := session.Snapshot()

	switch strings.ToLower(set) {
	case "unmarked":
		return export.IssueRecords(snap.Unmarked), nil
	case "valid":
		return export.IssueRecords(snap.Valid), nil
	case "invalid":
		return export.IssueRecords(snap.Invalid), nil
	case "issueless":
		return export.RepoRecords(snap.Issueless), nil
	}
	return nil, fmt.Errorf("unknown set %q", set)
}
