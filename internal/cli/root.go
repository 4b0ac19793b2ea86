// Package cli provides the command-line interface for triage-dashboard.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vilaca/triage-dashboard/internal/config"
	"github.com/vilaca/triage-dashboard/internal/logging"
)

// env is what every command needs after flags are parsed.
type env struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "triage-dashboard",
		Short: "Triage open issues across a GitHub organization",
		Long: `triage-dashboard pulls open issues from every repository of a GitHub
organization, tags each reporter with their team and lets you mark issues
valid or invalid.

Run "serve" for the HTTP dashboard, then "tui" or "poll" against it.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newServeCommand(e),
		newPollCommand(e),
		newTUICommand(e),
		newExportCommand(e),
		newResetCommand(e),
		newConfigCommand(e),
		newIssuesCommand(e),
	)
	return root
}
