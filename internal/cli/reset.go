package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vilaca/triage-dashboard/internal/store"
)

func newResetCommand(e *env) *cobra.Command {
	var server bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget all local triage state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, stateStore := newSession(e.cfg, e.logger)
			if err := session.Reset(); err != nil {
				return err
			}
			if err := stateStore.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", e.cfg.StatePath)

			if !server {
				return nil
			}
			st, err := store.Open(cmd.Context(), e.cfg.StoreDriver, e.cfg.StoreDSN, e.logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()
			if err := st.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset store: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s store\n", e.cfg.StoreDriver)
			return nil
		},
	}

	cmd.Flags().BoolVar(&server, "server", false, "also delete every record in the triage store")
	return cmd
}

func newConfigCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := e.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
}
