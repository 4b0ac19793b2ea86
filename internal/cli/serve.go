package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vilaca/triage-dashboard/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	// syncFailureThreshold is how many consecutive failed syncs escalate to an error log.
	syncFailureThreshold = 3
)

func newServeCommand(e *env) *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger := e.cfg, e.logger

			srv, err := buildServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer srv.store.Close()

			if err := cfg.Validate(); err != nil {
				logger.Warn("incomplete configuration; issue endpoints will fail", "error", err)
			}

			if sync && cfg.HasGitHubConfig() {
				refresher := service.NewBackgroundRefresher("store-sync", cfg.PollInterval(), func(ctx context.Context) error {
					_, err := srv.triage.Sync(ctx)
					return err
				}, logger)
				failures := 0
				refresher.OnComplete = func(err error, _ time.Duration) {
					if err == nil {
						failures = 0
						return
					}
					failures++
					if failures == syncFailureThreshold {
						logger.Error("store sync keeps failing", "failures", failures, "error", err)
					}
				}
				refresher.Start(ctx)
				defer refresher.Stop()
			}

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           srv.handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting triage dashboard",
					"addr", "http://localhost"+httpServer.Addr,
					"org", cfg.Org,
					"store", cfg.StoreDriver,
				)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "sync the triage store with GitHub every poll interval")
	return cmd
}
