package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdex/markdex/internal/logging"
	"github.com/markdex/markdex/internal/server"
	"github.com/markdex/markdex/internal/service"
	"github.com/markdex/markdex/internal/telemetry"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service with background synchronization",
		Long: `Serve starts the markdex HTTP API, syncs the repository immediately,
and keeps syncing on the configured interval until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger, logCleanup, err := logging.Setup(cfg.Logging)
			if err != nil {
				return err
			}
			defer logCleanup()

			lock := service.NewInstanceLock(cfg.Repo.DataDir)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer lock.Release()

			ctx := cmd.Context()
			metrics := telemetry.New()

			svc, err := service.New(ctx, cfg, logger, metrics)
			if err != nil {
				return err
			}
			defer svc.Close()

			cache := server.NewSearchCache(cfg.Cache, metrics, logger)
			if cache != nil {
				defer cache.Close()
			}

			srv := server.New(svc, cache, metrics, logger)

			svc.Start(ctx)
			logger.Info("serving", "addr", cfg.Server.Addr)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(cfg.Server.Addr)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}
