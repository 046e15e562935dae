// Package cmd provides the CLI commands for markdex.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdex/markdex/internal/config"
	"github.com/markdex/markdex/internal/logging"
	"github.com/markdex/markdex/internal/service"
	"github.com/markdex/markdex/internal/telemetry"
	"github.com/markdex/markdex/pkg/version"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the markdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markdex",
		Short: "Versioned, searchable markdown served from a git repository",
		Long: `Markdex keeps an in-memory full-text index over the markdown files
of a git repository and serves them with cursor-based pagination.

Run 'markdex serve' for the HTTP service, or use the one-shot
commands (sync, search, get, keys) directly against the local clone.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("markdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: built-in defaults)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newSearchCmd(),
		newGetCmd(),
		newKeysCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the root command with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig reads the configuration honoring the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openService builds the component graph for one-shot commands. The
// returned cleanup closes the service and flushes logs.
func openService(ctx context.Context) (*service.Service, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, logCleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}

	svc, err := service.New(ctx, cfg, logger, telemetry.New())
	if err != nil {
		logCleanup()
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = svc.Close()
		logCleanup()
	}
	return svc, cfg, cleanup, nil
}
