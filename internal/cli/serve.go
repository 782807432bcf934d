package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jgalley/bloatmon/internal/config"
	"github.com/jgalley/bloatmon/internal/daemon"
	"github.com/jgalley/bloatmon/internal/engine"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daemon",
	Long:  `Start the bloatmon daemon, rescanning configured roots periodically. This is typically invoked by systemd.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Override log level from flag if specified
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("starting bloatmon daemon",
		"config", cfgFile,
		"db", cfg.Database.Path,
		"workers", cfg.Scan.Workers,
		"paths", len(cfg.Paths),
	)

	st, err := openStore(cmd, cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	eng := engine.New(cfg, st, logger)
	d := daemon.New(cfg, eng, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", "signal", sig)
		cancel()
	}()

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("daemon error: %w", err)
	}

	logger.Info("daemon stopped")
	return nil
}
