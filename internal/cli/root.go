package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/jgalley/bloatmon/internal/config"
	"github.com/jgalley/bloatmon/internal/engine"
	"github.com/jgalley/bloatmon/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	rootCmd  *cobra.Command
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "bloatmon",
		Short: "Disk bloat and drift analyzer",
		Long: `bloatmon scans directory trees for wasted storage: oversized files and
directories, duplicate content, and - across repeated scans - how a
project's footprint drifts over time. Scan history is kept in SQLite.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: /etc/bloatmon/bloatmon.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(disksCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("bloatmon " + version)
	},
}

// setupLogger creates a logger based on the configured level.
func setupLogger(level string, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// openStore opens and initializes the snapshot database from config.
func openStore(cmd *cobra.Command, cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(cmd.Context()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// newEngine builds an engine without persistence, for storeless commands.
func newEngine(cfg *config.Config) *engine.Engine {
	return engine.New(cfg, nil, setupLogger(logLevel, cfg.Logging.Format))
}
