package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jgalley/bloatmon/internal/config"
	"github.com/jgalley/bloatmon/internal/engine"
	"github.com/spf13/cobra"
)

var (
	scanMinSize  string
	scanFollow   bool
	scanStore    bool
	scanProgress bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan a directory tree for bloat",
	Long: `Scan a directory tree and report files and directories exceeding the size
threshold. With --store, the scan also runs duplicate detection, persists a
snapshot, and reports drift against the previous snapshot of the same root.

Examples:
  bloatmon scan ~/projects/api
  bloatmon scan ~/projects/api --min-size 50MB
  bloatmon scan ~/projects/api --store`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanMinSize, "min-size", "100MB", "bloat threshold (e.g. 500KB, 100MB, 2GB)")
	scanCmd.Flags().BoolVar(&scanFollow, "follow-symlinks", false, "descend into symlinked directories")
	scanCmd.Flags().BoolVar(&scanStore, "store", false, "persist a snapshot and diff against history")
	scanCmd.Flags().BoolVar(&scanProgress, "progress", false, "log scan progress")
}

func runScan(cmd *cobra.Command, args []string) error {
	root := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	minBytes, err := humanize.ParseBytes(scanMinSize)
	if err != nil {
		return fmt.Errorf("invalid --min-size %q: %w", scanMinSize, err)
	}

	logger := setupLogger(logLevel, cfg.Logging.Format)
	ctx := cmd.Context()

	if !scanStore {
		eng := newEngine(cfg)
		stopProgress := watchProgress(eng, logger)
		defer stopProgress()

		flagged, issues, err := eng.ScanBloat(ctx, root, int64(minBytes), scanFollow)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SIZE\tKIND\tPATH")
		for _, f := range flagged {
			fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.IBytes(uint64(f.SizeBytes)), f.Kind, f.Path)
		}
		w.Flush()

		printIssues(issues)
		return nil
	}

	st, err := openStore(cmd, cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	eng := engine.New(cfg, st, logger)
	stopProgress := watchProgress(eng, logger)
	defer stopProgress()

	report, err := eng.Scan(ctx, root, engine.ScanOptions{
		MinSizeBytes:   int64(minBytes),
		FollowSymlinks: scanFollow,
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("snapshot %s\n", report.Snapshot.SnapshotID)
	fmt.Printf("  total      %s (%d files)\n",
		humanize.IBytes(uint64(report.Snapshot.TotalSizeBytes)), report.Snapshot.FileCount)
	fmt.Printf("  flagged    %d entries\n", len(report.Flagged))
	fmt.Printf("  duplicates %d groups, %s reclaimable\n",
		report.Snapshot.Dupes.GroupCount, humanize.IBytes(uint64(report.Snapshot.Dupes.WastedBytes)))

	if report.Delta != nil {
		printDelta(report.Delta)
	} else {
		fmt.Println("  first snapshot for this root; nothing to diff")
	}
	for _, a := range report.Alerts {
		fmt.Printf("  [%s] %s: %s\n", a.Severity, a.Category, a.Message)
	}

	printIssues(report.Issues)
	return nil
}

// watchProgress subscribes the logger to the engine's progress stream when
// --progress is set. The returned func stops the watcher.
func watchProgress(eng *engine.Engine, logger *slog.Logger) func() {
	if !scanProgress {
		return func() {}
	}
	ch := eng.Progress().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			logger.Info("scan progress", "entries", ev.EntriesProcessed, "path", ev.CurrentPath)
		}
	}()
	return func() {
		eng.Progress().Unsubscribe(ch)
		<-done
	}
}

func printIssues(issues []engine.PathIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "%d paths could not be read:\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", issue.Path, issue.Reason)
	}
}
