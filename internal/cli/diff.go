package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jgalley/bloatmon/internal/config"
	"github.com/jgalley/bloatmon/internal/drift"
	"github.com/spf13/cobra"
)

var (
	diffFrom string
	diffTo   string
)

var diffCmd = &cobra.Command{
	Use:   "diff <path>",
	Short: "Compare two snapshots of a scanned root",
	Long: `Compare two snapshots of a project and show what changed. Without
--from/--to the two most recent snapshots are compared.

Examples:
  bloatmon diff ~/projects/api
  bloatmon diff ~/projects/api --from 4f1c... --to 9ab0...`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffFrom, "from", "", "base snapshot ID")
	diffCmd.Flags().StringVar(&diffTo, "to", "", "target snapshot ID")
}

func runDiff(cmd *cobra.Command, args []string) error {
	root := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := openStore(cmd, cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	project, err := st.GetProject(ctx, root)
	if err != nil {
		return fmt.Errorf("looking up project: %w", err)
	}

	fromID, toID := diffFrom, diffTo
	if fromID == "" || toID == "" {
		snaps, err := st.List(ctx, project.ProjectID)
		if err != nil {
			return fmt.Errorf("listing snapshots: %w", err)
		}
		if len(snaps) < 2 {
			return fmt.Errorf("need at least two snapshots to diff, have %d", len(snaps))
		}
		if fromID == "" {
			fromID = snaps[len(snaps)-2].SnapshotID
		}
		if toID == "" {
			toID = snaps[len(snaps)-1].SnapshotID
		}
	}

	from, err := st.Get(ctx, fromID)
	if err != nil {
		return fmt.Errorf("loading base snapshot: %w", err)
	}
	to, err := st.Get(ctx, toID)
	if err != nil {
		return fmt.Errorf("loading target snapshot: %w", err)
	}

	delta, err := drift.Diff(from, to)
	if err != nil {
		return fmt.Errorf("diffing snapshots: %w", err)
	}

	printDelta(delta)

	alerts := drift.Evaluate(delta, drift.Thresholds{
		GrowthPct:  cfg.Thresholds.GrowthPct,
		AddedFiles: cfg.Thresholds.AddedFiles,
		AddedBytes: cfg.Thresholds.AddedBytes,
	})
	for _, a := range alerts {
		fmt.Printf("  [%s] %s: %s\n", a.Severity, a.Category, a.Message)
	}

	return nil
}

func printDelta(delta *drift.ChangeDelta) {
	if delta.Empty() {
		fmt.Println("  no changes")
		return
	}

	sign := "+"
	magnitude := delta.SizeDeltaBytes
	if magnitude < 0 {
		sign = "-"
		magnitude = -magnitude
	}
	fmt.Printf("  size change %s%s (%.1f%%)\n", sign, humanize.IBytes(uint64(magnitude)), delta.SizeDeltaPct)
	fmt.Printf("  added %d, removed %d, modified %d\n",
		len(delta.AddedPaths), len(delta.RemovedPaths), len(delta.ModifiedPaths))
}
