package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgalley/bloatmon/internal/config"
	"github.com/jgalley/bloatmon/internal/store"
	"github.com/spf13/cobra"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history <path>",
	Short: "List snapshot history for a scanned root",
	Long: `List the stored snapshots for a project root, oldest first.

Examples:
  bloatmon history ~/projects/api
  bloatmon history ~/projects/api --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "text", "output format (text, json)")
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	snaps, err := st.List(ctx, project.ProjectID)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	if len(snaps) == 0 {
		fmt.Println("No snapshots recorded")
		return nil
	}

	if historyFormat == "json" {
		type row struct {
			SnapshotID  string `json:"snapshot_id"`
			TakenAt     string `json:"taken_at"`
			TotalBytes  int64  `json:"total_size_bytes"`
			FileCount   int64  `json:"file_count"`
			DupeGroups  int    `json:"duplicate_groups"`
			WastedBytes int64  `json:"wasted_bytes"`
		}
		rows := make([]row, len(snaps))
		for i, s := range snaps {
			rows[i] = row{
				SnapshotID:  s.SnapshotID,
				TakenAt:     s.TakenAt.Format(time.RFC3339),
				TotalBytes:  s.TotalSizeBytes,
				FileCount:   s.FileCount,
				DupeGroups:  s.Dupes.GroupCount,
				WastedBytes: s.Dupes.WastedBytes,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAKEN\tSIZE\tFILES\tDUPES\tCHANGE\tSNAPSHOT")
	var prev *store.Snapshot
	for _, s := range snaps {
		change := "-"
		if prev != nil {
			diff := s.TotalSizeBytes - prev.TotalSizeBytes
			switch {
			case diff > 0:
				change = "+" + humanize.IBytes(uint64(diff))
			case diff < 0:
				change = "-" + humanize.IBytes(uint64(-diff))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.TakenAt.Local().Format("2006-01-02 15:04"),
			humanize.IBytes(uint64(s.TotalSizeBytes)),
			s.FileCount,
			s.Dupes.GroupCount,
			change,
			s.SnapshotID,
		)
		prev = s
	}
	return w.Flush()
}
