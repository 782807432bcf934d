package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jgalley/bloatmon/internal/cleanup"
	"github.com/jgalley/bloatmon/internal/config"
	"github.com/spf13/cobra"
)

var (
	cleanDryRun    bool
	cleanPermanent bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <path>...",
	Short: "Delete the given paths",
	Long: `Delete the given paths. By default entries are moved to the bloatmon
trash directory where they can be recovered; --permanent unlinks them
directly. Each path is handled independently: a failure on one never
aborts the rest, and nothing outside the listed paths is ever touched.

Examples:
  bloatmon clean ./node_modules --dry-run
  bloatmon clean ./target ./dist
  bloatmon clean /tmp/scratch --permanent`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "report what would happen without deleting anything")
	cleanCmd.Flags().BoolVar(&cleanPermanent, "permanent", false, "remove permanently instead of trashing")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	eng := newEngine(cfg)

	report := eng.CleanupPaths(cmd.Context(), cleanup.Request{
		Paths:  args,
		DryRun: cleanDryRun,
		Trash:  !cleanPermanent,
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range report.Results {
		if r.Reason != "" {
			fmt.Fprintf(w, "%s\t%s\t(%s)\n", r.Outcome, r.Path, r.Reason)
		} else {
			fmt.Fprintf(w, "%s\t%s\n", r.Outcome, r.Path)
		}
	}
	w.Flush()

	fmt.Printf("\ndeleted %d, skipped %d, errors %d\n",
		len(report.Deleted), len(report.Skipped), len(report.Errors))

	if len(report.Errors) > 0 {
		return fmt.Errorf("%d paths failed", len(report.Errors))
	}
	return nil
}
