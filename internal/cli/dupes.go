package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jgalley/bloatmon/internal/config"
	"github.com/spf13/cobra"
)

var (
	dupesFollow  bool
	dupesMinSize string
)

var dupesCmd = &cobra.Command{
	Use:   "dupes <path>",
	Short: "Find duplicate files under a directory tree",
	Long: `Group files with identical content into duplicate clusters. Files are
compared by size first, then by a prefix fingerprint, then by full content,
so unrelated files are never read to the end.

Examples:
  bloatmon dupes ~/Downloads
  bloatmon dupes /srv/media --min-size 1MB`,
	Args: cobra.ExactArgs(1),
	RunE: runDupes,
}

func init() {
	dupesCmd.Flags().BoolVar(&dupesFollow, "follow-symlinks", false, "descend into symlinked directories")
	dupesCmd.Flags().StringVar(&dupesMinSize, "min-size", "0", "ignore files smaller than this")
}

func runDupes(cmd *cobra.Command, args []string) error {
	root := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	minBytes, err := humanize.ParseBytes(dupesMinSize)
	if err != nil {
		return fmt.Errorf("invalid --min-size %q: %w", dupesMinSize, err)
	}

	eng := newEngine(cfg)

	groups, issues, err := eng.ScanDuplicates(cmd.Context(), root, int64(minBytes), dupesFollow)
	if err != nil {
		return fmt.Errorf("duplicate scan failed: %w", err)
	}

	if len(groups) == 0 {
		fmt.Println("No duplicates found")
		printIssues(issues)
		return nil
	}

	var wasted int64
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, g := range groups {
		wasted += g.WastedBytes()
		fmt.Fprintf(w, "%s\t%d copies\t%s reclaimable\n",
			humanize.IBytes(uint64(g.SizeBytes)), len(g.Paths), humanize.IBytes(uint64(g.WastedBytes())))
		for _, p := range g.Paths {
			fmt.Fprintf(w, "\t%s\n", p)
		}
	}
	w.Flush()

	fmt.Printf("\n%d groups, %s reclaimable in total\n", len(groups), humanize.IBytes(uint64(wasted)))
	printIssues(issues)
	return nil
}
