package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jgalley/bloatmon/internal/engine"
	"github.com/spf13/cobra"
)

var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "Show mounted filesystem capacity",
	RunE:  runDisks,
}

func runDisks(cmd *cobra.Command, args []string) error {
	mounts, err := engine.DiskInfo()
	if err != nil {
		return fmt.Errorf("reading disk info: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MOUNT\tTYPE\tTOTAL\tUSED\tFREE")
	for _, m := range mounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.MountPoint, m.FSType,
			humanize.IBytes(m.TotalBytes),
			humanize.IBytes(m.UsedBytes),
			humanize.IBytes(m.FreeBytes),
		)
	}
	return w.Flush()
}
