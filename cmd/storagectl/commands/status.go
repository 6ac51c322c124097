package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zynqcloud/objectstore/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report available/total disk space for each storage tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := wire()
		for _, class := range []domain.StorageClass{domain.Hot, domain.Cold} {
			avail, total := w.fs.DiskStats(class)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tavail=%d bytes\ttotal=%d bytes\n", class, avail, total)
		}
		return nil
	},
}
