package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Garbage collection controls",
}

var gcRunOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Run a single GC cycle across all collectors and report the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := wire()
		sched := newGCScheduler(w)
		result := sched.RunOnce(context.Background(), w.cfg.MaxConcurrentDeletes)

		for name, count := range result.Counts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", name, count)
		}
		for name, err := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: error: %v\n", name, err)
		}
		if !result.Successful() {
			return fmt.Errorf("gc cycle completed with %d collector error(s)", len(result.Errors))
		}
		return nil
	},
}

func init() {
	gcCmd.AddCommand(gcRunOnceCmd)
}
