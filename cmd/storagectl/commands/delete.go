package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var deleteID string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an object by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(deleteID)
		if err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
		w := wire()
		if err := w.svc.Delete(context.Background(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteID, "id", "", "object UUID (required)")
	_ = deleteCmd.MarkFlagRequired("id")
}
