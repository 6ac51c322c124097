package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	listNamespace string
	listTenant    string
	listLimit     int
	listOffset    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed objects for a namespace/tenant, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := uuid.Parse(listTenant)
		if err != nil {
			return fmt.Errorf("invalid --tenant: %w", err)
		}
		w := wire()
		views, err := w.svc.List(context.Background(), listNamespace, tenantID, listLimit, listOffset)
		if err != nil {
			return err
		}
		for _, v := range views {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\t%s\n", v.ID, deref(v.ContentHash), derefInt(v.SizeBytes), v.Status)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listNamespace, "namespace", "", "namespace (required)")
	listCmd.Flags().StringVar(&listTenant, "tenant", "", "tenant UUID (required)")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "max results")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "pagination offset")
	_ = listCmd.MarkFlagRequired("namespace")
	_ = listCmd.MarkFlagRequired("tenant")
}
