package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zynqcloud/objectstore/internal/pgstore"
)

var (
	searchNamespace   string
	searchTenant      string
	searchKeyContains string
	searchContentType string
	searchTextQuery   string
	searchLimit       int
	searchOffset      int
	searchSortBy      string
	searchDescending  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search objects by filter, or full-text with --query",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := uuid.Parse(searchTenant)
		if err != nil {
			return fmt.Errorf("invalid --tenant: %w", err)
		}
		w := wire()
		ctx := context.Background()

		if searchTextQuery != "" {
			results, err := w.svc.TextSearch(ctx, searchNamespace, tenantID, searchTextQuery, searchLimit, searchOffset)
			if err != nil {
				return err
			}
			for _, v := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v.ID, deref(v.Key))
			}
			return nil
		}

		filter := pgstore.ObjectFilter{
			Namespace:      searchNamespace,
			TenantID:       tenantID,
			KeySubstring:   searchKeyContains,
			ContentType:    searchContentType,
			SortBy:         pgstore.SortField(searchSortBy),
			SortDescending: searchDescending,
			Limit:          searchLimit,
			Offset:         searchOffset,
		}
		results, err := w.svc.Search(ctx, filter)
		if err != nil {
			return err
		}
		for _, v := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", v.ID, deref(v.Key), derefInt(v.SizeBytes))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchNamespace, "namespace", "", "namespace (required)")
	searchCmd.Flags().StringVar(&searchTenant, "tenant", "", "tenant UUID (required)")
	searchCmd.Flags().StringVar(&searchKeyContains, "key-contains", "", "key substring filter")
	searchCmd.Flags().StringVar(&searchContentType, "content-type", "", "content type filter")
	searchCmd.Flags().StringVar(&searchTextQuery, "query", "", "full-text query against key/metadata")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "max results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "pagination offset")
	searchCmd.Flags().StringVar(&searchSortBy, "sort-by", "created_at", "created_at|updated_at|size_bytes|key|content_type")
	searchCmd.Flags().BoolVar(&searchDescending, "descending", false, "sort descending")
	_ = searchCmd.MarkFlagRequired("namespace")
	_ = searchCmd.MarkFlagRequired("tenant")
}
