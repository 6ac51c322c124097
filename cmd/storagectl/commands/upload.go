package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zynqcloud/objectstore/internal/domain"
)

var (
	uploadNamespace string
	uploadTenant    string
	uploadKey       string
	uploadClass     string
	uploadContent   string
	uploadFile      string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a file, reading from --file or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := uuid.Parse(uploadTenant)
		if err != nil {
			return fmt.Errorf("invalid --tenant: %w", err)
		}
		class := domain.StorageClass(uploadClass)
		if !class.Valid() {
			return fmt.Errorf("--class must be HOT or COLD, got %q", uploadClass)
		}

		var key *string
		if uploadKey != "" {
			key = &uploadKey
		}

		r := os.Stdin
		if uploadFile != "" {
			f, err := os.Open(uploadFile)
			if err != nil {
				return fmt.Errorf("open %s: %w", uploadFile, err)
			}
			defer f.Close()
			r = f
		}

		w := wire()
		view, err := w.svc.Upload(context.Background(), uploadNamespace, tenantID, key, class, r, uploadContent, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "id=%s content_hash=%s size_bytes=%d status=%s\n",
			view.ID, deref(view.ContentHash), derefInt(view.SizeBytes), view.Status)
		return nil
	},
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int64) int64 {
	if i == nil {
		return 0
	}
	return *i
}

func init() {
	uploadCmd.Flags().StringVar(&uploadNamespace, "namespace", "", "namespace (required)")
	uploadCmd.Flags().StringVar(&uploadTenant, "tenant", "", "tenant UUID (required)")
	uploadCmd.Flags().StringVar(&uploadKey, "key", "", "optional human-readable key")
	uploadCmd.Flags().StringVar(&uploadClass, "class", string(domain.Hot), "storage class: HOT or COLD")
	uploadCmd.Flags().StringVar(&uploadContent, "content-type", "", "optional MIME content type")
	uploadCmd.Flags().StringVar(&uploadFile, "file", "", "path to upload (default: stdin)")
	_ = uploadCmd.MarkFlagRequired("namespace")
	_ = uploadCmd.MarkFlagRequired("tenant")
}
