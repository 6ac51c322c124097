package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	downloadID        string
	downloadNamespace string
	downloadTenant    string
	downloadKey       string
	downloadOut       string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download an object by id, or by namespace/tenant/key, to --out or stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := wire()
		ctx := context.Background()

		var reader io.ReadCloser
		var err error
		switch {
		case downloadID != "":
			id, perr := uuid.Parse(downloadID)
			if perr != nil {
				return fmt.Errorf("invalid --id: %w", perr)
			}
			_, reader, err = w.svc.DownloadByID(ctx, id)
		case downloadKey != "":
			tenantID, perr := uuid.Parse(downloadTenant)
			if perr != nil {
				return fmt.Errorf("invalid --tenant: %w", perr)
			}
			_, reader, err = w.svc.DownloadByKey(ctx, downloadNamespace, tenantID, downloadKey)
		default:
			return fmt.Errorf("one of --id or (--namespace, --tenant, --key) is required")
		}
		if err != nil {
			return err
		}
		defer reader.Close()

		out := cmd.OutOrStdout()
		if downloadOut != "" {
			f, err := os.Create(downloadOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", downloadOut, err)
			}
			defer f.Close()
			out = f
		}
		_, err = io.Copy(out, reader)
		return err
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadID, "id", "", "object UUID")
	downloadCmd.Flags().StringVar(&downloadNamespace, "namespace", "", "namespace, used with --key")
	downloadCmd.Flags().StringVar(&downloadTenant, "tenant", "", "tenant UUID, used with --key")
	downloadCmd.Flags().StringVar(&downloadKey, "key", "", "human-readable key")
	downloadCmd.Flags().StringVar(&downloadOut, "out", "", "output path (default: stdout)")
}
