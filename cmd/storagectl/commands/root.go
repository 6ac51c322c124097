// Package commands implements the storagectl CLI: a direct caller of
// internal/service.Service, exercising the core without standing up the
// (out-of-scope) HTTP layer. Grounded on dittofs's
// cmd/dittofs/commands/root.go root-command shape.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "storagectl",
	Short: "storagectl drives the object store's upload/download/delete/search operations directly",
	Long: `storagectl is a thin CLI over the object store's service boundary
(internal/service.Service), useful for operators and scripts that want to
upload, fetch, list, search or delete objects, or trigger a garbage
collection cycle, without an HTTP frontend in front of the core.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (optional)")
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func exitErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
