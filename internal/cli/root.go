// Package cli defines the revmcp command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "revmcp",
	Short: "LLM code review and test generation for frontend diffs",
	Long: `revmcp reviews frontend diffs (Phabricator revisions or git refs) with
topic-specialized LLM agents and generates unit tests for the changes.

Run "revmcp serve" to expose the pipeline as MCP tools over stdio, or
"revmcp check" for a one-shot local review.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (YAML)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(workerCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
