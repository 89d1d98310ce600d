// Package main provides the entry point for the traction CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traction/cmd/traction/commands"
	"github.com/Sumatoshi-tech/traction/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "traction",
		Short: "Traction - incremental open-source adoption metrics",
		Long: `Traction collects daily adoption metrics (package downloads, repository
counters, community activity) into one append-only dataset and renders
them as a dashboard.

Commands:
  fetch     Pull new data points from all configured sources
  render    Regenerate the HTML dashboard and README from the dataset
  validate  Check the config file against the configuration schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewFetchCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "traction %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
