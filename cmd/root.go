// Package cmd defines and implements the CLI commands for the treatycrawl executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treatycrawl",
		Short: "Crawler for the UNCTAD IIA Navigator treaty directory.",
		Long: `treatycrawl walks the country index of the UNCTAD IIA Navigator,
extracts every bilateral investment treaty and treaty with investment
provisions listed there, and writes a de-duplicated, normalized CSV and
JSON dataset. Progress is checkpointed so an interrupted crawl can be
resumed without re-fetching completed countries.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/treatycrawl, $HOME/.treatycrawl)")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point. A non-nil command error (including a
// discovery that found no countries) produces exit code 1.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
