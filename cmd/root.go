// Package cmd defines the CLI commands for the catalogcrawler executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogcrawler",
		Short: "A paginated catalog crawler with per-item detail scraping.",
		Long: `catalogcrawler walks a numbered catalog listing page by page,
extracts item summaries, fetches each item's detail page through a
bounded worker pool with randomized pacing, persists the assembled
records under one run identity, and exports the run to a CSV file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point. It installs signal handling so an
// operator can stop a long crawl cleanly with SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "catalogcrawler: %v\n", err)
		os.Exit(1)
	}
}
