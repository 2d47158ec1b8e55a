package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "weather-poller",
		Short:        "Weather polling ingestion service",
		Long:         "Polls current weather for a fixed set of locations and serves the latest records over HTTP.",
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the polling scheduler and the HTTP API",
		RunE:  runServe,
	}

	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a single ingestion cycle and print its report",
		RunE:  runPoll,
	}

	rootCmd.AddCommand(serveCmd, pollCmd, newLatestCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLatestCommand() *cobra.Command {
	latestCmd := &cobra.Command{
		Use:          "latest",
		Short:        "Print the most recent stored records as JSON (requires DATABASE_URL)",
		SilenceUsage: true,
		RunE:         runLatest,
	}
	latestCmd.Flags().IntP("count", "n", 6, "Number of records to print")
	return latestCmd
}
