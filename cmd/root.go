// Package cmd holds the CLI entry points for the ingestion service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "berkat-crawler",
		Short: "Ingestion service for berkat.ru classified listings.",
		Long: `berkat-crawler discovers classified-ad listings on berkat.ru, queues
them durably, and pulls each one through fetch, extraction, AI
normalization and persistence. It also serves the ingested catalog
over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with BERKAT_ prefix also apply)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
