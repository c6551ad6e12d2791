// Insightd is a claim triage daemon for sales conversation insights.
//
// Extracted claims are scored, checked for duplicates against the Qdrant
// knowledge base, and either committed, rejected, or queued for human
// review in Slack. A cron sweeper nudges and expires stale review items.
//
// Usage:
//
//	# One-time setup: config dir, data dir, ONNX runtime
//	insightd init
//
//	# Run the daemon (sweeper + review queue)
//	insightd serve
//
//	# Process a transcript once
//	insightd process --tenant acme --source-type call transcript.txt
//
//	# Inspect and resolve the review queue
//	insightd queue --tenant acme
//	insightd resolve <validation-id> approve --tenant acme --actor U123
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "insightd",
	Short: "Insight claim triage daemon",
	Long: `insightd ingests insight claims extracted from sales conversations,
runs them through confidence and duplicate gates, and routes them to the
knowledge base or to a human review queue.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file path (default ~/.config/insightd/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"insightd by Fyrsmith Labs\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n",
		version, gitCommit, buildDate))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
