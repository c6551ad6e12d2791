package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/insightd/internal/embeddings"
)

var skipONNX bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up directories, a starter config, and the ONNX runtime",
	Long: `Create the insightd config and data directories, write a starter
config file if none exists, and download the ONNX runtime library required
by the local embedding model.

Examples:
  insightd init
  insightd init --skip-onnx`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&skipONNX, "skip-onnx", false, "skip the ONNX runtime download")
}

const starterConfig = `# insightd configuration
# Secrets can also be supplied via environment variables, e.g. SLACK_TOKEN.

tenants:
  - default

qdrant:
  host: localhost
  port: 6334

extraction:
  provider: heuristic

slack:
  enabled: false
  # token: xoxb-...
  # channel: C0REVIEW
`

func runInit(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "insightd")
	dataDir := filepath.Join(home, ".local", "share", "insightd")
	for _, dir := range []string{configDir, dataDir, filepath.Join(dataDir, "sessions")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	fmt.Fprintf(out, "Created %s and %s\n", configDir, dataDir)

	cfgFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if err := os.WriteFile(cfgFile, []byte(starterConfig), 0600); err != nil {
			return fmt.Errorf("failed to write starter config: %w", err)
		}
		fmt.Fprintf(out, "Wrote starter config to %s\n", cfgFile)
	} else {
		fmt.Fprintf(out, "Config already exists at %s, leaving it alone\n", cfgFile)
	}

	if skipONNX {
		return nil
	}
	path, err := embeddings.EnsureONNXRuntime(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to set up ONNX runtime: %w", err)
	}
	fmt.Fprintf(out, "ONNX runtime ready at %s\n", path)
	return nil
}
