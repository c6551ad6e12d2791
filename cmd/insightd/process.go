package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/insightd/internal/extraction"
)

var processFlags struct {
	tenant     string
	sourceType string
	sourceID   string
	leadID     string
	company    string
}

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Extract and triage claims from a transcript",
	Long: `Extract candidate claims from a transcript file (or stdin), run
them through the gates, and commit, queue, or reject each one.

Examples:
  # Process a call transcript
  insightd process --tenant acme --source-type call --lead lead-42 call.txt

  # Process from stdin
  cat email.txt | insightd process --tenant acme --source-type email -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processFlags.tenant, "tenant", "", "tenant ID (required)")
	processCmd.Flags().StringVar(&processFlags.sourceType, "source-type", "call", "source type: call, email, linkedin, or manual")
	processCmd.Flags().StringVar(&processFlags.sourceID, "source-id", "", "source identifier (defaults to a generated job ID)")
	processCmd.Flags().StringVar(&processFlags.leadID, "lead", "", "lead identifier")
	processCmd.Flags().StringVar(&processFlags.company, "company", "", "company name")
	_ = processCmd.MarkFlagRequired("tenant")
}

// sourceTypeAliases maps CLI shorthand onto the canonical provenance
// source types the confidence scoring recognizes.
var sourceTypeAliases = map[string]string{
	"call":             "call_transcript",
	"call_transcript":  "call_transcript",
	"email":            "email_reply",
	"email_reply":      "email_reply",
	"linkedin":         "linkedin_message",
	"linkedin_message": "linkedin_message",
	"manual":           "manual_entry",
	"manual_entry":     "manual_entry",
}

func canonicalSourceType(s string) (string, error) {
	canonical, ok := sourceTypeAliases[s]
	if !ok {
		return "", fmt.Errorf("unknown source type %q (expected call, email, linkedin, or manual)", s)
	}
	return canonical, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	sourceType, err := canonicalSourceType(processFlags.sourceType)
	if err != nil {
		return err
	}

	var text []byte
	if len(args) == 0 || args[0] == "-" {
		text, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		text, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	if len(text) == 0 {
		return fmt.Errorf("no transcript content to process")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline, err := a.pipeline(processFlags.tenant)
	if err != nil {
		return err
	}

	result, err := pipeline.ProcessTranscript(ctx, extraction.Transcript{
		SourceType:  sourceType,
		SourceID:    processFlags.sourceID,
		LeadID:      processFlags.leadID,
		CompanyName: processFlags.company,
		Text:        string(text),
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
