package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/insightd/internal/review"
)

var queueTenant string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List pending review items",
	Long: `List the pending review items for a tenant.

Examples:
  insightd queue --tenant acme`,
	RunE: runQueue,
}

var resolveFlags struct {
	tenant string
	actor  string
	note   string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <validation-id> <approve|reject>",
	Short: "Apply a reviewer decision to a pending item",
	Long: `Apply a reviewer decision to a pending review item. The item is
removed from the queue, session metrics are updated, and the delivered
Slack message is rewritten to show the outcome.

Examples:
  insightd resolve 6f1e... approve --tenant acme --actor U123
  insightd resolve 6f1e... reject --tenant acme --actor U123 --note "stale intel"`,
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

func init() {
	queueCmd.Flags().StringVar(&queueTenant, "tenant", "", "tenant ID (required)")
	_ = queueCmd.MarkFlagRequired("tenant")

	resolveCmd.Flags().StringVar(&resolveFlags.tenant, "tenant", "", "tenant ID (required)")
	resolveCmd.Flags().StringVar(&resolveFlags.actor, "actor", "", "reviewer ID (required)")
	resolveCmd.Flags().StringVar(&resolveFlags.note, "note", "", "optional decision note")
	_ = resolveCmd.MarkFlagRequired("tenant")
	_ = resolveCmd.MarkFlagRequired("actor")
}

func runQueue(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.queue(queueTenant); err != nil {
		return err
	}
	items, err := a.queueDB.ListPending(ctx, queueTenant)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending review items.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VALIDATION ID\tIMPORTANCE\tENQUEUED\tSUMMARY")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			item.ID, item.Importance, item.CreatedAt.Format("2006-01-02 15:04"), item.Summary)
	}
	return w.Flush()
}

func runResolve(cmd *cobra.Command, args []string) error {
	validationID := args[0]
	decision := review.Decision(args[1])
	if decision != review.DecisionApprove && decision != review.DecisionReject {
		return fmt.Errorf("%w: %q (expected approve or reject)", review.ErrInvalidDecision, args[1])
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	queue, err := a.queue(resolveFlags.tenant)
	if err != nil {
		return err
	}
	item, err := queue.Resolve(ctx, validationID, decision, resolveFlags.actor, resolveFlags.note)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
