// Package notify delivers review requests to Slack and reflects reviewer
// outcomes back onto the delivered messages, implementing review.Notifier.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/review"
)

// Button action IDs wired to the interaction handler.
const (
	ActionApprove = "approve_claim"
	ActionReject  = "reject_claim"
)

// slackAPI is the subset of slack.Client the notifier needs.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
}

// Config holds Slack delivery settings.
type Config struct {
	// Channel is the review channel ID claims are posted to.
	Channel string `koanf:"channel"`
}

// SlackNotifier posts Block Kit approval messages for review items.
type SlackNotifier struct {
	api     slackAPI
	channel string
	logger  *zap.Logger
}

// NewSlackNotifier creates a notifier posting to cfg.Channel.
func NewSlackNotifier(cfg Config, api *slack.Client, logger *zap.Logger) (*SlackNotifier, error) {
	return newSlackNotifier(cfg, api, logger)
}

func newSlackNotifier(cfg Config, api slackAPI, logger *zap.Logger) (*SlackNotifier, error) {
	if api == nil {
		return nil, errors.New("slack client is required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("slack channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{api: api, channel: cfg.Channel, logger: logger}, nil
}

// Send posts the approval message and returns the channel and message
// timestamp as the delivery handle.
func (n *SlackNotifier) Send(ctx context.Context, item *review.Item) (string, string, error) {
	channel, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionBlocks(ApprovalBlocks(item)...),
		slack.MsgOptionText(fmt.Sprintf("Insight awaiting review: %s", item.Summary), false))
	if err != nil {
		return "", "", fmt.Errorf("posting review message: %w", err)
	}
	return channel, ts, nil
}

// Update rewrites the delivered message to show the decision outcome,
// dropping the action buttons.
func (n *SlackNotifier) Update(ctx context.Context, channel, handle string, outcome review.Outcome) error {
	_, _, _, err := n.api.UpdateMessageContext(ctx, channel, handle,
		slack.MsgOptionBlocks(OutcomeBlocks(outcome)...),
		slack.MsgOptionText(fmt.Sprintf("Insight %s", outcome), false))
	if err != nil {
		return fmt.Errorf("updating review message: %w", err)
	}
	return nil
}

// SendReminder posts a threaded nudge under the original message when a
// handle exists, or a fresh channel message otherwise.
func (n *SlackNotifier) SendReminder(ctx context.Context, item *review.Item, reminderNumber int) error {
	text := fmt.Sprintf("Reminder %d: insight still awaiting review\n> %s", reminderNumber, item.Summary)
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if item.Delivery.Handle != "" {
		options = append(options, slack.MsgOptionTS(item.Delivery.Handle))
	}

	channel := item.Delivery.Channel
	if channel == "" {
		channel = n.channel
	}
	if _, _, err := n.api.PostMessageContext(ctx, channel, options...); err != nil {
		return fmt.Errorf("posting reminder: %w", err)
	}
	return nil
}

// ApprovalBlocks builds the Block Kit layout for a review request: header,
// claim summary with metadata fields, optional quote, and approve/reject
// buttons carrying the validation ID.
func ApprovalBlocks(item *review.Item) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, "Insight awaiting review", false, false)),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, item.Summary, false, false), nil, nil),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*Importance:*\n%s", titleCase(item.Importance)), false, false),
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*Confidence:*\n%.0f%%", item.Confidence*100), false, false),
		}, nil),
	}

	if item.Quote != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("> %s", item.Quote), false, false),
			nil, nil))
	}

	blocks = append(blocks,
		slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Claim %s | Validation %s", item.ClaimID, item.ID), false, false)),
		slack.NewActionBlock(fmt.Sprintf("review_actions_%s", item.ID),
			slack.NewButtonBlockElement(ActionApprove, item.ID,
				slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false)).
				WithStyle(slack.StylePrimary),
			slack.NewButtonBlockElement(ActionReject, item.ID,
				slack.NewTextBlockObject(slack.PlainTextType, "Reject", false, false)).
				WithStyle(slack.StyleDanger)))
	return blocks
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// OutcomeBlocks builds the replacement layout after resolution.
func OutcomeBlocks(outcome review.Outcome) []slack.Block {
	var text string
	switch outcome {
	case review.OutcomeApproved:
		text = ":white_check_mark: Insight approved and committed to the knowledge store."
	case review.OutcomeRejected:
		text = ":no_entry_sign: Insight rejected by reviewer."
	case review.OutcomeExpired:
		text = ":hourglass: Review window expired; insight discarded."
	default:
		text = fmt.Sprintf("Insight resolved: %s", outcome)
	}
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
}
