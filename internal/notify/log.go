package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/review"
)

// LogNotifier records review requests in the log instead of delivering
// them. Used when Slack delivery is not configured; items still queue and
// expire normally.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the review request. The returned handle is empty, so no later
// message updates are attempted.
func (n *LogNotifier) Send(_ context.Context, item *review.Item) (string, string, error) {
	n.logger.Info("review requested",
		zap.String("validation_id", item.ID),
		zap.String("claim_id", item.ClaimID),
		zap.String("tenant_id", item.TenantID),
		zap.String("importance", item.Importance),
		zap.String("summary", item.Summary))
	return "", "", nil
}

// Update logs the outcome.
func (n *LogNotifier) Update(_ context.Context, _, _ string, outcome review.Outcome) error {
	n.logger.Info("review resolved", zap.String("outcome", string(outcome)))
	return nil
}

// SendReminder logs the reminder.
func (n *LogNotifier) SendReminder(_ context.Context, item *review.Item, reminderNumber int) error {
	n.logger.Info("review reminder",
		zap.String("validation_id", item.ID),
		zap.Int("reminder", reminderNumber))
	return nil
}
