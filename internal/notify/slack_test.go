package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/insightd/internal/review"
)

// fakeSlack records posted and updated messages.
type fakeSlack struct {
	postErr  error
	posts    []string // channels posted to
	updates  []string // handles updated
	lastOpts int
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.postErr != nil {
		return "", "", f.postErr
	}
	f.posts = append(f.posts, channelID)
	f.lastOpts = len(options)
	return channelID, "1700000000.000100", nil
}

func (f *fakeSlack) UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	f.updates = append(f.updates, timestamp)
	return channelID, timestamp, "", nil
}

func testItem() *review.Item {
	sentAt := time.Now()
	return &review.Item{
		ID:         "val_1",
		ClaimID:    "claim_1",
		TenantID:   "brain_test_1",
		Status:     review.StatusPending,
		Summary:    "objection: pricing too high for mid-market",
		Importance: "high",
		Confidence: 0.75,
		Quote:      "we just can't justify that line item",
		Delivery:   review.Delivery{Channel: "C123", Handle: "1700000000.000100", SentAt: &sentAt},
	}
}

func newTestNotifier(t *testing.T, api *fakeSlack) *SlackNotifier {
	t.Helper()
	n, err := newSlackNotifier(Config{Channel: "C123"}, api, nil)
	require.NoError(t, err)
	return n
}

func TestNewSlackNotifier_Validation(t *testing.T) {
	_, err := newSlackNotifier(Config{Channel: "C123"}, nil, nil)
	require.Error(t, err)

	_, err = newSlackNotifier(Config{}, &fakeSlack{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel is required")
}

func TestSend(t *testing.T) {
	api := &fakeSlack{}
	n := newTestNotifier(t, api)

	channel, handle, err := n.Send(context.Background(), testItem())
	require.NoError(t, err)
	assert.Equal(t, "C123", channel)
	assert.Equal(t, "1700000000.000100", handle)
}

func TestSend_Error(t *testing.T) {
	api := &fakeSlack{postErr: errors.New("rate limited")}
	n := newTestNotifier(t, api)

	_, _, err := n.Send(context.Background(), testItem())
	require.Error(t, err)
}

func TestUpdate(t *testing.T) {
	api := &fakeSlack{}
	n := newTestNotifier(t, api)

	err := n.Update(context.Background(), "C123", "1700000000.000100", review.OutcomeApproved)
	require.NoError(t, err)
	assert.Equal(t, []string{"1700000000.000100"}, api.updates)
}

func TestSendReminder_ThreadsUnderOriginal(t *testing.T) {
	api := &fakeSlack{}
	n := newTestNotifier(t, api)

	err := n.SendReminder(context.Background(), testItem(), 1)
	require.NoError(t, err)
	require.Len(t, api.posts, 1)
	assert.Equal(t, "C123", api.posts[0])
	assert.Equal(t, 2, api.lastOpts, "text plus thread_ts option")
}

func TestSendReminder_NoHandleFallsBackToChannel(t *testing.T) {
	api := &fakeSlack{}
	n := newTestNotifier(t, api)

	item := testItem()
	item.Delivery = review.Delivery{}
	err := n.SendReminder(context.Background(), item, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C123"}, api.posts)
}

func TestApprovalBlocks(t *testing.T) {
	blocks := ApprovalBlocks(testItem())
	require.Len(t, blocks, 6, "header, summary, fields, quote, context, actions")

	header, ok := blocks[0].(*slack.HeaderBlock)
	require.True(t, ok)
	assert.Equal(t, "Insight awaiting review", header.Text.Text)

	actions, ok := blocks[5].(*slack.ActionBlock)
	require.True(t, ok)
	assert.Equal(t, "review_actions_val_1", actions.BlockID)
	require.Len(t, actions.Elements.ElementSet, 2)

	approve, ok := actions.Elements.ElementSet[0].(*slack.ButtonBlockElement)
	require.True(t, ok)
	assert.Equal(t, ActionApprove, approve.ActionID)
	assert.Equal(t, "val_1", approve.Value)
}

func TestApprovalBlocks_NoQuote(t *testing.T) {
	item := testItem()
	item.Quote = ""
	blocks := ApprovalBlocks(item)
	assert.Len(t, blocks, 5, "quote block omitted")
}

func TestOutcomeBlocks(t *testing.T) {
	for _, outcome := range []review.Outcome{review.OutcomeApproved, review.OutcomeRejected, review.OutcomeExpired} {
		blocks := OutcomeBlocks(outcome)
		require.Len(t, blocks, 1)
		_, ok := blocks[0].(*slack.SectionBlock)
		assert.True(t, ok)
	}
}
