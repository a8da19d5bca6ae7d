package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/boardsync/internal/config"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts to one Slack channel.
type Slack struct {
	client    slackClient
	channelID string
	backoff   time.Duration
}

// NewSlack returns a poster using cfg's bot token.
func NewSlack(cfg config.ChatConfig) *Slack {
	return &Slack{client: slackapi.New(cfg.BotToken), channelID: cfg.ChannelID, backoff: baseBackoff}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Post(ctx context.Context, text string) error {
	err := retryOnRateLimit(ctx, s.backoff, func() error {
		_, _, err := s.client.PostMessageContext(ctx, s.channelID, slackapi.MsgOptionText(text, false))
		return err
	}, func(err error) (bool, time.Duration) {
		var rle *slackapi.RateLimitedError
		if errors.As(err, &rle) {
			return true, rle.RetryAfter
		}
		return false, 0
	})
	if err != nil {
		return fmt.Errorf("relay: slack post: %w", err)
	}
	return nil
}
