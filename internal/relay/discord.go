package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/boardsync/internal/config"
)

// discordSession abstracts the discordgo REST calls we use.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts to one Discord channel over the REST API. No gateway
// connection is opened.
type Discord struct {
	sess      discordSession
	channelID string
	backoff   time.Duration
}

// NewDiscord returns a poster using cfg's bot token.
func NewDiscord(cfg config.ChatConfig) (*Discord, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("relay: discord session: %w", err)
	}
	return &Discord{sess: dg, channelID: cfg.ChannelID, backoff: baseBackoff}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Post(ctx context.Context, text string) error {
	err := retryOnRateLimit(ctx, d.backoff, func() error {
		_, err := d.sess.ChannelMessageSend(d.channelID, text, discordgo.WithContext(ctx))
		return err
	}, func(err error) (bool, time.Duration) {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusTooManyRequests {
			return true, 0
		}
		return false, 0
	})
	if err != nil {
		return fmt.Errorf("relay: discord post: %w", err)
	}
	return nil
}
