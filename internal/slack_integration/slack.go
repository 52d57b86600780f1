package slack_integration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
)

type Config struct {
	BotToken string `split_words:"true" required:"true"`
	Team     string `default:"ham-5b68442"`
	Channel  string `default:"general"`
}

type Integration struct {
	c Config

	BotUserID string
	TeamID    string
	client    *slack.Client
}

func New(ctx context.Context, c Config, opts ...slack.Option) (*Integration, error) {
	api := slack.New(c.BotToken, opts...)

	authTest, err := api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack API test failed: %w", err)
	}

	if !matchesTeam(c.Team, authTest) {
		slog.WarnContext(ctx, "bot token belongs to a different Slack team",
			"team", c.Team, "token_team", authTest.Team, "token_team_id", authTest.TeamID)
	}

	return &Integration{
		c:         c,
		BotUserID: authTest.UserID,
		TeamID:    authTest.TeamID,
		client:    api,
	}, nil
}

func matchesTeam(team string, authTest *slack.AuthTestResponse) bool {
	if team == "" {
		return true
	}

	return strings.EqualFold(team, authTest.TeamID) ||
		strings.EqualFold(team, authTest.Team) ||
		strings.Contains(strings.ToLower(authTest.URL), "//"+strings.ToLower(team)+".")
}

// Send posts text to channel. A bot token is bound to a single workspace,
// so team only annotates the log line.
func (b *Integration) Send(ctx context.Context, team, channel, text string) error {
	channelID, ts, err := b.client.PostMessageContext(
		ctx,
		channel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("posting message to %s: %w", channel, err)
	}

	slog.DebugContext(ctx, "posted message", "team", team, "channel", channelID, "ts", ts)
	return nil
}

func (b *Integration) Client() *slack.Client {
	return b.client
}
