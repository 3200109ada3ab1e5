// Package alert posts operational messages (escalations, failed payroll
// syncs) to a chat channel.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

type Alerter interface {
	Info(ctx context.Context, message string) error
	Error(ctx context.Context, message string) error
}

type Options struct {
	InfoChannelID  string
	ErrorChannelID string
}

type Slack struct {
	client  *slack.Client
	options Options
}

func NewSlack(token string, options Options) *Slack {
	return &Slack{client: slack.New(token), options: options}
}

func (s *Slack) postMessage(ctx context.Context, channelID, message string) error {
	if channelID == "" {
		return nil
	}
	_, _, err := s.client.PostMessageContext(ctx,
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.InfoChannelID, message)
}

func (s *Slack) Error(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.ErrorChannelID, message)
}

// Log writes alerts to the process logger when no chat workspace is configured.
type Log struct{}

func (Log) Info(_ context.Context, message string) error {
	slog.Info("Alert", "message", message)
	return nil
}

func (Log) Error(_ context.Context, message string) error {
	slog.Error("Alert", "message", message)
	return nil
}

// New returns a Slack alerter when a token is set, otherwise Log.
func New(token string, options Options) Alerter {
	if token == "" {
		return Log{}
	}
	return NewSlack(token, options)
}
