// Package sinks provides thin notify.Sink adapters over chat platform SDKs,
// each a one-method wrapper: format, send, return the SDK error.
package sinks

import (
	"context"

	"github.com/slack-go/slack"
)

// Slack posts a plain markdown message to a fixed channel.
type Slack struct {
	client    *slack.Client
	channelID string
}

// NewSlack builds a sink posting to channelID via a bot token.
func NewSlack(token, channelID string) *Slack {
	return &Slack{client: slack.New(token), channelID: channelID}
}

func (s *Slack) Send(message string) error {
	_, _, err := s.client.PostMessageContext(
		context.Background(),
		s.channelID,
		slack.MsgOptionText(message, false),
	)
	return err
}
