package sinks

import (
	"context"

	"github.com/go-telegram/bot"
)

// Telegram posts a plain message to a fixed chat via an already-configured
// bot client.
type Telegram struct {
	client *bot.Bot
	chatID int64
}

// NewTelegram builds a sink over an existing bot client.
func NewTelegram(client *bot.Bot, chatID int64) *Telegram {
	return &Telegram{client: client, chatID: chatID}
}

func (t *Telegram) Send(message string) error {
	_, err := t.client.SendMessage(context.Background(), &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   message,
	})
	return err
}
