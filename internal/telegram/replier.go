package telegram

import (
	"context"
	"errors"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	errAlreadyReplied = errors.New("telegram: reply already used")
	errNoChat         = errors.New("telegram: no chat to answer in")
)

// replier answers one update. Reply answers the callback query as an alert,
// or quotes the originating message; FollowUp posts a new message to the chat.
type replier struct {
	bot        Bot
	chatID     int64
	replyTo    int
	callbackID string
	replied    atomic.Bool
}

func (p *replier) Reply(_ context.Context, text string) error {
	if !p.replied.CompareAndSwap(false, true) {
		return errAlreadyReplied
	}
	if p.callbackID != "" {
		cfg := tgbotapi.NewCallback(p.callbackID, text)
		cfg.ShowAlert = text != ""
		_, err := p.bot.Request(cfg)
		return err
	}
	if p.chatID == 0 {
		return errNoChat
	}
	msg := tgbotapi.NewMessage(p.chatID, text)
	msg.ReplyToMessageID = p.replyTo
	_, err := p.bot.Send(msg)
	return err
}

func (p *replier) FollowUp(_ context.Context, text string) error {
	if p.chatID == 0 {
		return errNoChat
	}
	_, err := p.bot.Send(tgbotapi.NewMessage(p.chatID, text))
	return err
}

func (p *replier) Replied() bool {
	return p.replied.Load()
}
