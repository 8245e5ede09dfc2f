package telegram

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
	"github.com/lukadfagundes/bwaincell-sub004/internal/middleware"
	"github.com/lukadfagundes/bwaincell-sub004/internal/store"
)

// Bot is the part of *tgbotapi.BotAPI the router talks to.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router turns Telegram updates into interactions and runs them through the
// middleware chain. It is safe for concurrent use; it keeps no per-chat state.
type Router struct {
	bot    Bot
	log    *zap.Logger
	repo   store.Repo
	loc    *time.Location
	now    func() time.Time
	handle middleware.Handler
}

// NewRouter creates a router whose handlers sit behind units, outermost first.
func NewRouter(bot Bot, log *zap.Logger, repo store.Repo, loc *time.Location, units ...middleware.Middleware) *Router {
	if loc == nil {
		loc = time.UTC
	}
	r := &Router{
		bot:  bot,
		log:  log,
		repo: repo,
		loc:  loc,
		now:  time.Now,
	}
	r.handle = middleware.Chain(r.dispatch, units...)
	return r
}

// WithClock overrides the clock used to compute first trigger times.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// HandleUpdate routes a single update. A chain error has already been logged
// by the logging unit; here the user just gets a generic notice.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	ic := r.interactionFor(upd)
	err := r.handle(ctx, ic)
	if err != nil && ic.Kind != interaction.KindUnknown {
		if nerr := r.respond(ctx, ic, genericError); nerr != nil {
			r.log.Debug("error notice dropped", zap.String("interaction_id", ic.ID), zap.Error(nerr))
		}
	}
	return err
}

// interactionFor classifies an update once. Tenant is the chat the update came from.
func (r *Router) interactionFor(upd tgbotapi.Update) *interaction.Context {
	switch {
	case upd.Message != nil:
		m := upd.Message
		var chatID, userID int64
		if m.Chat != nil {
			chatID = m.Chat.ID
		}
		if m.From != nil {
			userID = m.From.ID
		}
		rep := &replier{bot: r.bot, chatID: chatID, replyTo: m.MessageID}
		id := interaction.Identity{UserID: userID, TenantID: chatID}

		var ic *interaction.Context
		if m.IsCommand() {
			ic = interaction.New(interaction.KindCommand, id, rep)
			ic.Command = strings.ToLower(m.Command())
			ic.Args = strings.TrimSpace(m.CommandArguments())
		} else {
			ic = interaction.New(interaction.KindMessage, id, rep)
			ic.Args = strings.TrimSpace(m.Text)
		}
		ic.ChatID = chatID
		return ic

	case upd.CallbackQuery != nil:
		cb := upd.CallbackQuery
		var userID int64
		if cb.From != nil {
			userID = cb.From.ID
		}
		chatID := userID
		if cb.Message != nil && cb.Message.Chat != nil {
			chatID = cb.Message.Chat.ID
		}
		rep := &replier{bot: r.bot, chatID: chatID, callbackID: cb.ID}
		ic := interaction.New(interaction.KindCallback, interaction.Identity{UserID: userID, TenantID: chatID}, rep)
		ic.ActionID = cb.Data
		ic.ChatID = chatID
		return ic
	}
	return interaction.New(interaction.KindUnknown, interaction.Identity{}, &replier{bot: r.bot})
}

// respond uses the primary reply when it is still available, else a follow-up.
func (r *Router) respond(ctx context.Context, ic *interaction.Context, text string) error {
	if !ic.Replier.Replied() {
		if err := ic.Replier.Reply(ctx, text); err == nil {
			return nil
		}
	}
	return ic.Replier.FollowUp(ctx, text)
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
