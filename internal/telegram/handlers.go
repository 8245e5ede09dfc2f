package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lukadfagundes/bwaincell-sub004/assets"
	"github.com/lukadfagundes/bwaincell-sub004/internal/domain"
	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
	"github.com/lukadfagundes/bwaincell-sub004/internal/store"
)

var errAmbiguousID = errors.New("ambiguous reminder id")

// dispatch is the terminal handler of the chain.
func (r *Router) dispatch(ctx context.Context, ic *interaction.Context) error {
	switch ic.Kind {
	case interaction.KindCommand:
		return r.handleCommand(ctx, ic)
	case interaction.KindCallback:
		return r.handleCallback(ctx, ic)
	}
	// Free-form messages are not addressed to the bot.
	return nil
}

func (r *Router) handleCommand(ctx context.Context, ic *interaction.Context) error {
	switch ic.Command {
	case "start", "help":
		return r.respond(ctx, ic, assets.HelpText())
	case "remind":
		return r.handleCreate(ctx, ic, domain.OneShot)
	case "daily":
		return r.handleCreate(ctx, ic, domain.Daily)
	case "weekly":
		return r.handleCreate(ctx, ic, domain.Weekly)
	case "reminders":
		return r.handleList(ctx, ic)
	case "delete":
		return r.handleDeleteCommand(ctx, ic)
	default:
		return r.respond(ctx, ic, unknownCommand)
	}
}

func (r *Router) handleCallback(ctx context.Context, ic *interaction.Context) error {
	if id, ok := strings.CutPrefix(ic.ActionID, actionDeletePrefix); ok {
		return r.deleteOwned(ctx, ic, id)
	}
	// Unknown buttons are acknowledged so the client stops spinning.
	return ic.Replier.Reply(ctx, "")
}

// --- Create ---

func (r *Router) handleCreate(ctx context.Context, ic *interaction.Context, kind domain.RecurrenceKind) error {
	tod, day, text, err := parseCreateArgs(kind, ic.Args)
	if err != nil {
		return r.respond(ctx, ic, usageFor(kind))
	}

	n, err := domain.NewNotification(ic.Identity.UserID, ic.Identity.TenantID, ic.ChatID, kind, tod, day, text, r.loc, r.now())
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return r.respond(ctx, ic, usageFor(kind))
	case errors.Is(err, domain.ErrMessageTooLong):
		return r.respond(ctx, ic, fmt.Sprintf("Reminder text is too long (max %d characters).", domain.MaxMessageLen))
	case err != nil:
		return fmt.Errorf("build reminder: %w", err)
	}

	if err := r.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return r.respond(ctx, ic, createdText(n, r.loc))
}

// parseCreateArgs splits "[DAY] HH:MM text"; DAY is present only for weekly reminders.
func parseCreateArgs(kind domain.RecurrenceKind, args string) (domain.TimeOfDay, *int, string, error) {
	var day *int
	rest := args
	if kind == domain.Weekly {
		var tok string
		tok, rest = nextToken(rest)
		d, err := domain.ParseWeekday(tok)
		if err != nil {
			return domain.TimeOfDay{}, nil, "", err
		}
		day = &d
	}

	tok, text := nextToken(rest)
	tod, err := domain.ParseTimeOfDay(tok)
	if err != nil {
		return domain.TimeOfDay{}, nil, "", err
	}
	return tod, day, text, nil
}

func nextToken(s string) (tok, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func usageFor(kind domain.RecurrenceKind) string {
	switch kind {
	case domain.Daily:
		return usageDaily
	case domain.Weekly:
		return usageWeekly
	default:
		return usageRemind
	}
}

// --- List ---

func (r *Router) handleList(ctx context.Context, ic *interaction.Context) error {
	items, err := r.repo.ListByOwner(ctx, ic.Identity.UserID, ic.Identity.TenantID)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	if len(items) == 0 {
		return r.respond(ctx, ic, noReminders)
	}
	if len(items) > maxListed {
		items = items[:maxListed]
	}

	msg := tgbotapi.NewMessage(ic.ChatID, listText(items, r.loc))
	msg.ReplyMarkup = deleteKeyboard(items)
	if _, err := r.bot.Send(msg); err != nil {
		return fmt.Errorf("send reminder list: %w", err)
	}
	return nil
}

// --- Delete ---

func (r *Router) handleDeleteCommand(ctx context.Context, ic *interaction.Context) error {
	ref, _ := nextToken(ic.Args)
	if ref == "" {
		return r.respond(ctx, ic, usageDelete)
	}

	id, err := r.resolveOwned(ctx, ic, ref)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return r.respond(ctx, ic, notFoundText)
	case errors.Is(err, errAmbiguousID):
		return r.respond(ctx, ic, ambiguousIDText)
	case err != nil:
		return err
	}
	return r.deleteOwned(ctx, ic, id)
}

// resolveOwned expands a short id into the full id of one of the caller's reminders.
func (r *Router) resolveOwned(ctx context.Context, ic *interaction.Context, ref string) (string, error) {
	n, err := r.repo.Get(ctx, ref)
	switch {
	case err == nil && n.UserID == ic.Identity.UserID && n.TenantID == ic.Identity.TenantID:
		return n.ID, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("get reminder: %w", err)
	}

	items, err := r.repo.ListByOwner(ctx, ic.Identity.UserID, ic.Identity.TenantID)
	if err != nil {
		return "", fmt.Errorf("list reminders: %w", err)
	}
	var found string
	for _, n := range items {
		if strings.HasPrefix(n.ID, ref) {
			if found != "" {
				return "", errAmbiguousID
			}
			found = n.ID
		}
	}
	if found == "" {
		return "", store.ErrNotFound
	}
	return found, nil
}

func (r *Router) deleteOwned(ctx context.Context, ic *interaction.Context, id string) error {
	err := r.repo.Delete(ctx, id, ic.Identity.UserID, ic.Identity.TenantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return r.respond(ctx, ic, notFoundText)
	case err != nil:
		return fmt.Errorf("delete reminder: %w", err)
	}
	return r.respond(ctx, ic, deletedText)
}
