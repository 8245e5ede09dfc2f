package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/lukadfagundes/bwaincell-sub004/internal/domain"
	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
	"github.com/lukadfagundes/bwaincell-sub004/internal/middleware"
	"github.com/lukadfagundes/bwaincell-sub004/internal/ratelimit"
	"github.com/lukadfagundes/bwaincell-sub004/internal/store"
)

var testNow = time.Date(2025, time.May, 7, 10, 0, 0, 0, time.UTC) // Wednesday

type fakeBot struct {
	mu        sync.Mutex
	sent      []tgbotapi.MessageConfig
	callbacks []tgbotapi.CallbackConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		b.callbacks = append(b.callbacks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) lastSent(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return b.sent[len(b.sent)-1]
}

func openRepo(t *testing.T) *store.SQLiteRepo {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestRouter(t *testing.T, repo store.Repo, units ...middleware.Middleware) (*Router, *fakeBot) {
	t.Helper()
	bot := &fakeBot{}
	r := NewRouter(bot, zap.NewNop(), repo, time.UTC, units...).WithClock(func() time.Time { return testNow })
	return r, bot
}

func commandUpdate(userID, chatID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func callbackUpdate(userID, chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestInteractionForClassifiesUpdates(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	ic := r.interactionFor(commandUpdate(1, 100, "/daily@bwaincell_bot 09:00 drink water"))
	if ic.Kind != interaction.KindCommand || ic.Command != "daily" || ic.Args != "09:00 drink water" {
		t.Fatalf("command: got kind=%s command=%q args=%q", ic.Kind, ic.Command, ic.Args)
	}
	if ic.Identity != (interaction.Identity{UserID: 1, TenantID: 100}) || ic.ChatID != 100 {
		t.Fatalf("command identity: %+v chat=%d", ic.Identity, ic.ChatID)
	}
	if ic.Category() != ratelimit.CategoryCommand {
		t.Fatalf("command category: %s", ic.Category())
	}

	ic = r.interactionFor(callbackUpdate(1, 100, actionDeletePrefix+"abc"))
	if ic.Kind != interaction.KindCallback || ic.Category() != ratelimit.CategoryReminder {
		t.Fatalf("callback: got kind=%s category=%s", ic.Kind, ic.Category())
	}

	ic = r.interactionFor(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 100}, Text: " hello ",
	}})
	if ic.Kind != interaction.KindMessage || ic.Args != "hello" || ic.Category() != ratelimit.CategoryGeneral {
		t.Fatalf("message: got kind=%s args=%q", ic.Kind, ic.Args)
	}

	ic = r.interactionFor(tgbotapi.Update{})
	if ic.Kind != interaction.KindUnknown {
		t.Fatalf("empty update: got kind=%s", ic.Kind)
	}
}

func TestDailyCommandCreatesReminder(t *testing.T) {
	repo := openRepo(t)
	r, bot := newTestRouter(t, repo)

	if err := r.HandleUpdate(context.Background(), commandUpdate(1, 100, "/daily 09:00 drink water")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	items, err := repo.ListByOwner(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d reminders, want 1", len(items))
	}
	n := items[0]
	if n.Kind != domain.Daily || n.Message != "drink water" || n.ChannelID != 100 {
		t.Fatalf("unexpected reminder: %+v", n)
	}
	if want := time.Date(2025, time.May, 8, 9, 0, 0, 0, time.UTC); !n.NextTriggerAt.Equal(want) {
		t.Fatalf("next trigger: got %s want %s", n.NextTriggerAt, want)
	}

	reply := bot.lastSent(t)
	if reply.ReplyToMessageID != 7 || !strings.Contains(reply.Text, "daily at 09:00") {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestWeeklyCommandRejectsBadDay(t *testing.T) {
	repo := openRepo(t)
	r, bot := newTestRouter(t, repo)

	if err := r.HandleUpdate(context.Background(), commandUpdate(1, 100, "/weekly funday 09:00 stand-up")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := bot.lastSent(t).Text; got != usageWeekly {
		t.Fatalf("reply: got %q", got)
	}
	items, _ := repo.ListByOwner(context.Background(), 1, 100)
	if len(items) != 0 {
		t.Fatalf("nothing should be stored, got %d", len(items))
	}
}

func TestParseCreateArgs(t *testing.T) {
	tod, day, text, err := parseCreateArgs(domain.Weekly, "  mon   9:30   team   sync ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tod != (domain.TimeOfDay{Hour: 9, Minute: 30}) || day == nil || *day != 1 || text != "team   sync" {
		t.Fatalf("got tod=%v day=%v text=%q", tod, day, text)
	}

	if _, _, _, err := parseCreateArgs(domain.Daily, "25:00 late"); err == nil {
		t.Fatalf("expected error for invalid time")
	}
	if _, day, _, err := parseCreateArgs(domain.OneShot, "08:00 coffee"); err != nil || day != nil {
		t.Fatalf("one-shot: day=%v err=%v", day, err)
	}
}

func TestListThenDeleteViaButton(t *testing.T) {
	repo := openRepo(t)
	r, bot := newTestRouter(t, repo)
	ctx := context.Background()

	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/remind 18:00 call mom")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/reminders")); err != nil {
		t.Fatalf("list: %v", err)
	}

	list := bot.lastSent(t)
	if !strings.Contains(list.Text, "call mom") {
		t.Fatalf("list text: %q", list.Text)
	}
	kb, ok := list.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("expected one delete button, got %#v", list.ReplyMarkup)
	}
	data := kb.InlineKeyboard[0][0].CallbackData
	if data == nil || !strings.HasPrefix(*data, actionDeletePrefix) {
		t.Fatalf("unexpected callback data: %v", data)
	}

	if err := r.HandleUpdate(ctx, callbackUpdate(1, 100, *data)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(bot.callbacks) != 1 || bot.callbacks[0].Text != deletedText || !bot.callbacks[0].ShowAlert {
		t.Fatalf("unexpected callback answers: %+v", bot.callbacks)
	}
	items, _ := repo.ListByOwner(ctx, 1, 100)
	if len(items) != 0 {
		t.Fatalf("reminder should be gone, got %d", len(items))
	}
}

func TestDeleteCommandAcceptsShortID(t *testing.T) {
	repo := openRepo(t)
	r, bot := newTestRouter(t, repo)
	ctx := context.Background()

	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/daily 07:00 stretch")); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, _ := repo.ListByOwner(ctx, 1, 100)
	if len(items) != 1 {
		t.Fatalf("setup: got %d reminders", len(items))
	}

	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/delete "+shortID(items[0].ID))); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := bot.lastSent(t).Text; got != deletedText {
		t.Fatalf("reply: got %q", got)
	}
	if _, err := repo.Get(ctx, items[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestDeleteCommandAcceptsFullIDOfOwnReminderOnly(t *testing.T) {
	repo := openRepo(t)
	r, bot := newTestRouter(t, repo)
	ctx := context.Background()

	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/weekly fri 17:00 timesheet")); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, _ := repo.ListByOwner(ctx, 1, 100)
	if len(items) != 1 {
		t.Fatalf("setup: got %d reminders", len(items))
	}
	id := items[0].ID

	if err := r.HandleUpdate(ctx, commandUpdate(2, 100, "/delete "+id)); err != nil {
		t.Fatalf("foreign delete: %v", err)
	}
	if got := bot.lastSent(t).Text; got != notFoundText {
		t.Fatalf("foreign delete reply: got %q", got)
	}

	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/delete "+id)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := bot.lastSent(t).Text; got != deletedText {
		t.Fatalf("delete reply: got %q", got)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestDeleteIsScopedToOwner(t *testing.T) {
	repo := openRepo(t)
	r, bot := newTestRouter(t, repo)
	ctx := context.Background()

	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/daily 07:00 stretch")); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, _ := repo.ListByOwner(ctx, 1, 100)

	if err := r.HandleUpdate(ctx, callbackUpdate(2, 100, actionDeletePrefix+items[0].ID)); err != nil {
		t.Fatalf("foreign delete: %v", err)
	}
	if len(bot.callbacks) != 1 || bot.callbacks[0].Text != notFoundText {
		t.Fatalf("unexpected callback answers: %+v", bot.callbacks)
	}
	if _, err := repo.Get(ctx, items[0].ID); err != nil {
		t.Fatalf("reminder should survive: %v", err)
	}
}

func TestRateLimitedCommandGetsThrottleNotice(t *testing.T) {
	limits := ratelimit.Limits{ratelimit.CategoryCommand: {MaxRequests: 1, Window: time.Minute}}
	r, bot := newTestRouter(t, openRepo(t), middleware.RateLimit(ratelimit.NewMemoryStore(), limits, zap.NewNop()))
	ctx := context.Background()

	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/help")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := r.HandleUpdate(ctx, commandUpdate(1, 100, "/help")); err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(bot.sent) != 2 || bot.sent[1].Text != middleware.ThrottledMessage {
		t.Fatalf("unexpected messages: %+v", bot.sent)
	}
}

type failingRepo struct{ store.Repo }

func (failingRepo) ListByOwner(context.Context, int64, int64) ([]domain.Notification, error) {
	return nil, errors.New("disk on fire")
}

func TestHandlerErrorSendsGenericNotice(t *testing.T) {
	r, bot := newTestRouter(t, failingRepo{})

	if err := r.HandleUpdate(context.Background(), commandUpdate(1, 100, "/reminders")); err == nil {
		t.Fatalf("expected error")
	}
	if got := bot.lastSent(t).Text; got != genericError {
		t.Fatalf("reply: got %q", got)
	}
}

func TestReplierPrimaryIsSingleUse(t *testing.T) {
	bot := &fakeBot{}
	p := &replier{bot: bot, chatID: 100, replyTo: 5}
	ctx := context.Background()

	if err := p.Reply(ctx, "one"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if !p.Replied() {
		t.Fatalf("Replied should be true")
	}
	if err := p.Reply(ctx, "two"); !errors.Is(err, errAlreadyReplied) {
		t.Fatalf("second reply: got %v", err)
	}
	if err := p.FollowUp(ctx, "three"); err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if len(bot.sent) != 2 || bot.sent[0].ReplyToMessageID != 5 || bot.sent[1].ReplyToMessageID != 0 {
		t.Fatalf("unexpected messages: %+v", bot.sent)
	}

	orphan := &replier{bot: bot}
	if err := orphan.FollowUp(ctx, "x"); !errors.Is(err, errNoChat) {
		t.Fatalf("follow-up without chat: got %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	r, bot := newTestRouter(t, nil)

	if err := r.SendMessage(42, "⏰ stand-up"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if m := bot.lastSent(t); m.ChatID != 42 || m.Text != "⏰ stand-up" {
		t.Fatalf("unexpected message: %+v", m)
	}
}
