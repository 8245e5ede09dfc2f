package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lukadfagundes/bwaincell-sub004/internal/domain"
)

// UI texts in English
const (
	usageRemind     = "Usage: /remind HH:MM text"
	usageDaily      = "Usage: /daily HH:MM text"
	usageWeekly     = "Usage: /weekly DAY HH:MM text (DAY: mon…sun or 0–6)"
	usageDelete     = "Usage: /delete ID"
	unknownCommand  = "Unknown command. Try /help."
	genericError    = "⚠️ Something went wrong. Please try again later."
	noReminders     = "You have no reminders. Create one with /remind, /daily or /weekly."
	remindersTitle  = "🔔 Your reminders:"
	deletedText     = "🗑 Reminder deleted."
	notFoundText    = "Reminder not found."
	ambiguousIDText = "That ID matches more than one reminder; use more characters."

	actionDeletePrefix = "remind:delete:"
	shortIDLen         = 8
	maxListed          = 20
)

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// describeRecurrence renders "daily at 09:00", "every Monday at 09:00" or "once at 09:00".
func describeRecurrence(n *domain.Notification) string {
	switch n.Kind {
	case domain.Daily:
		return "daily at " + n.TimeOfDay.String()
	case domain.Weekly:
		return fmt.Sprintf("every %s at %s", domain.WeekdayName(n.Weekday()), n.TimeOfDay)
	default:
		return "once at " + n.TimeOfDay.String()
	}
}

func createdText(n *domain.Notification, loc *time.Location) string {
	return fmt.Sprintf("✅ Reminder %s set %s.\nNext: %s",
		shortID(n.ID), describeRecurrence(n), domain.LocalizeTime(n.NextTriggerAt, loc))
}

func listText(items []domain.Notification, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(remindersTitle)
	for i := range items {
		n := &items[i]
		next := domain.LocalizeTime(n.NextTriggerAt, loc)
		if !n.Active {
			next = "done"
		}
		fmt.Fprintf(&b, "\n\n• %s — %s — next: %s\n  %s", shortID(n.ID), describeRecurrence(n), next, n.Message)
	}
	if len(items) == maxListed {
		b.WriteString("\n\n…")
	}
	return b.String()
}

// deleteKeyboard builds one delete button per reminder.
func deleteKeyboard(items []domain.Notification) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items))
	for _, n := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+shortID(n.ID), actionDeletePrefix+n.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
