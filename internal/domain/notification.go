package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecurrenceKind governs when a notification re-fires.
type RecurrenceKind string

const (
	OneShot RecurrenceKind = "once"
	Daily   RecurrenceKind = "daily"
	Weekly  RecurrenceKind = "weekly"
)

// MaxMessageLen caps reminder text, same as the chat UI accepts.
const MaxMessageLen = 512

var (
	ErrInvalidRecurrence = errors.New("invalid recurrence kind")
	ErrInvalidWeekday    = errors.New("invalid day of week")
	ErrEmptyMessage      = errors.New("empty message")
	ErrMessageTooLong    = errors.New("message too long")
)

// Valid reports whether k is one of the known kinds.
func (k RecurrenceKind) Valid() bool {
	switch k {
	case OneShot, Daily, Weekly:
		return true
	}
	return false
}

// Notification is a persisted one-shot or recurring reminder.
type Notification struct {
	ID            string
	UserID        int64
	TenantID      int64 // chat the reminder was created in
	ChannelID     int64 // chat the reminder is delivered to
	Message       string
	Kind          RecurrenceKind
	TimeOfDay     TimeOfDay
	DayOfWeek     *int // 0 = Sunday; set only for Weekly
	Active        bool
	NextTriggerAt time.Time  // UTC
	LastSentAt    *time.Time // UTC, nullable
	CreatedAt     time.Time  // UTC
}

// Validate rejects definitions the scheduler must never see.
func (n *Notification) Validate() error {
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecurrence, n.Kind)
	}
	if err := n.TimeOfDay.Validate(); err != nil {
		return err
	}
	if n.Kind == Weekly {
		if n.DayOfWeek == nil || *n.DayOfWeek < 0 || *n.DayOfWeek > 6 {
			return ErrInvalidWeekday
		}
	} else if n.DayOfWeek != nil {
		return fmt.Errorf("%w: only weekly reminders take a day", ErrInvalidWeekday)
	}
	msg := strings.TrimSpace(n.Message)
	if msg == "" {
		return ErrEmptyMessage
	}
	if len(msg) > MaxMessageLen {
		return fmt.Errorf("%w: max %d characters", ErrMessageTooLong, MaxMessageLen)
	}
	return nil
}

// Weekday returns the configured weekday, or -1 when none is set.
func (n *Notification) Weekday() int {
	if n.DayOfWeek == nil {
		return -1
	}
	return *n.DayOfWeek
}

// NewNotification builds a validated, active definition whose first trigger
// is computed in loc relative to now.
func NewNotification(userID, tenantID, channelID int64, kind RecurrenceKind, tod TimeOfDay, dayOfWeek *int, message string, loc *time.Location, now time.Time) (*Notification, error) {
	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		TenantID:  tenantID,
		ChannelID: channelID,
		Message:   strings.TrimSpace(message),
		Kind:      kind,
		TimeOfDay: tod,
		DayOfWeek: dayOfWeek,
		Active:    true,
		CreatedAt: now.UTC(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	n.NextTriggerAt = NextTrigger(tod, kind, n.Weekday(), loc, now)
	return n, nil
}
