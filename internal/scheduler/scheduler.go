package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lukadfagundes/bwaincell-sub004/internal/domain"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Router implements this (method: SendMessage).
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Store is the slice of persistence the scheduler reads and rewrites.
// store.Repo satisfies it.
type Store interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	Save(ctx context.Context, n *domain.Notification) error
	Deactivate(ctx context.Context, n *domain.Notification) error
}

const (
	DefaultInterval  = 60 * time.Second
	DefaultBatchSize = 100
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBatchSize caps how many due notifications one tick handles.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics records tick and delivery counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler periodically polls the DB and dispatches due notifications.
// Ticks never overlap: a tick that fires while the previous one is still
// running is skipped.
type Scheduler struct {
	repo     Store
	log      *zap.Logger
	sender   Sender
	loc      *time.Location
	interval time.Duration
	batch    int
	now      func() time.Time
	metrics  *Metrics

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a new Scheduler. Recurring notifications are rescheduled in loc.
func New(repo Store, log *zap.Logger, sender Sender, loc *time.Location, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		repo:     repo,
		log:      log,
		sender:   sender,
		loc:      loc,
		interval: DefaultInterval,
		batch:    DefaultBatchSize,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run starts the loop until ctx is canceled, then waits for an in-flight tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", s.interval), zap.String("tz", s.loc.String()))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.Tick(ctx)
			}()
		}
	}
}

// Tick runs one scheduling cycle unless another is still running.
// It reports whether the cycle ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("tick skipped: previous tick still running")
		s.metrics.tick(tickSkipped)
		return false
	}
	defer s.running.Store(false)

	s.metrics.tick(tickRun)
	s.tick(ctx)
	return true
}

// tick performs one scheduling cycle: find due notifications, send, reschedule.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	due, err := s.repo.ListDue(ctx, now, s.batch)
	if err != nil {
		s.log.Error("ListDue failed", zap.Error(err))
		return
	}
	if len(due) > 0 {
		s.log.Debug("processing due notifications", zap.Int("count", len(due)))
	}
	for i := range due {
		s.process(ctx, &due[i], now)
	}
}

// process delivers one notification at most once and then advances or
// retires it, whatever the delivery outcome.
func (s *Scheduler) process(ctx context.Context, n *domain.Notification, now time.Time) {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.Int64("chat_id", n.ChannelID),
		zap.String("kind", string(n.Kind)),
	}
	if err := s.deliver(n); err != nil {
		s.log.Error("send failed", append(fields, zap.Error(err))...)
		s.metrics.delivery(deliveryFailed)
	} else {
		n.LastSentAt = &now
		s.metrics.delivery(deliverySent)
	}

	if n.Kind == domain.OneShot {
		n.Active = false
		if err := s.repo.Deactivate(ctx, n); err != nil {
			s.log.Error("Deactivate failed", append(fields, zap.Error(err))...)
		}
		return
	}

	n.NextTriggerAt = domain.NextTrigger(n.TimeOfDay, n.Kind, n.Weekday(), s.loc, now)
	if err := s.repo.Save(ctx, n); err != nil {
		s.log.Error("Save failed", append(fields, zap.Error(err))...)
	}
}

// deliver sends n, turning a sender panic into an error so the notification
// is still advanced.
func (s *Scheduler) deliver(n *domain.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return s.sender.SendMessage(n.ChannelID, n.Message)
}
