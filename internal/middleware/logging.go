package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
)

// SlowThreshold is the default elapsed time above which an interaction is
// reported as slow.
const SlowThreshold = 2 * time.Second

// PanicError carries a panic recovered from further down the chain. Only
// panics carry a stack; errors returned normally are logged without one.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// LoggingOption configures Logging.
type LoggingOption func(*logging)

// WithSlowThreshold overrides SlowThreshold.
func WithSlowThreshold(d time.Duration) LoggingOption {
	return func(l *logging) { l.slow = d }
}

// WithLoggingClock allows injection of a custom clock (primarily for testing).
func WithLoggingClock(now func() time.Time) LoggingOption {
	return func(l *logging) {
		if now != nil {
			l.now = now
		}
	}
}

type logging struct {
	log  *zap.Logger
	slow time.Duration
	now  func() time.Time
}

// Logging logs the start and the outcome of every interaction and records
// the elapsed time under interaction.MetaDuration. Errors are logged and
// returned unchanged; panics are recovered, logged and returned as *PanicError.
func Logging(log *zap.Logger, opts ...LoggingOption) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	l := &logging{log: log, slow: SlowThreshold, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l.handle
}

func (l *logging) handle(_ context.Context, ic *interaction.Context, next Next) error {
	start := l.now()
	fields := interactionFields(ic)
	l.log.Info("interaction started", fields...)

	err := callRecovering(next)

	elapsed := l.now().Sub(start)
	ic.Set(interaction.MetaDuration, elapsed)
	fields = append(fields, zap.Duration("duration", elapsed))

	if err != nil {
		failure := append(fields, zap.String("error", err.Error()))
		var pe *PanicError
		if errors.As(err, &pe) && pe.Unwrap() != nil {
			failure = append(failure, zap.ByteString("stack", pe.Stack))
		}
		l.log.Error("interaction failed", failure...)
		return err
	}

	if info, ok := ic.RateLimit(); ok {
		fields = append(fields, zap.String("category", info.Category), zap.Int("remaining", info.Remaining))
	}
	l.log.Info("interaction completed", fields...)
	if elapsed > l.slow {
		l.log.Warn("slow interaction", append(fields, zap.Duration("threshold", l.slow))...)
	}
	return nil
}

func callRecovering(next Next) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return next()
}

func interactionFields(ic *interaction.Context) []zap.Field {
	fields := []zap.Field{
		zap.String("interaction_id", ic.ID),
		zap.Int64("user_id", ic.Identity.UserID),
		zap.Int64("tenant_id", ic.Identity.TenantID),
		zap.String("kind", string(ic.Kind)),
	}
	switch ic.Kind {
	case interaction.KindCommand:
		fields = append(fields, zap.String("command", ic.Label()))
	case interaction.KindCallback:
		fields = append(fields, zap.String("action_id", ic.Label()))
	}
	return fields
}
