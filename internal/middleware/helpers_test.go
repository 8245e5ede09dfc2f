package middleware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
)

type fakeReplier struct {
	mu        sync.Mutex
	replied   bool
	replyErr  error
	followErr error
	replies   []string
	followUps []string
}

func (f *fakeReplier) Reply(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replied = true
	return nil
}

func (f *fakeReplier) FollowUp(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = append(f.followUps, text)
	return f.followErr
}

func (f *fakeReplier) Replied() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replied
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func commandContext(userID int64, r interaction.Replier) *interaction.Context {
	ic := interaction.New(interaction.KindCommand, interaction.Identity{UserID: userID, TenantID: 100}, r)
	ic.Command = "daily"
	return ic
}

// steppingClock returns start, then start+step, start+2*step, ...
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}
