package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
	"github.com/lukadfagundes/bwaincell-sub004/internal/ratelimit"
)

const (
	// ApproachingLimit is the remaining-request count below which a warning is logged.
	ApproachingLimit = 3

	ThrottledMessage = "⏳ You're doing that too often. Please wait a moment and try again."
)

// RateLimit rejects interactions whose identity is over the limit for the
// interaction's category. Rejected interactions get a best-effort notice and
// never reach the rest of the chain. Store failures let the request through.
func RateLimit(store ratelimit.Store, limits ratelimit.Limits, log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	if limits == nil {
		limits = ratelimit.DefaultLimits()
	}

	return func(ctx context.Context, ic *interaction.Context, next Next) error {
		if store == nil {
			return next()
		}

		category := ic.Category()
		cfg := limits.For(category)
		key := ratelimit.Key(ic.Identity.UserID, ic.Identity.TenantID, category)
		fields := []zap.Field{
			zap.String("interaction_id", ic.ID),
			zap.Int64("user_id", ic.Identity.UserID),
			zap.Int64("tenant_id", ic.Identity.TenantID),
			zap.String("category", category),
		}

		limited, err := store.IsLimited(ctx, key, cfg)
		if err != nil {
			log.Warn("rate limit check failed", append(fields, zap.Error(err))...)
			return next()
		}

		if limited {
			ic.Set(interaction.MetaRateLimited, true)
			log.Warn("rate limited", append(fields, zap.Int("limit", cfg.MaxRequests), zap.Duration("window", cfg.Window))...)
			notifyThrottled(ctx, ic, log, fields)
			return nil
		}

		remaining, err := store.Remaining(ctx, key, cfg)
		if err != nil {
			log.Warn("rate limit remaining failed", append(fields, zap.Error(err))...)
			return next()
		}
		ic.Set(interaction.MetaRateLimit, interaction.RateLimitInfo{
			Category:  category,
			Remaining: remaining,
			Limit:     cfg.MaxRequests,
		})
		if remaining < ApproachingLimit {
			log.Warn("approaching rate limit", append(fields, zap.Int("remaining", remaining), zap.Int("limit", cfg.MaxRequests))...)
		}
		return next()
	}
}

// notifyThrottled tries the primary reply, then the follow-up. Failures are logged and dropped.
func notifyThrottled(ctx context.Context, ic *interaction.Context, log *zap.Logger, fields []zap.Field) {
	r := ic.Replier
	if r == nil {
		return
	}
	if !r.Replied() {
		err := r.Reply(ctx, ThrottledMessage)
		if err == nil {
			return
		}
		log.Debug("throttle reply failed, trying follow-up", append(fields, zap.Error(err))...)
	}
	if err := r.FollowUp(ctx, ThrottledMessage); err != nil {
		log.Debug("throttle notice dropped", append(fields, zap.Error(err))...)
	}
}
