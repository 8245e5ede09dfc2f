// Package ratelimit counts requests per key over fixed time windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Categories with their own limits. Unknown categories fall back to General.
const (
	CategoryGeneral  = "general"
	CategoryCommand  = "command"
	CategoryReminder = "reminder"
)

// Config is the limit applied to a single check. It is supplied per call,
// so one store can serve categories with different limits.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Store answers whether a key is over its limit. Implementations must make
// the increment-and-compare for a single key atomic.
type Store interface {
	// IsLimited counts the request, then reports whether the key is now over
	// cfg.MaxRequests within the current window. The request that crosses the
	// threshold is itself counted and rejected.
	IsLimited(ctx context.Context, key string, cfg Config) (bool, error)
	// Remaining reports max(0, MaxRequests - count) without counting a request.
	Remaining(ctx context.Context, key string, cfg Config) (int, error)
	// Clear drops every bucket.
	Clear(ctx context.Context) error
}

// Key scopes a bucket to one identity and category.
func Key(userID, tenantID int64, category string) string {
	return fmt.Sprintf("%d:%d:%s", tenantID, userID, category)
}

// Limits maps a category to its Config.
type Limits map[string]Config

// DefaultLimits returns the stock per-category limits.
func DefaultLimits() Limits {
	return Limits{
		CategoryGeneral:  {MaxRequests: 30, Window: time.Minute},
		CategoryCommand:  {MaxRequests: 20, Window: time.Minute},
		CategoryReminder: {MaxRequests: 10, Window: time.Minute},
	}
}

// For returns the Config for category, falling back to General.
func (l Limits) For(category string) Config {
	if cfg, ok := l[category]; ok {
		return cfg
	}
	if cfg, ok := l[CategoryGeneral]; ok {
		return cfg
	}
	return DefaultLimits()[CategoryGeneral]
}
