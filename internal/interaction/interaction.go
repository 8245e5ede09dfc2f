// Package interaction holds the per-request state that flows through the
// middleware chain.
package interaction

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lukadfagundes/bwaincell-sub004/internal/ratelimit"
)

// Kind classifies an inbound request. It is decided once when the Context is
// built and never re-derived.
type Kind string

const (
	KindCommand  Kind = "command"
	KindCallback Kind = "callback"
	KindMessage  Kind = "message"
	KindUnknown  Kind = "unknown"
)

// Identity is the (user, tenant) pair used for ownership and rate limiting.
type Identity struct {
	UserID   int64
	TenantID int64
}

// Replier sends responses back to the originator of a request.
type Replier interface {
	// Reply is the primary mechanism. It is usable once per request.
	Reply(ctx context.Context, text string) error
	// FollowUp is the secondary mechanism, usable any number of times.
	FollowUp(ctx context.Context, text string) error
	// Replied reports whether Reply has already been used.
	Replied() bool
}

// Metadata keys written by middleware.
const (
	MetaRateLimit   = "rateLimit"
	MetaRateLimited = "rateLimited"
	MetaDuration    = "duration"
)

// RateLimitInfo is stored under MetaRateLimit by the rate limit middleware.
type RateLimitInfo struct {
	Category  string
	Remaining int
	Limit     int
}

// actionCategories maps callback action prefixes to rate limit categories.
var actionCategories = []struct {
	prefix   string
	category string
}{
	{prefix: "remind:", category: ratelimit.CategoryReminder},
}

// Context is one inbound request.
type Context struct {
	ID        string
	Identity  Identity
	Kind      Kind
	Command   string // KindCommand only, without the leading slash
	Args      string // command arguments or message text
	ActionID  string // KindCallback only
	ChatID    int64
	StartTime time.Time
	Replier   Replier

	mu       sync.RWMutex
	metadata map[string]any
}

// New builds a Context, stamping its id and start time.
func New(kind Kind, identity Identity, replier Replier) *Context {
	return &Context{
		ID:        uuid.NewString(),
		Identity:  identity,
		Kind:      kind,
		StartTime: time.Now(),
		Replier:   replier,
		metadata:  make(map[string]any),
	}
}

// Category derives the rate limit category from the request.
func (c *Context) Category() string {
	switch c.Kind {
	case KindCallback:
		for _, ac := range actionCategories {
			if strings.HasPrefix(c.ActionID, ac.prefix) {
				return ac.category
			}
		}
	case KindCommand:
		return ratelimit.CategoryCommand
	}
	return ratelimit.CategoryGeneral
}

// Label is the kind-specific identifying field used in logs: the command name
// or a shortened action id.
func (c *Context) Label() string {
	switch c.Kind {
	case KindCommand:
		return c.Command
	case KindCallback:
		return ShortActionID(c.ActionID)
	}
	return ""
}

// ShortActionID truncates an action id for logging.
func ShortActionID(id string) string {
	const maxLen = 24
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen] + "…"
}

// Set stores a metadata value.
func (c *Context) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata == nil {
		c.metadata = make(map[string]any)
	}
	c.metadata[key] = v
}

// Get returns a metadata value.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// RateLimit returns the info recorded by the rate limit middleware, if any.
func (c *Context) RateLimit() (RateLimitInfo, bool) {
	v, ok := c.Get(MetaRateLimit)
	if !ok {
		return RateLimitInfo{}, false
	}
	info, ok := v.(RateLimitInfo)
	return info, ok
}

// Duration returns the elapsed time recorded by the logging middleware.
func (c *Context) Duration() (time.Duration, bool) {
	v, ok := c.Get(MetaDuration)
	if !ok {
		return 0, false
	}
	d, ok := v.(time.Duration)
	return d, ok
}

// RateLimited reports whether the request was rejected by rate limiting.
func (c *Context) RateLimited() bool {
	v, ok := c.Get(MetaRateLimited)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
