package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	window      time.Duration // last window seen, used by Sweep
	evicted     bool
}

// resetIfExpired must be called with b.mu held.
func (b *bucket) resetIfExpired(now time.Time, window time.Duration) {
	if now.Sub(b.windowStart) > window {
		b.windowStart = now
		b.count = 0
	}
	b.window = window
}

// MemoryStore is a process-local Store. Each key has its own lock, so checks
// for different keys never contend.
type MemoryStore struct {
	buckets sync.Map // string -> *bucket
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

// lock returns the live bucket for key with its mutex held.
func (s *MemoryStore) lock(key string, now time.Time) *bucket {
	for {
		v, _ := s.buckets.LoadOrStore(key, &bucket{windowStart: now})
		b := v.(*bucket)
		b.mu.Lock()
		if !b.evicted {
			return b
		}
		// Swept between load and lock; retry with a fresh bucket.
		b.mu.Unlock()
	}
}

func (s *MemoryStore) IsLimited(_ context.Context, key string, cfg Config) (bool, error) {
	now := s.now()
	b := s.lock(key, now)
	defer b.mu.Unlock()

	b.resetIfExpired(now, cfg.Window)
	b.count++
	return b.count > cfg.MaxRequests, nil
}

func (s *MemoryStore) Remaining(_ context.Context, key string, cfg Config) (int, error) {
	now := s.now()
	b := s.lock(key, now)
	defer b.mu.Unlock()

	b.resetIfExpired(now, cfg.Window)
	return max(0, cfg.MaxRequests-b.count), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.buckets.Range(func(k, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		b.evicted = true
		s.buckets.Delete(k)
		b.mu.Unlock()
		return true
	})
	return nil
}

// Sweep evicts buckets whose last window has expired and returns how many
// were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	s.buckets.Range(func(k, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		if now.Sub(b.windowStart) > b.window {
			b.evicted = true
			s.buckets.Delete(k)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// size returns the number of live buckets.
func (s *MemoryStore) size() int {
	n := 0
	s.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RunJanitor sweeps expired buckets every interval until ctx is canceled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
