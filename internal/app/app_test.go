package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/lukadfagundes/bwaincell-sub004/internal/config"
	"github.com/lukadfagundes/bwaincell-sub004/internal/middleware"
	"github.com/lukadfagundes/bwaincell-sub004/internal/ratelimit"
)

func TestHTTPHandlerServesHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := middleware.NewMetrics(reg); err != nil {
		t.Fatalf("metrics: %v", err)
	}
	srv := httptest.NewServer(newHTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "bwaincell_interaction_in_flight") {
		t.Fatalf("metrics body missing in-flight gauge:\n%s", body)
	}
}

func TestNewRateLimitStoreMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, closeFn, err := newRateLimitStore(ctx, config.Config{RateLimitBackend: config.BackendMemory}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*ratelimit.MemoryStore); !ok {
		t.Fatalf("got %T, want *ratelimit.MemoryStore", s)
	}
}

func TestNewRateLimitStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{RateLimitBackend: config.BackendRedis, RedisAddr: mr.Addr()}

	s, closeFn, err := newRateLimitStore(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	defer closeFn()

	limited, err := s.IsLimited(context.Background(), "100:1:command", ratelimit.Config{MaxRequests: 1, Window: time.Minute})
	if err != nil || limited {
		t.Fatalf("first call: limited=%v err=%v", limited, err)
	}
	if keys := mr.Keys(); len(keys) != 1 || !strings.HasPrefix(keys[0], redisKeyPrefix) {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestNewRateLimitStoreRedisUnreachable(t *testing.T) {
	cfg := config.Config{RateLimitBackend: config.BackendRedis, RedisAddr: "127.0.0.1:1"}
	if _, _, err := newRateLimitStore(context.Background(), cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected ping error")
	}
}
