package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lukadfagundes/bwaincell-sub004/internal/config"
	"github.com/lukadfagundes/bwaincell-sub004/internal/middleware"
	"github.com/lukadfagundes/bwaincell-sub004/internal/ratelimit"
	"github.com/lukadfagundes/bwaincell-sub004/internal/scheduler"
	"github.com/lukadfagundes/bwaincell-sub004/internal/store"
	"github.com/lukadfagundes/bwaincell-sub004/internal/telegram"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 5 * time.Second
	redisKeyPrefix  = "bwaincell:rl"
)

type App struct {
	cfg       config.Config
	log       *zap.Logger
	loc       *time.Location
	bot       *tgbotapi.BotAPI
	httpSrv   *http.Server
	reg       *prometheus.Registry
	mwMetrics *middleware.Metrics
	scMetrics *scheduler.Metrics
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mwMetrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("interaction metrics: %w", err)
	}
	scMetrics, err := scheduler.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("scheduler metrics: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      newHTTPHandler(reg),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{
		cfg:       cfg,
		log:       log,
		loc:       loc,
		bot:       bot,
		httpSrv:   srv,
		reg:       reg,
		mwMetrics: mwMetrics,
		scMetrics: scMetrics,
	}, nil
}

// newHTTPHandler serves liveness and Prometheus metrics.
func newHTTPHandler(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

// newRateLimitStore builds the configured backend. The returned func releases it.
func newRateLimitStore(ctx context.Context, cfg config.Config, log *zap.Logger) (ratelimit.Store, func(), error) {
	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		log.Info("rate limit backend ready", zap.String("backend", "redis"), zap.String("addr", cfg.RedisAddr))
		return ratelimit.NewRedisStore(client, redisKeyPrefix), func() { _ = client.Close() }, nil

	default:
		s := ratelimit.NewMemoryStore()
		janitorCtx, stop := context.WithCancel(ctx)
		go s.RunJanitor(janitorCtx, janitorInterval)
		log.Info("rate limit backend ready", zap.String("backend", "memory"))
		return s, stop, nil
	}
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting bwaincell",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("timezone", a.loc.String()),
		zap.String("rate_limit_backend", a.cfg.RateLimitBackend),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	defer func() { _ = repo.Close() }()
	a.log.Info("sqlite ready")

	limiter, closeLimiter, err := newRateLimitStore(ctx, a.cfg, a.log)
	if err != nil {
		a.log.Error("rate limit backend failed", zap.Error(err))
		return err
	}
	defer closeLimiter()

	router := telegram.NewRouter(a.bot, a.log, repo, a.loc,
		a.mwMetrics.Middleware(),
		middleware.Logging(a.log),
		middleware.RateLimit(limiter, a.cfg.Limits(), a.log),
	)

	sched := scheduler.New(repo, a.log, router, a.loc,
		scheduler.WithInterval(a.cfg.SchedulerInterval),
		scheduler.WithBatchSize(a.cfg.SchedulerBatch),
		scheduler.WithMetrics(a.scMetrics),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	// In-flight updates finish their store writes after a shutdown signal.
	handleCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}

			wg.Wait()
			a.log.Info("stopped")
			return nil

		case upd, ok := <-updCh:
			if !ok {
				updCh = nil
				continue
			}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				_ = router.HandleUpdate(handleCtx, upd)
			}(upd)
		}
	}
}
