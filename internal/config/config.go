package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lukadfagundes/bwaincell-sub004/internal/ratelimit"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath   string `envconfig:"DB_PATH" default:"./data/bwaincell.db"`
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz + metrics

	SchedulerInterval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"60s"`
	SchedulerBatch    int           `envconfig:"SCHEDULER_BATCH" default:"100"`

	RateLimitBackend string `envconfig:"RATE_LIMIT_BACKEND" default:"memory"` // memory|redis
	RedisAddr        string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
	RedisDB          int    `envconfig:"REDIS_DB" default:"0"`

	GeneralMax     int           `envconfig:"RATE_LIMIT_GENERAL_MAX" default:"30"`
	GeneralWindow  time.Duration `envconfig:"RATE_LIMIT_GENERAL_WINDOW" default:"1m"`
	CommandMax     int           `envconfig:"RATE_LIMIT_COMMAND_MAX" default:"20"`
	CommandWindow  time.Duration `envconfig:"RATE_LIMIT_COMMAND_WINDOW" default:"1m"`
	ReminderMax    int           `envconfig:"RATE_LIMIT_REMINDER_MAX" default:"10"`
	ReminderWindow time.Duration `envconfig:"RATE_LIMIT_REMINDER_WINDOW" default:"1m"`
}

// Load reads an optional .env file, then environment variables into Config.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.RateLimitBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND: unknown backend %q", c.RateLimitBackend)
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if c.SchedulerBatch <= 0 {
		return fmt.Errorf("SCHEDULER_BATCH must be positive")
	}
	for cat, l := range c.Limits() {
		if l.MaxRequests <= 0 || l.Window <= 0 {
			return fmt.Errorf("rate limit %q: max and window must be positive", cat)
		}
	}
	return nil
}

// Location resolves TIMEZONE.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// Limits builds the per-category rate limit table.
func (c Config) Limits() ratelimit.Limits {
	return ratelimit.Limits{
		ratelimit.CategoryGeneral:  {MaxRequests: c.GeneralMax, Window: c.GeneralWindow},
		ratelimit.CategoryCommand:  {MaxRequests: c.CommandMax, Window: c.CommandWindow},
		ratelimit.CategoryReminder: {MaxRequests: c.ReminderMax, Window: c.ReminderWindow},
	}
}
