// Package ratelimit implements sliding-window admission control per actor.
//
// A request is admitted when fewer than MaxRequests admissions of the same
// actor fall inside the trailing TimePeriod. Checking and recording are two
// separate calls: concurrent requests of one actor may both pass the check,
// so the window can overshoot by the number of in-flight requests.
package ratelimit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/armtemiy/armlab-bot/internal/resilience"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendDB     = "db"
	BackendRedis  = "redis"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultMaxRequests = 30
	DefaultTimePeriod  = 60 * time.Second
)

// Limiter decides whether an actor may issue another request.
type Limiter interface {
	// CheckLimit reports whether a request by actorID at now is within budget.
	// It never records anything.
	CheckLimit(ctx context.Context, actorID int64, now time.Time) bool

	// RecordRequest registers an admitted request by actorID at now.
	RecordRequest(ctx context.Context, actorID int64, now time.Time)
}

// Config holds the window parameters shared by every backend.
type Config struct {
	Backend     string
	MaxRequests int
	TimePeriod  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.TimePeriod <= 0 {
		c.TimePeriod = DefaultTimePeriod
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	return c
}

// Deps carries the collaborators a backend may need.
type Deps struct {
	Logger *slog.Logger
	// Store is required by the db backend.
	Store EntryStore
	// Guard wraps store and redis calls; nil runs them unguarded.
	Guard *resilience.Guard
	// Redis is required by the redis backend.
	Redis redis.Cmdable
}

// New builds the backend selected by cfg.Backend.
func New(cfg Config, deps Deps) (Limiter, error) {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryLimiter(cfg), nil
	case BackendDB, "database", "sql":
		if deps.Store == nil {
			return nil, fmt.Errorf("rate limit backend %q requires a store", cfg.Backend)
		}
		return NewStoreLimiter(cfg, deps.Store, deps.Guard, deps.Logger), nil
	case BackendRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("rate limit backend %q requires a redis client", cfg.Backend)
		}
		return NewRedisLimiter(cfg, deps.Redis, deps.Guard, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
