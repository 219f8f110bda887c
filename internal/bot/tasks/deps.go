// Package tasks implements the bot's scheduled upkeep: pruning rate limit
// entries, sweeping in-memory state and database maintenance.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/armtemiy/armlab-bot/internal/config"
	"github.com/armtemiy/armlab-bot/internal/resilience"
)

// MaintenanceStore is the part of database.Store the tasks use.
type MaintenanceStore interface {
	DeleteRateLimitEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	RunSQLMaintenance(ctx context.Context) error
}

// Sweeper drops expired in-memory entries. *users.Cache implements it.
type Sweeper interface {
	Sweep() int
}

// WindowSweeper drops actors with empty windows. *ratelimit.MemoryLimiter
// implements it.
type WindowSweeper interface {
	Sweep(now time.Time) int
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  MaintenanceStore
	// Guard wraps store calls; nil runs them unguarded.
	Guard *resilience.Guard
	Cache Sweeper
	// Windows is nil unless the memory rate limit backend is in use.
	Windows WindowSweeper
	Clock   clockwork.Clock
}
