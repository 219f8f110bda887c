package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/armtemiy/armlab-bot/internal/resilience"
)

// EntryStore is the slice of database.Store the persistent backend needs.
type EntryStore interface {
	CountRateLimitEntries(ctx context.Context, telegramID int64, since time.Time) (int, error)
	InsertRateLimitEntry(ctx context.Context, telegramID int64, at time.Time) error
}

// StoreLimiter counts admissions stored as rows, so limits survive restarts
// and are shared by every process using the same database.
// Any storage failure admits the request.
type StoreLimiter struct {
	maxRequests int
	period      time.Duration
	store       EntryStore
	guard       *resilience.Guard
	logger      *slog.Logger
}

// NewStoreLimiter creates a database-backed limiter.
func NewStoreLimiter(cfg Config, store EntryStore, guard *resilience.Guard, logger *slog.Logger) *StoreLimiter {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreLimiter{
		maxRequests: cfg.MaxRequests,
		period:      cfg.TimePeriod,
		store:       store,
		guard:       guard,
		logger:      logger.With("component", "ratelimit", "backend", BackendDB),
	}
}

// CheckLimit implements Limiter.
func (l *StoreLimiter) CheckLimit(ctx context.Context, actorID int64, now time.Time) bool {
	count, err := resilience.Call(ctx, l.guard, "count_rate_limit_entries", func(ctx context.Context) (int, error) {
		return l.store.CountRateLimitEntries(ctx, actorID, now.Add(-l.period))
	})
	if err != nil {
		l.logger.WarnContext(ctx, "Rate limit check failed, admitting request", "actor_id", actorID, "error", err)
		return true
	}
	return count < l.maxRequests
}

// RecordRequest implements Limiter.
func (l *StoreLimiter) RecordRequest(ctx context.Context, actorID int64, now time.Time) {
	err := l.guard.Do(ctx, "insert_rate_limit_entry", func(ctx context.Context) error {
		return l.store.InsertRateLimitEntry(ctx, actorID, now)
	})
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to record admitted request", "actor_id", actorID, "error", err)
	}
}
