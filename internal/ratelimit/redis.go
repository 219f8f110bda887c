package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/armtemiy/armlab-bot/internal/resilience"
)

const defaultRedisPrefix = "ratelimit:window"

// RedisLimiter keeps each actor's window as a sorted set scored by admission
// time in milliseconds. Keys expire one period after the last admission.
// Any redis failure admits the request.
type RedisLimiter struct {
	maxRequests int
	period      time.Duration
	rdb         redis.Cmdable
	prefix      string
	guard       *resilience.Guard
	logger      *slog.Logger
	seq         atomic.Uint64
}

// NewRedisLimiter creates a redis-backed limiter.
func NewRedisLimiter(cfg Config, rdb redis.Cmdable, guard *resilience.Guard, logger *slog.Logger) *RedisLimiter {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		maxRequests: cfg.MaxRequests,
		period:      cfg.TimePeriod,
		rdb:         rdb,
		prefix:      defaultRedisPrefix,
		guard:       guard,
		logger:      logger.With("component", "ratelimit", "backend", BackendRedis),
	}
}

func (l *RedisLimiter) key(actorID int64) string {
	return l.prefix + ":" + strconv.FormatInt(actorID, 10)
}

// CheckLimit implements Limiter.
func (l *RedisLimiter) CheckLimit(ctx context.Context, actorID int64, now time.Time) bool {
	key := l.key(actorID)
	cutoff := now.Add(-l.period).UnixMilli()

	count, err := resilience.Call(ctx, l.guard, "redis_window_count", func(ctx context.Context) (int64, error) {
		pipe := l.rdb.Pipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		card := pipe.ZCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return card.Val(), nil
	})
	if err != nil {
		l.logger.WarnContext(ctx, "Rate limit check failed, admitting request", "actor_id", actorID, "error", err)
		return true
	}
	return count < int64(l.maxRequests)
}

// RecordRequest implements Limiter.
func (l *RedisLimiter) RecordRequest(ctx context.Context, actorID int64, now time.Time) {
	key := l.key(actorID)
	member := fmt.Sprintf("%d-%d", now.UnixNano(), l.seq.Add(1))

	err := l.guard.Do(ctx, "redis_window_add", func(ctx context.Context) error {
		pipe := l.rdb.Pipeline()
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		pipe.PExpire(ctx, key, l.period)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to record admitted request", "actor_id", actorID, "error", err)
	}
}
