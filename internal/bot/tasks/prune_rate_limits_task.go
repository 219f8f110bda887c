package tasks

import (
	"context"
	"fmt"

	"github.com/armtemiy/armlab-bot/internal/resilience"
)

// newPruneRateLimitsTask deletes persisted rate limit entries older than the
// configured retention. Entries inside any window are never touched as long
// as retention exceeds the window period.
func newPruneRateLimitsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "prune_rate_limits")

	retention := deps.Config.RateLimit.Retention
	if retention < deps.Config.RateLimit.TimePeriod {
		retention = deps.Config.RateLimit.TimePeriod
	}

	return func(ctx context.Context) error {
		start := deps.Clock.Now()
		cutoff := start.Add(-retention)

		deleted, err := resilience.Call(ctx, deps.Guard, "prune_rate_limits", func(ctx context.Context) (int64, error) {
			return deps.Store.DeleteRateLimitEntriesBefore(ctx, cutoff)
		})
		if err != nil {
			return fmt.Errorf("failed to prune rate limit entries: %w", err)
		}

		log.InfoContext(ctx, "Pruned rate limit entries",
			"deleted", deleted,
			"cutoff", cutoff,
			"duration", deps.Clock.Since(start))
		return nil
	}
}
