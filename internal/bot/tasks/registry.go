package tasks

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/armtemiy/armlab-bot/internal/config"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every scheduled task keyed by the name used in
// the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	tasks := make(map[string]ScheduledTaskFunc)
	tasks[config.TaskPruneRateLimits] = newPruneRateLimitsTask(deps)
	tasks[config.TaskSweep] = newSweepTask(deps)
	tasks[config.TaskSQLMaintenance] = newSQLMaintenanceTask(deps)

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
