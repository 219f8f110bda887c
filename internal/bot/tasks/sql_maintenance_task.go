package tasks

import (
	"context"
	"fmt"
)

// newSQLMaintenanceTask compacts the database: VACUUM on sqlite, VACUUM
// ANALYZE on postgres.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		start := deps.Clock.Now()
		if err := deps.Guard.Do(ctx, "sql_maintenance", deps.Store.RunSQLMaintenance); err != nil {
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Database maintenance finished", "duration", deps.Clock.Since(start))
		return nil
	}
}
