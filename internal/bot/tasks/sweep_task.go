package tasks

import "context"

// newSweepTask evicts expired snapshots and empty in-memory rate windows.
func newSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sweep")

	return func(ctx context.Context) error {
		var snapshots, windows int
		if deps.Cache != nil {
			snapshots = deps.Cache.Sweep()
		}
		if deps.Windows != nil {
			windows = deps.Windows.Sweep(deps.Clock.Now())
		}

		log.DebugContext(ctx, "Swept in-memory state", "snapshots", snapshots, "windows", windows)
		return nil
	}
}
