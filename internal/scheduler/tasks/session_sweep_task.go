package tasks

import (
	"context"
)

func newSessionSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_sweep")

	return func(ctx context.Context) error {
		if removed := deps.Sessions.Sweep(ctx, deps.IdleTimeout); removed > 0 {
			log.DebugContext(ctx, "Session sweep finished", "removed", removed)
		}
		return nil
	}
}
