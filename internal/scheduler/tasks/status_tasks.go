package tasks

import (
	"context"
	"fmt"
)

// newStatusRefreshTask re-renders the time label. It runs every minute.
func newStatusRefreshTask(deps TaskDeps) ScheduledTaskFunc {
	return func(context.Context) error {
		deps.Status.Refresh()
		return nil
	}
}

// newBatteryPollTask stands in for the battery level-change event: the
// reporter re-renders only when the level moved.
func newBatteryPollTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		if err := deps.Status.PollPower(ctx); err != nil {
			return fmt.Errorf("battery poll failed: %w", err)
		}
		return nil
	}
}
