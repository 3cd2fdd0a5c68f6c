// Package tasks defines the scheduled jobs of the daemon and the registry
// that maps configuration names to them.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/aiphone/internal/database"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context is
// cancelled on shutdown.
type ScheduledTaskFunc func(ctx context.Context) error

// StatusSource is the part of the status reporter the jobs drive.
type StatusSource interface {
	Refresh()
	PollPower(ctx context.Context) error
}

// SessionSweeper evicts idle sessions.
type SessionSweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// TaskDeps contains the dependencies of the scheduled tasks. Store is nil
// when the profile is not kept in SQLite.
type TaskDeps struct {
	Logger      *slog.Logger
	Store       database.Store
	Status      StatusSource
	Sessions    SessionSweeper
	IdleTimeout time.Duration
}

// RegisterAllTasks returns the tasks keyed by their configuration name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	if deps.Status != nil {
		tasks["status_refresh"] = newStatusRefreshTask(deps)
		tasks["battery_poll"] = newBatteryPollTask(deps)
	}
	if deps.Sessions != nil {
		tasks["session_sweep"] = newSessionSweepTask(deps)
	}
	if deps.Store != nil {
		tasks["sql_maintenance"] = newSQLMaintenanceTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
