package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/aiphone/internal/database"
	"github.com/edgard/aiphone/internal/logger"
)

type fakeStatus struct {
	refreshed int
	polled    int
	pollErr   error
}

func (f *fakeStatus) Refresh() { f.refreshed++ }

func (f *fakeStatus) PollPower(context.Context) error {
	f.polled++
	return f.pollErr
}

type fakeSweeper struct {
	idle    time.Duration
	removed int
}

func (f *fakeSweeper) Sweep(_ context.Context, idle time.Duration) int {
	f.idle = idle
	return f.removed
}

type fakeStore struct {
	database.Store
	vacuumErr error
	vacuumed  bool
}

func (f *fakeStore) RunSQLMaintenance(context.Context) error {
	f.vacuumed = true
	return f.vacuumErr
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deps TaskDeps
		want []string
	}{
		{
			name: "all dependencies",
			deps: TaskDeps{Status: &fakeStatus{}, Sessions: &fakeSweeper{}, Store: &fakeStore{}},
			want: []string{"status_refresh", "battery_poll", "session_sweep", "sql_maintenance"},
		},
		{
			name: "no sql store",
			deps: TaskDeps{Status: &fakeStatus{}, Sessions: &fakeSweeper{}},
			want: []string{"status_refresh", "battery_poll", "session_sweep"},
		},
		{
			name: "nothing",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.deps.Logger = logger.Discard()
			got := RegisterAllTasks(tt.deps)
			names := make([]string, 0, len(got))
			for name := range got {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestStatusTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	status := &fakeStatus{}
	tasks := RegisterAllTasks(TaskDeps{Logger: logger.Discard(), Status: status})

	require.NoError(t, tasks["status_refresh"](ctx))
	assert.Equal(t, 1, status.refreshed)

	require.NoError(t, tasks["battery_poll"](ctx))
	assert.Equal(t, 1, status.polled)

	status.pollErr = errors.New("sysfs gone")
	assert.ErrorIs(t, tasks["battery_poll"](ctx), status.pollErr)
}

func TestSessionSweepTask(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{removed: 2}
	tasks := RegisterAllTasks(TaskDeps{Logger: logger.Discard(), Sessions: sweeper, IdleTimeout: time.Hour})

	require.NoError(t, tasks["session_sweep"](context.Background()))
	assert.Equal(t, time.Hour, sweeper.idle)
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &fakeStore{}
	tasks := RegisterAllTasks(TaskDeps{Logger: logger.Discard(), Store: store})
	require.NoError(t, tasks["sql_maintenance"](ctx))
	assert.True(t, store.vacuumed)

	store.vacuumErr = errors.New("database is locked")
	assert.ErrorIs(t, tasks["sql_maintenance"](ctx), store.vacuumErr)
}
