package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	now := time.Now().UTC().Truncate(time.Second)
	task := &domain.ScheduledTask{
		ID:          domain.TaskIDIngest,
		Name:        "Source Ingestion",
		Interval:    domain.DefaultIngestInterval,
		LastRun:     now.Add(-time.Hour),
		NextRun:     now.Add(5 * time.Hour),
		LastSuccess: now.Add(-time.Hour),
		Enabled:     true,
	}

	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	retrieved, err := schedulerStore.GetTask(ctx, domain.TaskIDIngest)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, task.ID, retrieved.ID)
	assert.Equal(t, task.Name, retrieved.Name)
	assert.Equal(t, task.Interval, retrieved.Interval)
	assert.Equal(t, task.Enabled, retrieved.Enabled)
	assert.WithinDuration(t, task.LastRun, retrieved.LastRun, time.Second)
	assert.WithinDuration(t, task.NextRun, retrieved.NextRun, time.Second)
	assert.WithinDuration(t, task.LastSuccess, retrieved.LastSuccess, time.Second)
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	task, err := store.SchedulerStore().GetTask(context.Background(), "non-existent")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_SaveTask_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	task := &domain.ScheduledTask{
		ID:       domain.TaskIDIngest,
		Name:     "Source Ingestion",
		Interval: time.Hour,
		Enabled:  true,
	}
	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	task.Interval = 2 * time.Hour
	task.Enabled = false
	task.LastError = "discover failed"
	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	retrieved, err := schedulerStore.GetTask(ctx, domain.TaskIDIngest)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, 2*time.Hour, retrieved.Interval)
	assert.False(t, retrieved.Enabled)
	assert.Equal(t, "discover failed", retrieved.LastError)
}

func TestSchedulerStore_SaveTask_NilInput(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SchedulerStore().SaveTask(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_ListTasks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, schedulerStore.SaveTask(ctx, &domain.ScheduledTask{
			ID:       fmt.Sprintf("task-%d", i),
			Name:     fmt.Sprintf("Task %d", i),
			Interval: time.Hour,
			Enabled:  true,
		}))
	}

	tasks, err := schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestSchedulerStore_DeleteTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	require.NoError(t, schedulerStore.SaveTask(ctx, &domain.ScheduledTask{
		ID: "doomed", Name: "Doomed", Interval: time.Hour,
	}))
	require.NoError(t, schedulerStore.DeleteTask(ctx, "doomed"))

	task, err := schedulerStore.GetTask(ctx, "doomed")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_RecordResultAndHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, schedulerStore.RecordResult(ctx, &domain.TaskResult{
			TaskID:         domain.TaskIDIngest,
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			EndedAt:        base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Success:        i%2 == 0,
			ItemsProcessed: i,
		}))
	}

	history, err := schedulerStore.GetTaskHistory(ctx, domain.TaskIDIngest, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Most recent first
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 3, history[1].ItemsProcessed)
	assert.Equal(t, 2, history[2].ItemsProcessed)
}

func TestSchedulerStore_RecordResult_NilInput(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SchedulerStore().RecordResult(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_PruneHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < 10; i++ {
		require.NoError(t, schedulerStore.RecordResult(ctx, &domain.TaskResult{
			TaskID:         domain.TaskIDIngest,
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			EndedAt:        base.Add(time.Duration(i)*time.Minute + time.Second),
			Success:        true,
			ItemsProcessed: i,
		}))
	}

	require.NoError(t, schedulerStore.PruneHistory(ctx, 4))

	history, err := schedulerStore.GetTaskHistory(ctx, domain.TaskIDIngest, 100)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, 9, history[0].ItemsProcessed)
	assert.Equal(t, 6, history[3].ItemsProcessed)
}
