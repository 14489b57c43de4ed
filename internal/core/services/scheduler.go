package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
	"github.com/meridian-labs/safekb-cli/internal/logger"
)

// historyRetention is how many results are kept per task.
const historyRetention = 100

// tickInterval is how often due tasks are checked.
const tickInterval = time.Minute

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler runs the periodic re-ingestion task. Task state and run
// history are persisted so restarts pick up the schedule where it
// stopped.
type Scheduler struct {
	config      domain.SchedulerConfig
	store       driven.SchedulerStore
	sourceStore driven.SourceStore
	ingestor    driving.IngestOrchestrator

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	inFlight map[string]bool
}

// NewScheduler creates a scheduler.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	sourceStore driven.SourceStore,
	ingestor driving.IngestOrchestrator,
) *Scheduler {
	if config.IngestInterval <= 0 {
		config.IngestInterval = domain.DefaultIngestInterval
	}
	return &Scheduler{
		config:      config,
		store:       store,
		sourceStore: sourceStore,
		ingestor:    ingestor,
		inFlight:    make(map[string]bool),
	}
}

// Start begins the scheduler loop. Blocks until the context is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.ensureIngestTask(ctx); err != nil {
		logger.Debug("scheduler: initialising task state: %v", err)
	}

	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for running
// tasks to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// ensureIngestTask creates or refreshes the recurring ingest task.
func (s *Scheduler) ensureIngestTask(ctx context.Context) error {
	task, err := s.store.GetTask(ctx, domain.TaskIDIngest)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       domain.TaskIDIngest,
			Name:     "Source Ingestion",
			Interval: s.config.IngestInterval,
			Enabled:  s.config.Enabled,
			NextRun:  time.Now().Add(s.config.IngestInterval),
		}
	} else {
		if task.Interval != s.config.IngestInterval {
			task.Interval = s.config.IngestInterval
			task.NextRun = time.Now().Add(s.config.IngestInterval)
		}
		task.Enabled = s.config.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Debug("scheduler: listing tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, task)
		}
	}
}

// tryAcquire marks a task as in flight. Returns false when a previous
// run of the task has not finished yet.
func (s *Scheduler) tryAcquire(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[taskID] {
		return false
	}
	s.inFlight[taskID] = true
	return true
}

func (s *Scheduler) release(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, taskID)
}

func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	if !s.tryAcquire(task.ID) {
		logger.Debug("scheduler: task %s still running, skipping tick", task.ID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(task.ID)

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: time.Now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDIngest:
			err = s.runIngest(ctx)
		default:
			logger.Debug("scheduler: unknown task ID %s", task.ID)
			return
		}

		result.EndedAt = time.Now()
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Debug("scheduler: saving task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			logger.Debug("scheduler: recording result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(ctx, historyRetention); pruneErr != nil {
			logger.Debug("scheduler: pruning history: %v", pruneErr)
		}
	}()
}

// runIngest re-ingests all schedulable (active, poll-mode) sources.
// Manual and snapshot sources are only ingested on demand.
func (s *Scheduler) runIngest(ctx context.Context) error {
	if s.ingestor == nil || s.sourceStore == nil {
		return nil
	}

	sourceList, err := s.sourceStore.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for i := range sourceList {
		if !sourceList[i].Schedulable() {
			continue
		}
		if err := s.ingestor.Ingest(ctx, sourceList[i].ID); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", sourceList[i].ID, err))
		}
	}
	return errors.Join(errs...)
}
