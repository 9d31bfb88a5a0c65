package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyKeep is the number of task results retained per task.
const historyKeep = 100

// taskNames are the display names of the built-in tasks.
var taskNames = map[string]string{
	domain.TaskIDCleanup:       "Cleanup",
	domain.TaskIDDuplicateScan: "Duplicate Scan",
	domain.TaskIDAutoMerge:     "Auto Merge",
}

// Scheduler enqueues maintenance jobs on fixed intervals.
// Task state survives restarts through the SchedulerStore.
type Scheduler struct {
	config  domain.SchedulerConfig
	store   driven.SchedulerStore
	jobs    jobEnqueuer
	ownerID string
	tick    time.Duration
	now     func() time.Time
	log     *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	jobs jobEnqueuer,
	ownerID string,
) *Scheduler {
	if ownerID == "" {
		ownerID = domain.DefaultOwnerID
	}
	return &Scheduler{
		config:  config,
		store:   store,
		jobs:    jobs,
		ownerID: ownerID,
		tick:    time.Minute,
		now:     time.Now,
		log:     logger.For("scheduler"),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		s.log.Info("scheduler disabled")
	} else if err := s.initialiseTasks(ctx); err != nil {
		s.log.Warn("failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
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

// initialiseTasks syncs the configured tasks into the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, id := range []string{domain.TaskIDCleanup, domain.TaskIDDuplicateScan, domain.TaskIDAutoMerge} {
		cfg := s.config.GetTaskConfig(id)
		if cfg.Interval <= 0 {
			continue
		}
		if err := s.ensureTask(ctx, id, taskNames[id], cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store. Disabled tasks are
// kept so their history stays visible.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  now.Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	if s.config.Enabled {
		s.checkAndRunDueTasks(ctx)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if s.config.Enabled {
				s.checkAndRunDueTasks(ctx)
			}
		}
	}
}

// checkAndRunDueTasks enqueues the jobs of tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		s.log.Warn("failed to list tasks: %v", err)
		return
	}

	now := s.now()
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

// RunTask enqueues a task's job immediately, regardless of schedule.
func (s *Scheduler) RunTask(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		cfg := s.config.GetTaskConfig(taskID)
		task = &domain.ScheduledTask{ID: taskID, Name: taskNames[taskID], Interval: cfg.Interval, Enabled: cfg.Enabled}
	}
	return s.execute(ctx, task), nil
}

// runTask executes a single task in the background.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, task)
	}()
}

// execute enqueues the task's job and records the outcome.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) *domain.TaskResult {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	jobID, err := s.enqueueFor(ctx, task.ID)
	result.JobID = jobID
	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
		s.log.Warn("task %s failed: %v", task.ID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		s.log.Info("task %s queued job %s", task.ID, jobID)
	}

	task.LastRun = result.StartedAt
	if task.Interval > 0 {
		task.NextRun = result.EndedAt.Add(task.Interval)
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		s.log.Warn("failed to save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		s.log.Warn("failed to record result for %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyKeep); err != nil {
		s.log.Warn("failed to prune history: %v", err)
	}
	return result
}

// enqueueFor queues the job behind a task.
func (s *Scheduler) enqueueFor(ctx context.Context, taskID string) (string, error) {
	kind, ok := domain.TaskJobKind(taskID)
	if !ok {
		return "", domain.ErrUnknownJobKind
	}
	if s.jobs == nil {
		return "", nil
	}

	var payload any
	switch kind {
	case domain.JobDetectDuplicates:
		payload = domain.DetectDuplicatesPayload{OwnerID: s.ownerID}
	case domain.JobAutoMerge:
		payload = domain.AutoMergePayload{OwnerID: s.ownerID}
	default:
		payload = domain.CleanupPayload{}
	}
	return s.jobs.Enqueue(ctx, kind, payload, domain.JobOptions{})
}
