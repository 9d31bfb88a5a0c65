package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// JobID is the background job the task enqueued, if any.
	JobID string
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Interval defines how often the task should run.
	Interval time.Duration
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig returns the built-in maintenance schedule.
// Auto-merge is destructive and stays off until enabled in config.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDCleanup: {
				Enabled:  true,
				Interval: 24 * time.Hour,
			},
			TaskIDDuplicateScan: {
				Enabled:  true,
				Interval: 12 * time.Hour,
			},
			TaskIDAutoMerge: {
				Enabled:  false,
				Interval: 24 * time.Hour,
			},
		},
	}
}

// Task IDs for built-in tasks.
const (
	TaskIDCleanup       = "cleanup"
	TaskIDDuplicateScan = "duplicate-scan"
	TaskIDAutoMerge     = "auto-merge"
)

// TaskJobKind returns the job kind a scheduled task enqueues.
func TaskJobKind(taskID string) (JobKind, bool) {
	switch taskID {
	case TaskIDCleanup:
		return JobCleanup, true
	case TaskIDDuplicateScan:
		return JobDetectDuplicates, true
	case TaskIDAutoMerge:
		return JobAutoMerge, true
	default:
		return "", false
	}
}
