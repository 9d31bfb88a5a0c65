package domain

import (
	"encoding/json"
	"time"
)

// JobKind identifies a background job handler.
type JobKind string

// Built-in job kinds.
const (
	JobUpdateSearchRankings JobKind = "update-search-rankings"
	JobDetectDuplicates     JobKind = "detect-duplicates"
	JobAutoMerge            JobKind = "auto-merge-high-confidence"
	JobCleanup              JobKind = "cleanup"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

// Job statuses.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal returns true for completed or failed jobs.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is a durable unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Kind        JobKind         `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Backoff     time.Duration   `json:"backoff"`
	Priority    int             `json:"priority"`
	RunAt       time.Time       `json:"run_at"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
}

// MaxRetryDelay caps the exponential backoff between attempts.
const MaxRetryDelay = time.Hour

// RetryDelay returns the delay before the next attempt, given the number
// of attempts already made: backoff × 2^(attempts−1), capped at MaxRetryDelay.
func (j Job) RetryDelay() time.Duration {
	if j.Backoff <= 0 || j.Attempts <= 0 {
		return 0
	}
	d := j.Backoff
	for i := 1; i < j.Attempts; i++ {
		d *= 2
		if d >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	if d > MaxRetryDelay {
		return MaxRetryDelay
	}
	return d
}

// CanRetry reports whether another attempt is allowed.
func (j Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// JobOptions controls how a job is queued.
type JobOptions struct {
	// MaxAttempts is the attempt cap (minimum 1).
	MaxAttempts int

	// Backoff is the base retry delay.
	Backoff time.Duration

	// Priority orders due jobs; lower values run first.
	Priority int

	// Delay postpones the first attempt.
	Delay time.Duration
}

// DefaultJobOptions returns the queueing defaults for a job kind.
// Batch jobs get one attempt since per-item progress is already captured.
func DefaultJobOptions(kind JobKind) JobOptions {
	switch kind {
	case JobDetectDuplicates:
		return JobOptions{MaxAttempts: 3, Backoff: 5 * time.Second, Priority: 5}
	case JobCleanup:
		return JobOptions{MaxAttempts: 3, Backoff: 30 * time.Second, Priority: 10}
	case JobUpdateSearchRankings:
		return JobOptions{MaxAttempts: 1, Priority: 1}
	case JobAutoMerge:
		return JobOptions{MaxAttempts: 1, Priority: 8}
	default:
		return JobOptions{MaxAttempts: 1}
	}
}

// RankedNoteScore is one result row fed to the ranking job.
type RankedNoteScore struct {
	NoteID  string                  `json:"note_id"`
	Score   float64                 `json:"score"`
	Factors map[ScoreFactor]float64 `json:"factors,omitempty"`
}

// UpdateRankingsPayload is the payload of update-search-rankings.
type UpdateRankingsPayload struct {
	OwnerID string            `json:"owner_id"`
	Query   string            `json:"query"`
	Results []RankedNoteScore `json:"results"`
}

// DetectDuplicatesPayload is the payload of detect-duplicates.
// An empty NoteID requests a corpus-wide scan.
type DetectDuplicatesPayload struct {
	OwnerID   string  `json:"owner_id"`
	NoteID    string  `json:"note_id,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// AutoMergePayload is the payload of auto-merge-high-confidence.
type AutoMergePayload struct {
	OwnerID   string  `json:"owner_id"`
	Threshold float64 `json:"threshold,omitempty"`
	BatchSize int     `json:"batch_size,omitempty"`
}

// CleanupPayload is the payload of cleanup.
type CleanupPayload struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

// JobResult is the stored outcome of a finished job.
type JobResult struct {
	BatchResult
	Created int `json:"created,omitempty"`
	Deleted int `json:"deleted,omitempty"`
}

// JobFilter narrows a job listing.
type JobFilter struct {
	Kind   JobKind
	Status JobStatus
	Limit  int
}
