package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// JobStore is the durable backing of the background job queue.
// Delivery is at-least-once: a job claimed by a crashed worker is
// requeued on the next start.
type JobStore interface {
	// CreateJob enqueues a new job.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a job by ID.
	// Returns domain.ErrNotFound if the job does not exist.
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// ClaimNext marks the next due pending job as running and increments
	// its attempt count. Lower priority values are claimed first, then
	// earlier RunAt. Returns nil and no error when nothing is due.
	ClaimNext(ctx context.Context, now time.Time) (*domain.Job, error)

	// UpdateJob persists a job's state.
	UpdateJob(ctx context.Context, job *domain.Job) error

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error)

	// RequeueRunning moves running jobs back to pending.
	RequeueRunning(ctx context.Context) (int, error)

	// DeleteFinishedBefore removes completed or failed jobs finished before the cutoff.
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int, error)
}
