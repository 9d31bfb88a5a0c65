package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// JobOrchestrator runs background jobs from a durable queue.
type JobOrchestrator interface {
	// Enqueue stores a job and returns its ID without waiting for it to run.
	// Zero option fields take the kind's defaults.
	Enqueue(ctx context.Context, kind domain.JobKind, payload any, opts domain.JobOptions) (string, error)

	// Start runs the worker pool until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop signals workers to finish their current job and exit.
	Stop() error

	// Drain processes due jobs synchronously until none remain.
	Drain(ctx context.Context) (int, error)

	// Job retrieves a job by ID.
	Job(ctx context.Context, id string) (*domain.Job, error)

	// ListJobs returns jobs matching the filter.
	ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error)

	// OnProgress registers a hook called with a job and its percent complete.
	OnProgress(fn func(job domain.Job, percent int))

	// OnCompleted registers a hook called when a job succeeds.
	OnCompleted(fn func(job domain.Job))

	// OnFailed registers a hook called when an attempt fails. willRetry
	// reports whether the job was rescheduled.
	OnFailed(fn func(job domain.Job, err error, willRetry bool))
}
