package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Scheduler runs recurring maintenance tasks such as cleanup and duplicate scans.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error

	// RunTask queues a task's job immediately, regardless of schedule.
	RunTask(ctx context.Context, taskID string) (*domain.TaskResult, error)
}
