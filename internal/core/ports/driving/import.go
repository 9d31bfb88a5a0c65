package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// ImportOptions controls a file import.
type ImportOptions struct {
	OwnerID string

	// Tags are added to every imported note.
	Tags []string

	// DryRun reports what would change without writing notes.
	DryRun bool
}

// ImportService turns files on disk into notes.
type ImportService interface {
	// Import reads a file or every supported file under a directory.
	// Notes are matched to files by title: a matching note is updated
	// when its content changed and left alone otherwise.
	Import(ctx context.Context, path string, opts ImportOptions) ([]domain.ImportResult, error)

	// Watch imports a directory and then keeps notes in step with it
	// until ctx is cancelled, calling report for every change handled.
	Watch(ctx context.Context, dir string, opts ImportOptions, report func(domain.ImportResult)) error
}
