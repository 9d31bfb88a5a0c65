package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Normaliser converts a file's bytes into a note.
type Normaliser interface {
	// Format names the file format handled, e.g. "markdown".
	Format() string

	// Extensions returns the lower-case file extensions handled, with the dot.
	Extensions() []string

	// Normalise extracts a note from file content. Path is used for the
	// fallback title.
	Normalise(path string, data []byte) (*domain.ImportedNote, error)
}

// NormaliserRegistry selects a normaliser for a file path.
type NormaliserRegistry interface {
	// For returns the normaliser for path, or false when none handles it.
	For(path string) (Normaliser, bool)
}

// FileSource enumerates and watches files under a root directory.
type FileSource interface {
	// Root returns the directory the source reads.
	Root() string

	// Walk calls fn for every visible regular file under the root.
	Walk(ctx context.Context, fn func(path string) error) error

	// Watch reports file changes until ctx is cancelled. The channel is
	// closed when watching stops.
	Watch(ctx context.Context) (<-chan domain.FileChange, error)
}

// FileSourceFactory opens a file source rooted at a path.
type FileSourceFactory func(root string) (FileSource, error)
