package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// NoteInput carries user-editable note fields.
type NoteInput struct {
	OwnerID string
	Title   string
	Content string
	Tags    []string
}

// NoteService manages notes and keeps their index current.
type NoteService interface {
	// Create stores a new note, indexes it and queues a duplicate check.
	Create(ctx context.Context, input NoteInput) (*domain.Note, error)

	// Update replaces a note's editable fields and reindexes it.
	Update(ctx context.Context, noteID string, input NoteInput) (*domain.Note, error)

	// Get retrieves a note by ID.
	Get(ctx context.Context, noteID string) (*domain.Note, error)

	// List returns notes matching the filter.
	List(ctx context.Context, filter domain.NoteFilter) ([]domain.Note, error)

	// GetDetails returns a note with index metadata for display.
	GetDetails(ctx context.Context, noteID string) (*NoteDetails, error)

	// Delete removes a note, its chunks and its ranking records.
	Delete(ctx context.Context, noteID string) error
}

// NoteDetails provides a display view of a note and its index state.
type NoteDetails struct {
	ID             string
	Title          string
	Tags           []string
	WordCount      int
	ChunkCount     int
	EmbeddedChunks int
	EmbeddingModel string
	Headings       []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IndexService turns notes into stored chunks.
type IndexService interface {
	// IndexNote chunks a note, embeds the chunks when possible and
	// replaces the stored chunk set atomically.
	IndexNote(ctx context.Context, noteID string) (int, error)

	// ReindexAll indexes every live note of an owner. Per-note failures
	// are collected rather than aborting the run.
	ReindexAll(ctx context.Context, ownerID string) (domain.BatchResult, error)
}
