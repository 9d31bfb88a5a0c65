package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// NoteStore persists notes.
type NoteStore interface {
	// SaveNote creates or updates a note.
	SaveNote(ctx context.Context, note *domain.Note) error

	// GetNote retrieves a note by ID, including soft-deleted notes.
	// Returns domain.ErrNotFound if the note does not exist.
	GetNote(ctx context.Context, id string) (*domain.Note, error)

	// ListNotes returns notes matching the filter, most recently updated first.
	ListNotes(ctx context.Context, filter domain.NoteFilter) ([]domain.Note, error)

	// SoftDeleteNote marks a note deleted without removing it.
	SoftDeleteNote(ctx context.Context, id string, at time.Time) error

	// DeleteNote removes a note and its chunks permanently.
	DeleteNote(ctx context.Context, id string) error
}

// ChunkStore persists chunks and their embeddings.
type ChunkStore interface {
	// ReplaceChunks swaps a note's chunk set atomically. Readers observe
	// either the old set or the new one, never a mix.
	ReplaceChunks(ctx context.Context, noteID string, chunks []domain.Chunk) error

	// GetChunks returns a note's chunks ordered by position.
	GetChunks(ctx context.Context, noteID string) ([]domain.Chunk, error)

	// GetChunksForNotes returns chunks for several notes keyed by note ID.
	GetChunksForNotes(ctx context.Context, noteIDs []string) (map[string][]domain.Chunk, error)
}
