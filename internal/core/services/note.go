package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure NoteService implements the interface.
var _ driving.NoteService = (*NoteService)(nil)

// jobEnqueuer is the part of the job orchestrator services use to hand
// off background work.
type jobEnqueuer interface {
	Enqueue(ctx context.Context, kind domain.JobKind, payload any, opts domain.JobOptions) (string, error)
}

// noteIndexer rebuilds a note's chunks.
type noteIndexer interface {
	IndexNote(ctx context.Context, noteID string) (int, error)
}

// NoteService manages notes and keeps their chunks current.
type NoteService struct {
	notes    driven.NoteStore
	chunks   driven.ChunkStore
	rankings driven.RankingStore
	indexer  noteIndexer
	jobs     jobEnqueuer
	ownerID  string
	now      func() time.Time
}

// NewNoteService creates a note service.
func NewNoteService(
	notes driven.NoteStore,
	chunks driven.ChunkStore,
	rankings driven.RankingStore,
	indexer noteIndexer,
) *NoteService {
	return &NoteService{
		notes:    notes,
		chunks:   chunks,
		rankings: rankings,
		indexer:  indexer,
		ownerID:  domain.DefaultOwnerID,
		now:      time.Now,
	}
}

// SetJobEnqueuer enables duplicate checks after writes.
func (s *NoteService) SetJobEnqueuer(jobs jobEnqueuer) {
	s.jobs = jobs
}

// SetDefaultOwner sets the owner used when input omits one.
func (s *NoteService) SetDefaultOwner(ownerID string) {
	if ownerID != "" {
		s.ownerID = ownerID
	}
}

// Create stores and indexes a new note.
func (s *NoteService) Create(ctx context.Context, input driving.NoteInput) (*domain.Note, error) {
	if err := validateNoteInput(input); err != nil {
		return nil, err
	}
	owner := input.OwnerID
	if owner == "" {
		owner = s.ownerID
	}

	now := s.now().UTC()
	note := &domain.Note{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Title:     strings.TrimSpace(input.Title),
		Content:   input.Content,
		Tags:      domain.NormalizeTags(input.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.notes.SaveNote(ctx, note); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	if _, err := s.indexer.IndexNote(ctx, note.ID); err != nil {
		return note, fmt.Errorf("index note: %w", err)
	}
	s.queueDuplicateCheck(ctx, note)
	return note, nil
}

// Update replaces a note's editable fields and reindexes it.
func (s *NoteService) Update(ctx context.Context, noteID string, input driving.NoteInput) (*domain.Note, error) {
	if err := validateNoteInput(input); err != nil {
		return nil, err
	}
	note, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.Deleted {
		return nil, domain.ErrNoteDeleted
	}

	note.Title = strings.TrimSpace(input.Title)
	note.Content = input.Content
	note.Tags = domain.NormalizeTags(input.Tags)
	note.UpdatedAt = s.now().UTC()

	if err := s.notes.SaveNote(ctx, note); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	if _, err := s.indexer.IndexNote(ctx, note.ID); err != nil {
		return note, fmt.Errorf("index note: %w", err)
	}
	s.queueDuplicateCheck(ctx, note)
	return note, nil
}

// Get retrieves a note by ID.
func (s *NoteService) Get(ctx context.Context, noteID string) (*domain.Note, error) {
	return s.notes.GetNote(ctx, noteID)
}

// List returns notes matching the filter.
func (s *NoteService) List(ctx context.Context, filter domain.NoteFilter) ([]domain.Note, error) {
	if filter.OwnerID == "" {
		filter.OwnerID = s.ownerID
	}
	return s.notes.ListNotes(ctx, filter)
}

// GetDetails returns a note with its index state.
func (s *NoteService) GetDetails(ctx context.Context, noteID string) (*driving.NoteDetails, error) {
	note, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunks.GetChunks(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}

	details := &driving.NoteDetails{
		ID:         note.ID,
		Title:      note.Title,
		Tags:       note.Tags,
		WordCount:  note.WordCount(),
		ChunkCount: len(chunks),
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
	}
	seen := make(map[string]bool)
	for _, c := range chunks {
		if c.HasEmbedding() {
			details.EmbeddedChunks++
			details.EmbeddingModel = c.EmbeddingModel
		}
		if c.Heading != "" && !seen[c.Heading] {
			seen[c.Heading] = true
			details.Headings = append(details.Headings, c.Heading)
		}
	}
	return details, nil
}

// Delete removes a note, its chunks and its ranking records.
func (s *NoteService) Delete(ctx context.Context, noteID string) error {
	if _, err := s.notes.GetNote(ctx, noteID); err != nil {
		return err
	}
	if err := s.notes.DeleteNote(ctx, noteID); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if s.rankings != nil {
		if err := s.rankings.DeleteRankingsForNote(ctx, noteID); err != nil {
			return fmt.Errorf("delete rankings: %w", err)
		}
	}
	return nil
}

func (s *NoteService) queueDuplicateCheck(ctx context.Context, note *domain.Note) {
	if s.jobs == nil {
		return
	}
	payload := domain.DetectDuplicatesPayload{OwnerID: note.OwnerID, NoteID: note.ID}
	if _, err := s.jobs.Enqueue(ctx, domain.JobDetectDuplicates, payload, domain.JobOptions{}); err != nil {
		logger.Warn("Failed to queue duplicate check for %s: %v", note.ID, err)
	}
}

func validateNoteInput(input driving.NoteInput) error {
	if strings.TrimSpace(input.Title) == "" && strings.TrimSpace(input.Content) == "" {
		return fmt.Errorf("%w: note needs a title or content", domain.ErrInvalidInput)
	}
	return nil
}
