package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService chunks notes, embeds the chunks when a provider is
// available and stores the result.
type IndexService struct {
	notes      driven.NoteStore
	chunks     driven.ChunkStore
	pipeline   driven.PostProcessorPipeline
	embeddings *Embeddings
	log        *logger.Logger
}

// NewIndexService creates an index service. embeddings may be nil, in
// which case chunks are stored without vectors.
func NewIndexService(
	notes driven.NoteStore,
	chunks driven.ChunkStore,
	pipeline driven.PostProcessorPipeline,
	embeddings *Embeddings,
) *IndexService {
	return &IndexService{
		notes:      notes,
		chunks:     chunks,
		pipeline:   pipeline,
		embeddings: embeddings,
		log:        logger.For("index"),
	}
}

// IndexNote rebuilds one note's chunk set and returns the chunk count.
func (s *IndexService) IndexNote(ctx context.Context, noteID string) (int, error) {
	note, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return 0, fmt.Errorf("get note %s: %w", noteID, err)
	}
	return s.index(ctx, note, s.embeddings.Session())
}

// ReindexAll rebuilds every live note of an owner within one embedding
// session, so a provider outage is detected once.
func (s *IndexService) ReindexAll(ctx context.Context, ownerID string) (domain.BatchResult, error) {
	var result domain.BatchResult

	notes, err := s.notes.ListNotes(ctx, domain.NoteFilter{OwnerID: ownerID})
	if err != nil {
		return result, fmt.Errorf("list notes: %w", err)
	}

	session := s.embeddings.Session()
	for i := range notes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := s.index(ctx, &notes[i], session); err != nil {
			s.log.Warn("reindex %s failed: %v", notes[i].ID, err)
			result.AddFailure(notes[i].ID, err)
			continue
		}
		result.Processed++
	}
	s.log.Info("reindexed %d notes for %s (%d failed)", result.Processed, ownerID, len(result.Failures))
	return result, nil
}

func (s *IndexService) index(ctx context.Context, note *domain.Note, session *EmbeddingSession) (int, error) {
	if note.Deleted {
		if err := s.chunks.ReplaceChunks(ctx, note.ID, nil); err != nil {
			return 0, fmt.Errorf("clear chunks: %w", err)
		}
		return 0, nil
	}

	chunks, err := s.pipeline.Process(ctx, note)
	if err != nil {
		return 0, fmt.Errorf("chunk note %s: %w", note.ID, err)
	}

	if len(chunks) > 0 && session.Available() {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunkEmbeddingText(note.Title, chunks[i])
		}
		vecs, model, err := session.EmbedBatch(ctx, texts)
		switch {
		case err != nil:
			// Best effort: the note stays searchable lexically.
			s.log.Debug("embedding %s skipped: %v", note.ID, err)
		default:
			for i := range chunks {
				chunks[i].Embedding = vecs[i]
				chunks[i].EmbeddingModel = model
			}
		}
	}

	if err := s.chunks.ReplaceChunks(ctx, note.ID, chunks); err != nil {
		return 0, fmt.Errorf("replace chunks for %s: %w", note.ID, err)
	}
	s.log.Debug("indexed %s: %d chunks", note.ID, len(chunks))
	return len(chunks), nil
}

// chunkEmbeddingText prefixes the chunk with its title and heading so
// short passages keep their context.
func chunkEmbeddingText(title string, c domain.Chunk) string {
	label := domain.Citation{Title: title, Heading: c.Heading}.Label()
	if label == "" {
		return c.Content
	}
	return label + "\n\n" + c.Content
}
