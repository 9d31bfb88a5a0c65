package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure NoteStore implements the interfaces.
var (
	_ driven.NoteStore  = (*NoteStore)(nil)
	_ driven.ChunkStore = (*NoteStore)(nil)
)

// NoteStore is an in-memory implementation of driven.NoteStore and driven.ChunkStore.
type NoteStore struct {
	mu     sync.RWMutex
	notes  map[string]domain.Note
	chunks map[string][]domain.Chunk
}

// NewNoteStore creates a new in-memory note store.
func NewNoteStore() *NoteStore {
	return &NoteStore{
		notes:  make(map[string]domain.Note),
		chunks: make(map[string][]domain.Chunk),
	}
}

// SaveNote stores or updates a note.
func (s *NoteStore) SaveNote(_ context.Context, note *domain.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := *note
	n.Tags = domain.NormalizeTags(note.Tags)
	s.notes[n.ID] = n
	return nil
}

// GetNote retrieves a note by ID.
func (s *NoteStore) GetNote(_ context.Context, id string) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	n.Tags = append([]string(nil), n.Tags...)
	return &n, nil
}

// ListNotes returns notes matching the filter, most recently updated first.
func (s *NoteStore) ListNotes(_ context.Context, filter domain.NoteFilter) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if filter.Matches(n) {
			n.Tags = append([]string(nil), n.Tags...)
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// SoftDeleteNote marks a note deleted.
func (s *NoteStore) SoftDeleteNote(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.Deleted = true
	n.DeletedAt = at
	s.notes[id] = n
	return nil
}

// DeleteNote removes a note and its chunks.
func (s *NoteStore) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, id)
	delete(s.chunks, id)
	return nil
}

// ReplaceChunks swaps a note's chunk set under the write lock.
func (s *NoteStore) ReplaceChunks(_ context.Context, noteID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(chunks) == 0 {
		delete(s.chunks, noteID)
		return nil
	}
	cp := make([]domain.Chunk, len(chunks))
	copy(cp, chunks)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Position < cp[j].Position })
	s.chunks[noteID] = cp
	return nil
}

// GetChunks returns a note's chunks ordered by position.
func (s *NoteStore) GetChunks(_ context.Context, noteID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks[noteID]...), nil
}

// GetChunksForNotes returns chunks for several notes keyed by note ID.
func (s *NoteStore) GetChunksForNotes(_ context.Context, noteIDs []string) (map[string][]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string][]domain.Chunk, len(noteIDs))
	for _, id := range noteIDs {
		if c, ok := s.chunks[id]; ok {
			result[id] = append([]domain.Chunk(nil), c...)
		}
	}
	return result, nil
}
