package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure RankingStore implements the interface.
var _ driven.RankingStore = (*RankingStore)(nil)

type rankingKey struct {
	noteID string
	query  string
}

// RankingStore is an in-memory implementation of driven.RankingStore.
type RankingStore struct {
	mu      sync.RWMutex
	records map[rankingKey]domain.RankingRecord
}

// NewRankingStore creates a new in-memory ranking store.
func NewRankingStore() *RankingStore {
	return &RankingStore{records: make(map[rankingKey]domain.RankingRecord)}
}

// UpsertRanking creates or replaces the record for (NoteID, Query).
func (s *RankingStore) UpsertRanking(_ context.Context, rec *domain.RankingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *rec
	r.Query = domain.NormalizeQuery(r.Query)
	s.records[rankingKey{r.NoteID, r.Query}] = r
	return nil
}

// GetRanking returns the record for a note and query.
func (s *RankingStore) GetRanking(_ context.Context, noteID, query string) (*domain.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[rankingKey{noteID, domain.NormalizeQuery(query)}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

// ListRankingsForNotes returns records keyed by note ID, newest first.
func (s *RankingStore) ListRankingsForNotes(
	_ context.Context, noteIDs []string,
) (map[string][]domain.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(noteIDs))
	for _, id := range noteIDs {
		wanted[id] = true
	}
	result := make(map[string][]domain.RankingRecord)
	for k, r := range s.records {
		if wanted[k.noteID] {
			result[k.noteID] = append(result[k.noteID], r)
		}
	}
	for _, recs := range result {
		sort.Slice(recs, func(i, j int) bool {
			if !recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
				return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
			}
			return recs[i].Query < recs[j].Query
		})
	}
	return result, nil
}

// DeleteRankingsForNote removes every record of a note.
func (s *RankingStore) DeleteRankingsForNote(_ context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.records {
		if k.noteID == noteID {
			delete(s.records, k)
		}
	}
	return nil
}

// DeleteRankingsBefore removes records last updated before the cutoff.
func (s *RankingStore) DeleteRankingsBefore(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, r := range s.records {
		if r.UpdatedAt.Before(before) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *RankingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
