package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore is an in-memory implementation of driven.HistoryStore.
type HistoryStore struct {
	mu      sync.RWMutex
	history []domain.SearchHistoryEntry
	saved   map[string]domain.SavedSearch
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{saved: make(map[string]domain.SavedSearch)}
}

// AppendHistory records an executed search.
func (s *HistoryStore) AppendHistory(_ context.Context, entry *domain.SearchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *entry)
	return nil
}

// ListHistory returns an owner's most recent searches, newest first.
func (s *HistoryStore) ListHistory(_ context.Context, ownerID string, limit int) ([]domain.SearchHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.SearchHistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].OwnerID != ownerID {
			continue
		}
		result = append(result, s.history[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// SaveSearch creates or updates a saved search.
func (s *HistoryStore) SaveSearch(_ context.Context, search *domain.SavedSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[search.ID] = *search
	return nil
}

// GetSavedSearch retrieves a saved search by ID.
func (s *HistoryStore) GetSavedSearch(_ context.Context, id string) (*domain.SavedSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ss, ok := s.saved[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ss, nil
}

// ListSavedSearches returns an owner's saved searches by name.
func (s *HistoryStore) ListSavedSearches(_ context.Context, ownerID string) ([]domain.SavedSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.SavedSearch
	for _, ss := range s.saved {
		if ss.OwnerID == ownerID {
			result = append(result, ss)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// DeleteSavedSearch removes a saved search.
func (s *HistoryStore) DeleteSavedSearch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, id)
	return nil
}
