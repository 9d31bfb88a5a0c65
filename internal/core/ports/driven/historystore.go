package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// HistoryStore persists the search history log and saved searches.
type HistoryStore interface {
	// AppendHistory records an executed search.
	AppendHistory(ctx context.Context, entry *domain.SearchHistoryEntry) error

	// ListHistory returns an owner's most recent searches, newest first.
	ListHistory(ctx context.Context, ownerID string, limit int) ([]domain.SearchHistoryEntry, error)

	// SaveSearch creates or updates a saved search.
	SaveSearch(ctx context.Context, search *domain.SavedSearch) error

	// GetSavedSearch retrieves a saved search by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetSavedSearch(ctx context.Context, id string) (*domain.SavedSearch, error)

	// ListSavedSearches returns an owner's saved searches by name.
	ListSavedSearches(ctx context.Context, ownerID string) ([]domain.SavedSearch, error)

	// DeleteSavedSearch removes a saved search.
	DeleteSavedSearch(ctx context.Context, id string) error
}
