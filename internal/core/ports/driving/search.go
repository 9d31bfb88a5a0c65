package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search ranks an owner's notes against a query. Ranking feedback is
	// persisted asynchronously; the call never waits on it.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// RetrieveChunks ranks the chunks of the best-matching notes for
	// context assembly, most relevant first.
	RetrieveChunks(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RankedChunk, error)

	// SaveSearch stores a named query.
	SaveSearch(ctx context.Context, ownerID, name, query string) (*domain.SavedSearch, error)

	// ListSavedSearches returns an owner's saved searches.
	ListSavedSearches(ctx context.Context, ownerID string) ([]domain.SavedSearch, error)

	// DeleteSavedSearch removes a saved search owned by ownerID.
	DeleteSavedSearch(ctx context.Context, ownerID, id string) error

	// History returns an owner's recent searches, newest first.
	History(ctx context.Context, ownerID string, limit int) ([]domain.SearchHistoryEntry, error)
}

// AnswerService answers questions grounded in the owner's notes.
type AnswerService interface {
	// Ask retrieves context and asks the completion provider. Provider
	// failures degrade to canned responses rather than errors.
	Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error)

	// AskStream is the incremental form of Ask. The channel is closed after
	// the final event or when ctx is cancelled.
	AskStream(ctx context.Context, question string, opts domain.AskOptions) <-chan domain.AnswerEvent
}
