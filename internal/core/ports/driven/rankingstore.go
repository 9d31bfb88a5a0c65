package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// RankingStore persists ranking feedback records.
// Records are unique per (note, normalized query).
type RankingStore interface {
	// UpsertRanking creates or replaces the record for (NoteID, Query).
	UpsertRanking(ctx context.Context, rec *domain.RankingRecord) error

	// GetRanking returns the record for a note and normalized query.
	// Returns domain.ErrNotFound if none exists.
	GetRanking(ctx context.Context, noteID, query string) (*domain.RankingRecord, error)

	// ListRankingsForNotes returns records keyed by note ID,
	// most recently updated first.
	ListRankingsForNotes(ctx context.Context, noteIDs []string) (map[string][]domain.RankingRecord, error)

	// DeleteRankingsForNote removes every record of a note.
	DeleteRankingsForNote(ctx context.Context, noteID string) error

	// DeleteRankingsBefore removes records last updated before the cutoff.
	DeleteRankingsBefore(ctx context.Context, before time.Time) (int, error)
}
