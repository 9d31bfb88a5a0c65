package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DuplicateService finds and resolves near-duplicate notes.
type DuplicateService interface {
	// FindDuplicates compares a note against its owner's other notes and
	// returns matches at or above threshold, best first. Nothing is persisted.
	FindDuplicates(ctx context.Context, noteID string, threshold float64) ([]domain.DuplicateMatch, error)

	// ListReports returns stored duplicate reports.
	ListReports(ctx context.Context, filter domain.ReportFilter) ([]domain.DuplicateReport, error)

	// Confirm marks a pending report as a confirmed duplicate.
	Confirm(ctx context.Context, ownerID, reportID string) error

	// Dismiss marks a report as not a duplicate.
	Dismiss(ctx context.Context, ownerID, reportID string) error

	// Merge folds the duplicate note into the original and marks the report merged.
	Merge(ctx context.Context, ownerID, reportID string) (*domain.Note, error)
}
