package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DuplicateStore persists duplicate reports.
// At most one report exists per unordered note pair.
type DuplicateStore interface {
	// CreateReport stores a report unless one already exists for the pair.
	// Returns false when the pair was already reported.
	CreateReport(ctx context.Context, report *domain.DuplicateReport) (bool, error)

	// GetReport retrieves a report by ID.
	// Returns domain.ErrNotFound if the report does not exist.
	GetReport(ctx context.Context, id string) (*domain.DuplicateReport, error)

	// FindReportByPair returns the report for two notes in either order.
	// Returns domain.ErrNotFound if the pair has no report.
	FindReportByPair(ctx context.Context, noteA, noteB string) (*domain.DuplicateReport, error)

	// ListReports returns reports matching the filter, highest similarity first.
	ListReports(ctx context.Context, filter domain.ReportFilter) ([]domain.DuplicateReport, error)

	// UpdateReportStatus sets a report's status and resolution time.
	UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus, resolvedAt time.Time) error

	// DeleteReportsBefore removes reports with the given status created before the cutoff.
	DeleteReportsBefore(ctx context.Context, status domain.ReportStatus, before time.Time) (int, error)
}
