package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// MaintenanceJobs implements the built-in job handlers.
type MaintenanceJobs struct {
	rankings   driven.RankingStore
	reports    driven.DuplicateStore
	jobs       driven.JobStore
	duplicates *DuplicateService
	settings   domain.AppSettings
	now        func() time.Time
	log        *logger.Logger
}

// NewMaintenanceJobs creates the built-in handlers.
func NewMaintenanceJobs(
	rankings driven.RankingStore,
	reports driven.DuplicateStore,
	jobs driven.JobStore,
	duplicates *DuplicateService,
	settings domain.AppSettings,
) *MaintenanceJobs {
	return &MaintenanceJobs{
		rankings:   rankings,
		reports:    reports,
		jobs:       jobs,
		duplicates: duplicates,
		settings:   settings,
		now:        time.Now,
		log:        logger.For("jobs"),
	}
}

// Register installs every built-in handler on the orchestrator.
func (m *MaintenanceJobs) Register(o *JobOrchestrator) {
	o.Register(domain.JobUpdateSearchRankings, m.UpdateRankings)
	o.Register(domain.JobDetectDuplicates, m.DetectDuplicates)
	o.Register(domain.JobAutoMerge, m.AutoMerge)
	o.Register(domain.JobCleanup, m.Cleanup)
}

func decodePayload(job *domain.Job, v any) error {
	if len(job.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return fmt.Errorf("%w: decode %s payload: %w", domain.ErrInvalidInput, job.Kind, err)
	}
	return nil
}

// UpdateRankings upserts one ranking record per result. Per-note
// failures are collected in the result; the job still succeeds.
func (m *MaintenanceJobs) UpdateRankings(ctx context.Context, job *domain.Job, report func(int)) (any, error) {
	var p domain.UpdateRankingsPayload
	if err := decodePayload(job, &p); err != nil {
		return nil, err
	}
	query := domain.NormalizeQuery(p.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: ranking update without query", domain.ErrInvalidInput)
	}

	var result domain.JobResult
	now := m.now().UTC()
	for i, r := range p.Results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := m.rankings.UpsertRanking(ctx, &domain.RankingRecord{
			NoteID:    r.NoteID,
			Query:     query,
			Score:     r.Score,
			Factors:   r.Factors,
			UpdatedAt: now,
		})
		if err != nil {
			result.AddFailure(r.NoteID, err)
		} else {
			result.Processed++
		}
		report((i + 1) * 100 / len(p.Results))
	}
	if len(result.Failures) > 0 {
		m.log.Warn("ranking update for %q: %v", query, &domain.PartialBatchError{Result: result.BatchResult})
	}
	return result, nil
}

// DetectDuplicates checks one note, or the owner's whole corpus when the
// payload has no note ID, and stores reports for strong matches.
func (m *MaintenanceJobs) DetectDuplicates(ctx context.Context, job *domain.Job, report func(int)) (any, error) {
	var p domain.DetectDuplicatesPayload
	if err := decodePayload(job, &p); err != nil {
		return nil, err
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = m.settings.Duplicates.AutoReportThreshold
	}
	owner := p.OwnerID
	if owner == "" {
		owner = m.settings.OwnerID
	}

	var result domain.JobResult
	if p.NoteID != "" {
		created, err := m.duplicates.ReportForNote(ctx, p.NoteID, threshold)
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoteDeleted):
			// The note is gone; nothing to compare.
			return result, nil
		case err != nil:
			return nil, err
		}
		result.Processed = 1
		result.Created = created
		return result, nil
	}

	created, err := m.duplicates.ReportCorpus(ctx, owner, threshold, func(done, total int) {
		if total > 0 {
			report(done * 100 / total)
		}
	})
	if err != nil {
		return nil, err
	}
	result.Created = created
	result.Processed = 1
	m.log.Info("corpus scan for %s created %d reports", owner, created)
	return result, nil
}

// AutoMerge merges pending high-confidence reports one at a time.
// Per-report failures are collected in the result.
func (m *MaintenanceJobs) AutoMerge(ctx context.Context, job *domain.Job, report func(int)) (any, error) {
	var p domain.AutoMergePayload
	if err := decodePayload(job, &p); err != nil {
		return nil, err
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = m.settings.Duplicates.AutoMergeThreshold
	}
	batch := p.BatchSize
	if batch <= 0 {
		batch = m.settings.Duplicates.AutoMergeBatch
	}

	reports, err := m.reports.ListReports(ctx, domain.ReportFilter{
		OwnerID:       p.OwnerID,
		Status:        domain.ReportPending,
		MinSimilarity: threshold,
		Limit:         batch,
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var result domain.JobResult
	for i, r := range reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := m.duplicates.Merge(ctx, r.OwnerID, r.ID); err != nil {
			result.AddFailure(r.ID, err)
		} else {
			result.Processed++
		}
		report((i + 1) * 100 / len(reports))
	}
	return result, nil
}

// Cleanup deletes dismissed reports, stale ranking records and finished
// jobs older than the retention period.
func (m *MaintenanceJobs) Cleanup(ctx context.Context, job *domain.Job, report func(int)) (any, error) {
	var p domain.CleanupPayload
	if err := decodePayload(job, &p); err != nil {
		return nil, err
	}
	days := p.RetentionDays
	if days <= 0 {
		days = m.settings.Jobs.RetentionDays
	}
	cutoff := m.now().UTC().AddDate(0, 0, -days)

	var result domain.JobResult
	n, err := m.reports.DeleteReportsBefore(ctx, domain.ReportDismissed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete dismissed reports: %w", err)
	}
	result.Deleted += n
	report(33)

	n, err = m.rankings.DeleteRankingsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete rankings: %w", err)
	}
	result.Deleted += n
	report(66)

	n, err = m.jobs.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete finished jobs: %w", err)
	}
	result.Deleted += n

	m.log.Info("cleanup removed %d records older than %d days", result.Deleted, days)
	return result, nil
}
