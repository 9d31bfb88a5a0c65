package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure DuplicateStore implements the interface.
var _ driven.DuplicateStore = (*DuplicateStore)(nil)

// DuplicateStore is an in-memory implementation of driven.DuplicateStore.
type DuplicateStore struct {
	mu      sync.RWMutex
	reports map[string]domain.DuplicateReport
	pairs   map[string]string // pair key -> report ID
}

// NewDuplicateStore creates a new in-memory duplicate store.
func NewDuplicateStore() *DuplicateStore {
	return &DuplicateStore{
		reports: make(map[string]domain.DuplicateReport),
		pairs:   make(map[string]string),
	}
}

// CreateReport stores a report unless its pair already has one.
func (s *DuplicateStore) CreateReport(_ context.Context, report *domain.DuplicateReport) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := report.PairKey()
	if _, exists := s.pairs[key]; exists {
		return false, nil
	}
	s.reports[report.ID] = *report
	s.pairs[key] = report.ID
	return true, nil
}

// GetReport retrieves a report by ID.
func (s *DuplicateStore) GetReport(_ context.Context, id string) (*domain.DuplicateReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

// FindReportByPair returns the report for two notes in either order.
func (s *DuplicateStore) FindReportByPair(_ context.Context, noteA, noteB string) (*domain.DuplicateReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairs[domain.PairKey(noteA, noteB)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r := s.reports[id]
	return &r, nil
}

// ListReports returns reports matching the filter, highest similarity first.
func (s *DuplicateStore) ListReports(
	_ context.Context, filter domain.ReportFilter,
) ([]domain.DuplicateReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.DuplicateReport
	for _, r := range s.reports {
		if filter.OwnerID != "" && r.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if r.Similarity < filter.MinSimilarity {
			continue
		}
		if filter.NoteID != "" && r.OriginalNoteID != filter.NoteID && r.DuplicateNoteID != filter.NoteID {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Similarity != result[j].Similarity {
			return result[i].Similarity > result[j].Similarity
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateReportStatus sets a report's status and resolution time.
func (s *DuplicateStore) UpdateReportStatus(
	_ context.Context, id string, status domain.ReportStatus, resolvedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	r.ResolvedAt = resolvedAt
	s.reports[id] = r
	return nil
}

// DeleteReportsBefore removes reports with the given status created before the cutoff.
func (s *DuplicateStore) DeleteReportsBefore(
	_ context.Context, status domain.ReportStatus, before time.Time,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.reports {
		if r.Status == status && r.CreatedAt.Before(before) {
			delete(s.reports, id)
			delete(s.pairs, r.PairKey())
			n++
		}
	}
	return n, nil
}
