package mcp

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

func (m *mockSearchService) RetrieveChunks(context.Context, string, domain.SearchOptions) ([]domain.RankedChunk, error) {
	return nil, m.err
}

func (m *mockSearchService) SaveSearch(context.Context, string, string, string) (*domain.SavedSearch, error) {
	return nil, m.err
}

func (m *mockSearchService) ListSavedSearches(context.Context, string) ([]domain.SavedSearch, error) {
	return nil, m.err
}

func (m *mockSearchService) DeleteSavedSearch(context.Context, string, string) error {
	return m.err
}

func (m *mockSearchService) History(context.Context, string, int) ([]domain.SearchHistoryEntry, error) {
	return nil, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer   *domain.Answer
	err      error
	lastOpts domain.AskOptions
}

func (m *mockAnswerService) Ask(_ context.Context, _ string, opts domain.AskOptions) (*domain.Answer, error) {
	m.lastOpts = opts
	return m.answer, m.err
}

func (m *mockAnswerService) AskStream(context.Context, string, domain.AskOptions) <-chan domain.AnswerEvent {
	ch := make(chan domain.AnswerEvent)
	close(ch)
	return ch
}

// mockDuplicateService is a mock implementation of driving.DuplicateService.
type mockDuplicateService struct {
	matches       []domain.DuplicateMatch
	err           error
	lastThreshold float64
}

func (m *mockDuplicateService) FindDuplicates(_ context.Context, _ string, threshold float64) ([]domain.DuplicateMatch, error) {
	m.lastThreshold = threshold
	return m.matches, m.err
}

func (m *mockDuplicateService) ListReports(context.Context, domain.ReportFilter) ([]domain.DuplicateReport, error) {
	return nil, m.err
}

func (m *mockDuplicateService) Confirm(context.Context, string, string) error { return m.err }

func (m *mockDuplicateService) Dismiss(context.Context, string, string) error { return m.err }

func (m *mockDuplicateService) Merge(context.Context, string, string) (*domain.Note, error) {
	return nil, m.err
}

// mockNoteService is a mock implementation of driving.NoteService.
type mockNoteService struct {
	notes map[string]domain.Note
	err   error
}

func (m *mockNoteService) Create(context.Context, driving.NoteInput) (*domain.Note, error) {
	return nil, m.err
}

func (m *mockNoteService) Update(context.Context, string, driving.NoteInput) (*domain.Note, error) {
	return nil, m.err
}

func (m *mockNoteService) Get(_ context.Context, id string) (*domain.Note, error) {
	if m.err != nil {
		return nil, m.err
	}
	n, ok := m.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (m *mockNoteService) List(context.Context, domain.NoteFilter) ([]domain.Note, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Note, 0, len(m.notes))
	for _, n := range m.notes {
		out = append(out, n)
	}
	return out, nil
}

func (m *mockNoteService) GetDetails(context.Context, string) (*driving.NoteDetails, error) {
	return nil, m.err
}

func (m *mockNoteService) Delete(context.Context, string) error { return m.err }
