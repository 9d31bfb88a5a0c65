package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// executeCommand runs rootCmd with args and returns everything written to
// stdout and stderr. Flags are reset first since they bind package variables.
func executeCommand(args ...string) (string, error) {
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type testServices struct {
	notes      *mockNoteService
	index      *mockIndexService
	search     *mockSearchService
	answer     *mockAnswerService
	duplicates *mockDuplicateService
	jobs       *mockJobOrchestrator
	scheduler  *mockScheduler
	settings   *mockSettingsService
	imports    *mockImportService
}

// setupTestServices installs fresh mocks for the duration of the test.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	ts := &testServices{
		notes:      newMockNoteService(),
		index:      &mockIndexService{},
		search:     &mockSearchService{},
		answer:     &mockAnswerService{},
		duplicates: &mockDuplicateService{},
		jobs:       &mockJobOrchestrator{stopCh: make(chan struct{})},
		scheduler:  &mockScheduler{stopCh: make(chan struct{})},
		settings:   newMockSettingsService(),
		imports:    &mockImportService{},
	}
	SetServices(&Services{
		Notes:      ts.notes,
		Index:      ts.index,
		Search:     ts.search,
		Answer:     ts.answer,
		Duplicates: ts.duplicates,
		Jobs:       ts.jobs,
		Scheduler:  ts.scheduler,
		Settings:   ts.settings,
		Import:     ts.imports,
	})
	t.Cleanup(func() { SetServices(&Services{}) })
	return ts
}

// mockNoteService is a mock implementation of driving.NoteService.
type mockNoteService struct {
	notes     map[string]*domain.Note
	details   *driving.NoteDetails
	created   []driving.NoteInput
	updated   []driving.NoteInput
	deleted   []string
	lastList  domain.NoteFilter
	err       error
	indexErr  error
	listNotes []domain.Note
}

func newMockNoteService() *mockNoteService {
	return &mockNoteService{notes: make(map[string]*domain.Note)}
}

func (m *mockNoteService) add(n domain.Note) {
	m.notes[n.ID] = &n
}

func (m *mockNoteService) Create(_ context.Context, input driving.NoteInput) (*domain.Note, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, input)
	n := &domain.Note{ID: "new-note", OwnerID: input.OwnerID, Title: input.Title, Content: input.Content, Tags: input.Tags}
	m.notes[n.ID] = n
	return n, m.indexErr
}

func (m *mockNoteService) Update(_ context.Context, id string, input driving.NoteInput) (*domain.Note, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.updated = append(m.updated, input)
	n := &domain.Note{ID: id, OwnerID: input.OwnerID, Title: input.Title, Content: input.Content, Tags: input.Tags}
	m.notes[id] = n
	return n, m.indexErr
}

func (m *mockNoteService) Get(_ context.Context, id string) (*domain.Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

func (m *mockNoteService) List(_ context.Context, filter domain.NoteFilter) ([]domain.Note, error) {
	m.lastList = filter
	return m.listNotes, m.err
}

func (m *mockNoteService) GetDetails(_ context.Context, id string) (*driving.NoteDetails, error) {
	if m.details == nil {
		return nil, domain.ErrNotFound
	}
	return m.details, nil
}

func (m *mockNoteService) Delete(_ context.Context, id string) error {
	if _, ok := m.notes[id]; !ok {
		return domain.ErrNotFound
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	indexed  []string
	chunks   int
	batch    domain.BatchResult
	reindexs []string
	err      error
}

func (m *mockIndexService) IndexNote(_ context.Context, id string) (int, error) {
	m.indexed = append(m.indexed, id)
	return m.chunks, m.err
}

func (m *mockIndexService) ReindexAll(_ context.Context, owner string) (domain.BatchResult, error) {
	m.reindexs = append(m.reindexs, owner)
	return m.batch, m.err
}

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results    []domain.SearchResult
	saved      []domain.SavedSearch
	history    []domain.SearchHistoryEntry
	lastQuery  string
	lastOpts   domain.SearchOptions
	savedNames []string
	deleted    []string
	err        error
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.results, m.err
}

func (m *mockSearchService) RetrieveChunks(context.Context, string, domain.SearchOptions) ([]domain.RankedChunk, error) {
	return nil, m.err
}

func (m *mockSearchService) SaveSearch(_ context.Context, owner, name, query string) (*domain.SavedSearch, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.savedNames = append(m.savedNames, name)
	s := domain.SavedSearch{ID: "saved-1", OwnerID: owner, Name: name, Query: query}
	m.saved = append(m.saved, s)
	return &s, nil
}

func (m *mockSearchService) ListSavedSearches(context.Context, string) ([]domain.SavedSearch, error) {
	return m.saved, m.err
}

func (m *mockSearchService) DeleteSavedSearch(_ context.Context, _, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockSearchService) History(context.Context, string, int) ([]domain.SearchHistoryEntry, error) {
	return m.history, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer       *domain.Answer
	events       []domain.AnswerEvent
	lastQuestion string
	lastOpts     domain.AskOptions
	streamed     bool
	err          error
}

func (m *mockAnswerService) Ask(_ context.Context, q string, opts domain.AskOptions) (*domain.Answer, error) {
	m.lastQuestion = q
	m.lastOpts = opts
	return m.answer, m.err
}

func (m *mockAnswerService) AskStream(_ context.Context, q string, opts domain.AskOptions) <-chan domain.AnswerEvent {
	m.lastQuestion = q
	m.lastOpts = opts
	m.streamed = true
	ch := make(chan domain.AnswerEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch
}

// mockDuplicateService is a mock implementation of driving.DuplicateService.
type mockDuplicateService struct {
	matches       []domain.DuplicateMatch
	reports       []domain.DuplicateReport
	merged        *domain.Note
	lastThreshold float64
	lastFilter    domain.ReportFilter
	confirmed     []string
	dismissed     []string
	err           error
}

func (m *mockDuplicateService) FindDuplicates(_ context.Context, _ string, threshold float64) ([]domain.DuplicateMatch, error) {
	m.lastThreshold = threshold
	return m.matches, m.err
}

func (m *mockDuplicateService) ListReports(_ context.Context, filter domain.ReportFilter) ([]domain.DuplicateReport, error) {
	m.lastFilter = filter
	return m.reports, m.err
}

func (m *mockDuplicateService) Confirm(_ context.Context, _, id string) error {
	m.confirmed = append(m.confirmed, id)
	return m.err
}

func (m *mockDuplicateService) Dismiss(_ context.Context, _, id string) error {
	m.dismissed = append(m.dismissed, id)
	return m.err
}

func (m *mockDuplicateService) Merge(context.Context, string, string) (*domain.Note, error) {
	return m.merged, m.err
}

type enqueuedJob struct {
	kind    domain.JobKind
	payload any
}

// mockJobOrchestrator is a mock implementation of driving.JobOrchestrator.
type mockJobOrchestrator struct {
	jobs       []domain.Job
	enqueued   []enqueuedJob
	lastFilter domain.JobFilter
	drained    int
	drains     int
	started    bool
	stopped    bool
	stopOnce   sync.Once
	stopCh     chan struct{}
	err        error
}

func (m *mockJobOrchestrator) Enqueue(_ context.Context, kind domain.JobKind, payload any, _ domain.JobOptions) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.enqueued = append(m.enqueued, enqueuedJob{kind: kind, payload: payload})
	return "job-1", nil
}

func (m *mockJobOrchestrator) Start(ctx context.Context) error {
	m.started = true
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return nil
	}
}

func (m *mockJobOrchestrator) Stop() error {
	m.stopOnce.Do(func() {
		m.stopped = true
		close(m.stopCh)
	})
	return nil
}

func (m *mockJobOrchestrator) Drain(context.Context) (int, error) {
	m.drains++
	return m.drained, m.err
}

func (m *mockJobOrchestrator) Job(_ context.Context, id string) (*domain.Job, error) {
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			return &m.jobs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobOrchestrator) ListJobs(_ context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	m.lastFilter = filter
	return m.jobs, m.err
}

func (m *mockJobOrchestrator) OnProgress(func(domain.Job, int))       {}
func (m *mockJobOrchestrator) OnCompleted(func(domain.Job))           {}
func (m *mockJobOrchestrator) OnFailed(func(domain.Job, error, bool)) {}

// mockScheduler is a mock implementation of driving.Scheduler.
type mockScheduler struct {
	lastTask string
	result   *domain.TaskResult
	err      error
	stopOnce sync.Once
	stopCh   chan struct{}
}

func (m *mockScheduler) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return nil
	}
}

func (m *mockScheduler) Stop() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}

func (m *mockScheduler) RunTask(_ context.Context, taskID string) (*domain.TaskResult, error) {
	m.lastTask = taskID
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.TaskResult{TaskID: taskID, StartedAt: time.Now(), Success: true, JobID: "job-" + taskID}, nil
}

type providerCall struct {
	provider domain.AIProvider
	model    string
	apiKey   string
	fallback bool
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings       domain.AppSettings
	embeddingCalls []providerCall
	completeCalls  []providerCall
	validateErr    error
	embeddingErr   error
	completionErr  error
	setErr         error
	pings          int
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, key string, fallback bool) error {
	m.embeddingCalls = append(m.embeddingCalls, providerCall{p, model, key, fallback})
	return m.setErr
}

func (m *mockSettingsService) SetCompletionProvider(p domain.AIProvider, model, key string, fallback bool) error {
	m.completeCalls = append(m.completeCalls, providerCall{p, model, key, fallback})
	return m.setErr
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	return domain.DefaultSchedulerConfig()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	m.pings++
	return m.embeddingErr
}

func (m *mockSettingsService) ValidateCompletionConfig() error {
	m.pings++
	return m.completionErr
}

// mockImportService is a mock implementation of driving.ImportService.
type mockImportService struct {
	results  []domain.ImportResult
	err      error
	lastPath string
	lastOpts driving.ImportOptions
	watched  bool
}

func (m *mockImportService) Import(_ context.Context, path string, opts driving.ImportOptions) ([]domain.ImportResult, error) {
	m.lastPath = path
	m.lastOpts = opts
	return m.results, m.err
}

func (m *mockImportService) Watch(ctx context.Context, dir string, opts driving.ImportOptions, report func(domain.ImportResult)) error {
	m.watched = true
	m.lastPath = dir
	m.lastOpts = opts
	for _, r := range m.results {
		report(r)
	}
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}
