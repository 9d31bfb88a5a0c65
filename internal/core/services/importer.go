package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure ImportService implements the interface.
var _ driving.ImportService = (*ImportService)(nil)

// ImportService creates and updates notes from files.
type ImportService struct {
	notes       driving.NoteService
	normalisers driven.NormaliserRegistry
	openSource  driven.FileSourceFactory
	ownerID     string
}

// NewImportService creates an import service.
func NewImportService(
	notes driving.NoteService,
	normalisers driven.NormaliserRegistry,
	openSource driven.FileSourceFactory,
) *ImportService {
	return &ImportService{
		notes:       notes,
		normalisers: normalisers,
		openSource:  openSource,
		ownerID:     domain.DefaultOwnerID,
	}
}

// SetDefaultOwner sets the owner used when options omit one.
func (s *ImportService) SetDefaultOwner(ownerID string) {
	if ownerID != "" {
		s.ownerID = ownerID
	}
}

// importRun carries the state of one import: the owner's notes by title
// and the notes each imported path produced.
type importRun struct {
	opts    driving.ImportOptions
	byTitle map[string]domain.Note
	byPath  map[string]string
}

func (s *ImportService) newRun(ctx context.Context, opts driving.ImportOptions) (*importRun, error) {
	if opts.OwnerID == "" {
		opts.OwnerID = s.ownerID
	}
	notes, err := s.notes.List(ctx, domain.NoteFilter{OwnerID: opts.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	run := &importRun{
		opts:    opts,
		byTitle: make(map[string]domain.Note, len(notes)),
		byPath:  make(map[string]string),
	}
	for _, n := range notes {
		key := titleKey(n.Title)
		if existing, ok := run.byTitle[key]; !ok || n.UpdatedAt.After(existing.UpdatedAt) {
			run.byTitle[key] = n
		}
	}
	return run, nil
}

// Import reads a file or every supported file under a directory.
func (s *ImportService) Import(ctx context.Context, path string, opts driving.ImportOptions) ([]domain.ImportResult, error) {
	run, err := s.newRun(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s.importPath(ctx, run, path)
}

func (s *ImportService) importPath(ctx context.Context, run *importRun, path string) ([]domain.ImportResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if _, ok := s.normalisers.For(path); !ok {
			return nil, fmt.Errorf("%w: unsupported file type %s", domain.ErrInvalidInput, path)
		}
		return []domain.ImportResult{s.importFile(ctx, run, path)}, nil
	}

	src, err := s.openSource(path)
	if err != nil {
		return nil, err
	}
	var results []domain.ImportResult
	err = src.Walk(ctx, func(file string) error {
		if _, ok := s.normalisers.For(file); !ok {
			return nil
		}
		results = append(results, s.importFile(ctx, run, file))
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s: %w", path, err)
	}
	return results, nil
}

// importFile creates or updates the note for one file. Failures are
// reported in the result.
func (s *ImportService) importFile(ctx context.Context, run *importRun, path string) domain.ImportResult {
	result := domain.ImportResult{Path: path}
	fail := func(err error) domain.ImportResult {
		result.Action = domain.ImportFailed
		result.Error = err.Error()
		logger.Warn("Import of %s failed: %v", path, err)
		return result
	}

	normaliser, ok := s.normalisers.For(path)
	if !ok {
		result.Action = domain.ImportSkipped
		return result
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	imported, err := normaliser.Normalise(path, data)
	if err != nil {
		return fail(err)
	}
	result.Title = imported.Title
	if strings.TrimSpace(imported.Content) == "" {
		result.Action = domain.ImportSkipped
		return result
	}

	input := driving.NoteInput{
		OwnerID: run.opts.OwnerID,
		Title:   imported.Title,
		Content: imported.Content,
		Tags:    domain.UnionTags(imported.Tags, run.opts.Tags),
	}

	existing, found := run.byTitle[titleKey(imported.Title)]
	if found {
		input.Title = existing.Title
		input.Tags = domain.UnionTags(existing.Tags, input.Tags)
		result.NoteID = existing.ID
		run.byPath[path] = existing.ID
		if existing.Content == input.Content && slices.Equal(existing.Tags, input.Tags) {
			result.Action = domain.ImportUnchanged
			return result
		}
		result.Action = domain.ImportUpdated
		if run.opts.DryRun {
			return result
		}
		note, err := s.notes.Update(ctx, existing.ID, input)
		return s.recordWrite(run, path, result, note, err)
	}

	result.Action = domain.ImportCreated
	if run.opts.DryRun {
		return result
	}
	note, err := s.notes.Create(ctx, input)
	return s.recordWrite(run, path, result, note, err)
}

// recordWrite folds a create or update into the run. A note returned with
// an error was stored but not indexed; the result keeps the action and
// carries the error.
func (s *ImportService) recordWrite(run *importRun, path string, result domain.ImportResult,
	note *domain.Note, err error) domain.ImportResult {
	if note == nil {
		result.Action = domain.ImportFailed
		result.Error = err.Error()
		logger.Warn("Import of %s failed: %v", path, err)
		return result
	}
	run.byTitle[titleKey(note.Title)] = *note
	run.byPath[path] = note.ID
	result.NoteID = note.ID
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// Watch imports dir and then follows its changes until ctx is cancelled.
// A written file is imported again; a removed file deletes the note it
// produced during this watch.
func (s *ImportService) Watch(ctx context.Context, dir string, opts driving.ImportOptions,
	report func(domain.ImportResult)) error {
	run, err := s.newRun(ctx, opts)
	if err != nil {
		return err
	}
	src, err := s.openSource(dir)
	if err != nil {
		return err
	}

	changes, err := src.Watch(ctx)
	if err != nil {
		return err
	}

	results, err := s.importPath(ctx, run, src.Root())
	for _, r := range results {
		report(r)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	for change := range changes {
		switch change.Type {
		case domain.FileWritten:
			if _, ok := s.normalisers.For(change.Path); !ok {
				continue
			}
			report(s.importFile(ctx, run, change.Path))
		case domain.FileRemoved:
			if r, ok := s.removeFile(ctx, run, change.Path); ok {
				report(r)
			}
		}
	}
	return ctx.Err()
}

// removeFile deletes the note a removed file produced.
func (s *ImportService) removeFile(ctx context.Context, run *importRun, path string) (domain.ImportResult, bool) {
	noteID, ok := run.byPath[path]
	if !ok {
		return domain.ImportResult{}, false
	}
	delete(run.byPath, path)
	for key, n := range run.byTitle {
		if n.ID == noteID {
			delete(run.byTitle, key)
		}
	}

	result := domain.ImportResult{Path: path, NoteID: noteID, Action: domain.ImportDeleted}
	if run.opts.DryRun {
		return result, true
	}
	if err := s.notes.Delete(ctx, noteID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		result.Action = domain.ImportFailed
		result.Error = err.Error()
	}
	return result, true
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
