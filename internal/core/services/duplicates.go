package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure DuplicateService implements the interface.
var _ driving.DuplicateService = (*DuplicateService)(nil)

// mergeSeparator joins merged note bodies.
const mergeSeparator = "\n\n---\n\n"

// DuplicateService finds, records and resolves near-duplicate notes.
type DuplicateService struct {
	notes    driven.NoteStore
	chunks   driven.ChunkStore
	reports  driven.DuplicateStore
	rankings driven.RankingStore
	indexer  noteIndexer
	detector *DuplicateDetector
	cfg      domain.DuplicateSettings
	now      func() time.Time
	log      *logger.Logger
}

// NewDuplicateService creates a duplicate service.
func NewDuplicateService(
	notes driven.NoteStore,
	chunks driven.ChunkStore,
	reports driven.DuplicateStore,
	rankings driven.RankingStore,
	indexer noteIndexer,
	cfg domain.DuplicateSettings,
) *DuplicateService {
	return &DuplicateService{
		notes:    notes,
		chunks:   chunks,
		reports:  reports,
		rankings: rankings,
		indexer:  indexer,
		detector: NewDuplicateDetector(),
		cfg:      cfg,
		now:      time.Now,
		log:      logger.For("duplicates"),
	}
}

// FindDuplicates compares a note with its owner's other live notes.
// A threshold of zero uses the configured default.
func (s *DuplicateService) FindDuplicates(
	ctx context.Context, noteID string, threshold float64,
) ([]domain.DuplicateMatch, error) {
	if threshold <= 0 {
		threshold = s.cfg.Threshold
	}
	target, candidates, err := s.loadForNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return s.detector.FindForNote(*target, candidates, threshold), nil
}

// loadForNote loads a note and up to MaxComparisons other notes of its owner,
// most recently updated first, all with chunks.
func (s *DuplicateService) loadForNote(
	ctx context.Context, noteID string,
) (*domain.NoteWithChunks, []domain.NoteWithChunks, error) {
	note, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	if note.Deleted {
		return nil, nil, domain.ErrNoteDeleted
	}

	limit := 0
	if s.cfg.MaxComparisons > 0 {
		limit = s.cfg.MaxComparisons + 1
	}
	others, err := s.notes.ListNotes(ctx, domain.NoteFilter{OwnerID: note.OwnerID, Limit: limit})
	if err != nil {
		return nil, nil, fmt.Errorf("list notes: %w", err)
	}
	candidates := make([]domain.Note, 0, len(others))
	for _, n := range others {
		if n.ID != note.ID {
			candidates = append(candidates, n)
		}
	}
	if s.cfg.MaxComparisons > 0 && len(candidates) > s.cfg.MaxComparisons {
		candidates = candidates[:s.cfg.MaxComparisons]
	}

	all, err := s.withChunks(ctx, append([]domain.Note{*note}, candidates...))
	if err != nil {
		return nil, nil, err
	}
	return &all[0], all[1:], nil
}

// loadCorpus loads up to MaxCorpusNotes live notes of an owner with chunks.
func (s *DuplicateService) loadCorpus(ctx context.Context, ownerID string) ([]domain.NoteWithChunks, error) {
	notes, err := s.notes.ListNotes(ctx, domain.NoteFilter{OwnerID: ownerID, Limit: s.cfg.MaxCorpusNotes})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return s.withChunks(ctx, notes)
}

func (s *DuplicateService) withChunks(ctx context.Context, notes []domain.Note) ([]domain.NoteWithChunks, error) {
	ids := make([]string, len(notes))
	for i := range notes {
		ids[i] = notes[i].ID
	}
	chunks, err := s.chunks.GetChunksForNotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	out := make([]domain.NoteWithChunks, len(notes))
	for i := range notes {
		out[i] = domain.NoteWithChunks{Note: notes[i], Chunks: chunks[notes[i].ID]}
	}
	return out, nil
}

// recordMatches stores a report per match, skipping pairs already reported.
// Returns the number of reports created.
func (s *DuplicateService) recordMatches(
	ctx context.Context, ownerID string, notes map[string]domain.Note, matches []domain.DuplicateMatch,
) (int, error) {
	created := 0
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		original, duplicate := orderPair(notes[m.NoteA], notes[m.NoteB])
		ok, err := s.reports.CreateReport(ctx, &domain.DuplicateReport{
			ID:              uuid.NewString(),
			OwnerID:         ownerID,
			OriginalNoteID:  original,
			DuplicateNoteID: duplicate,
			Similarity:      m.Score,
			SimilarityType:  m.Type,
			SuggestedAction: m.Action,
			Status:          domain.ReportPending,
			CreatedAt:       s.now().UTC(),
		})
		if err != nil {
			return created, fmt.Errorf("create report: %w", err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// orderPair returns (original, duplicate): the older note is the original.
func orderPair(a, b domain.Note) (string, string) {
	if b.CreatedAt.Before(a.CreatedAt) || (b.CreatedAt.Equal(a.CreatedAt) && b.ID < a.ID) {
		return b.ID, a.ID
	}
	return a.ID, b.ID
}

// ListReports returns stored reports.
func (s *DuplicateService) ListReports(
	ctx context.Context, filter domain.ReportFilter,
) ([]domain.DuplicateReport, error) {
	return s.reports.ListReports(ctx, filter)
}

// Confirm marks a report as a confirmed duplicate.
func (s *DuplicateService) Confirm(ctx context.Context, ownerID, reportID string) error {
	return s.resolve(ctx, ownerID, reportID, domain.ReportConfirmed)
}

// Dismiss marks a report as not a duplicate.
func (s *DuplicateService) Dismiss(ctx context.Context, ownerID, reportID string) error {
	return s.resolve(ctx, ownerID, reportID, domain.ReportDismissed)
}

func (s *DuplicateService) resolve(ctx context.Context, ownerID, reportID string, status domain.ReportStatus) error {
	report, err := s.ownedReport(ctx, ownerID, reportID)
	if err != nil {
		return err
	}
	if report.Status == domain.ReportMerged {
		return fmt.Errorf("%w: report %s already merged", domain.ErrInvalidInput, reportID)
	}
	return s.reports.UpdateReportStatus(ctx, reportID, status, s.now().UTC())
}

func (s *DuplicateService) ownedReport(ctx context.Context, ownerID, reportID string) (*domain.DuplicateReport, error) {
	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && report.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return report, nil
}

// Merge appends the duplicate's body to the original, unions their tags,
// soft-deletes the duplicate and reindexes the original. A merge that
// stopped part way is completed by calling Merge again; the body is never
// appended twice.
func (s *DuplicateService) Merge(ctx context.Context, ownerID, reportID string) (*domain.Note, error) {
	report, err := s.ownedReport(ctx, ownerID, reportID)
	if err != nil {
		return nil, err
	}
	kept, err := s.notes.GetNote(ctx, report.OriginalNoteID)
	if err != nil {
		return nil, fmt.Errorf("get original: %w", err)
	}
	if report.Status == domain.ReportMerged {
		return kept, nil
	}
	dup, err := s.notes.GetNote(ctx, report.DuplicateNoteID)
	if err != nil {
		return nil, fmt.Errorf("get duplicate: %w", err)
	}
	if kept.Deleted {
		return nil, domain.ErrNoteDeleted
	}

	now := s.now().UTC()
	// A deleted duplicate means an earlier attempt got past the delete.
	if !dup.Deleted {
		if !strings.HasSuffix(kept.Content, mergeSeparator+dup.Content) {
			kept.Content = mergeContent(kept.Content, dup.Content)
		}
		kept.Tags = domain.UnionTags(kept.Tags, dup.Tags)
		kept.UpdatedAt = now
		if err := s.notes.SaveNote(ctx, kept); err != nil {
			return nil, fmt.Errorf("save merged note: %w", err)
		}
		if err := s.notes.SoftDeleteNote(ctx, dup.ID, now); err != nil {
			return nil, fmt.Errorf("delete duplicate: %w", err)
		}
	}
	if err := s.chunks.ReplaceChunks(ctx, dup.ID, nil); err != nil {
		return nil, fmt.Errorf("clear duplicate chunks: %w", err)
	}
	if s.rankings != nil {
		if err := s.rankings.DeleteRankingsForNote(ctx, dup.ID); err != nil {
			s.log.Warn("delete rankings of %s: %v", dup.ID, err)
		}
	}
	if err := s.reports.UpdateReportStatus(ctx, report.ID, domain.ReportMerged, now); err != nil {
		return nil, fmt.Errorf("mark report merged: %w", err)
	}
	if _, err := s.indexer.IndexNote(ctx, kept.ID); err != nil {
		return kept, fmt.Errorf("reindex merged note: %w", err)
	}
	s.log.Info("merged %s into %s", dup.ID, kept.ID)
	return kept, nil
}

func mergeContent(a, b string) string {
	switch {
	case b == "":
		return a
	case a == "":
		return b
	default:
		return a + mergeSeparator + b
	}
}

// ReportForNote compares one note with its owner's notes and stores a
// report for each new match. Returns the number of reports created.
func (s *DuplicateService) ReportForNote(ctx context.Context, noteID string, threshold float64) (int, error) {
	target, candidates, err := s.loadForNote(ctx, noteID)
	if err != nil {
		return 0, err
	}
	matches := s.detector.FindForNote(*target, candidates, threshold)
	return s.recordMatches(ctx, target.Note.OwnerID, notesByID(append(candidates, *target)), matches)
}

// ReportCorpus scans an owner's notes pairwise and stores a report for
// each new match. Reports written before a cancellation stay valid.
func (s *DuplicateService) ReportCorpus(
	ctx context.Context, ownerID string, threshold float64, progress func(done, total int),
) (int, error) {
	notes, err := s.loadCorpus(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	s.log.Debug("scanning %d notes of %s", len(notes), ownerID)
	matches, scanErr := s.detector.ScanCorpus(ctx, notes, threshold, progress)
	if scanErr != nil && len(matches) == 0 {
		return 0, scanErr
	}
	writeCtx := ctx
	if scanErr != nil {
		// Matches found before the cancellation are stored regardless.
		writeCtx = context.WithoutCancel(ctx)
	}
	created, err := s.recordMatches(writeCtx, ownerID, notesByID(notes), matches)
	if err != nil {
		return created, err
	}
	return created, scanErr
}

func notesByID(notes []domain.NoteWithChunks) map[string]domain.Note {
	out := make(map[string]domain.Note, len(notes))
	for _, n := range notes {
		out[n.Note.ID] = n.Note
	}
	return out
}
