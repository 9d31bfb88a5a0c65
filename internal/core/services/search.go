package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/textutil"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

const (
	defaultSearchLimit = 20
	defaultTopNotes    = 5
	defaultRankingTopN = 10
	historyTopNotes    = 5
	highlightLength    = 200

	// minSemanticMatch is the similarity at which a note with no lexical
	// hit still counts as a match.
	minSemanticMatch = 0.35

	// chunkNoteShare is how much of its note's score a chunk inherits.
	chunkNoteShare = 0.5
)

// scoredNote holds a note's ranking state before results are built.
type scoredNote struct {
	note      domain.Note
	chunks    []domain.Chunk
	breakdown domain.ScoreBreakdown
	best      int
}

// queryVector is the embedded query, empty when embeddings are unavailable.
type queryVector struct {
	vec   []float32
	model string
}

// SearchService ranks notes with lexical, feedback and semantic signals.
type SearchService struct {
	notes      driven.NoteStore
	chunks     driven.ChunkStore
	rankings   driven.RankingStore
	history    driven.HistoryStore
	embeddings *Embeddings
	scorer     *TextScorer
	matcher    *SemanticMatcher
	jobs       jobEnqueuer

	ownerID     string
	rankingTopN int
	now         func() time.Time
	log         *logger.Logger
}

// NewSearchService creates a search service.
// The embeddings and history parameters are optional (can be nil).
func NewSearchService(
	notes driven.NoteStore,
	chunks driven.ChunkStore,
	rankings driven.RankingStore,
	history driven.HistoryStore,
	embeddings *Embeddings,
) *SearchService {
	return &SearchService{
		notes:       notes,
		chunks:      chunks,
		rankings:    rankings,
		history:     history,
		embeddings:  embeddings,
		scorer:      NewTextScorer(),
		matcher:     NewSemanticMatcher(),
		ownerID:     domain.DefaultOwnerID,
		rankingTopN: defaultRankingTopN,
		now:         time.Now,
		log:         logger.For("search"),
	}
}

// SetJobEnqueuer enables asynchronous ranking persistence.
func (s *SearchService) SetJobEnqueuer(jobs jobEnqueuer) {
	s.jobs = jobs
}

// SetDefaultOwner sets the owner used when options omit one.
func (s *SearchService) SetDefaultOwner(ownerID string) {
	if ownerID != "" {
		s.ownerID = ownerID
	}
}

// SetRankingTopN sets how many results feed the ranking job.
func (s *SearchService) SetRankingTopN(n int) {
	if n > 0 {
		s.rankingTopN = n
	}
}

// Search ranks an owner's notes against a query.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	s.log.Debug("query=%q limit=%d offset=%d sort=%s", query, opts.Limit, opts.Offset, opts.SortBy)

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}
	if opts.SortBy == "" {
		opts.SortBy = domain.SortByRelevance
	}
	if !opts.SortBy.IsValid() {
		return nil, fmt.Errorf("%w: unknown sort key %q", domain.ErrInvalidInput, opts.SortBy)
	}
	if opts.OwnerID == "" {
		opts.OwnerID = s.ownerID
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	scored, _, err := s.rank(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	keywords := textutil.Keywords(query)
	results := make([]domain.SearchResult, 0, len(scored))
	for i := range scored {
		results = append(results, s.buildResult(&scored[i], query, keywords))
	}
	SortResults(results, opts.SortBy)

	if !opts.SkipFeedback {
		s.recordFeedback(ctx, query, opts.OwnerID, results)
	}

	page := paginate(results, opts.Offset, limit)
	s.log.Info("%d matches, returning %d", len(results), len(page))
	return page, nil
}

// RetrieveChunks ranks the chunks of the best notes for context assembly.
func (s *SearchService) RetrieveChunks(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.RankedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if opts.OwnerID == "" {
		opts.OwnerID = s.ownerID
	}
	top := opts.Limit
	if top <= 0 {
		top = defaultTopNotes
	}

	scored, qv, err := s.rank(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	sortScored(scored)
	if len(scored) > top {
		scored = scored[:top]
	}

	phrase := domain.NormalizeQuery(query)
	keywords := textutil.Keywords(query)

	var ranked []domain.RankedChunk
	for _, sn := range scored {
		for _, c := range sn.chunks {
			score := sn.breakdown.Total*chunkNoteShare + chunkLexicalScore(c.Content, phrase, keywords)
			if len(qv.vec) > 0 && c.EmbeddingModel == qv.model {
				score += SemanticContribution(clamp01(CosineSimilarity(qv.vec, c.Embedding)))
			}
			ranked = append(ranked, domain.RankedChunk{Chunk: c, NoteTitle: sn.note.Title, Score: score})
		}
	}
	sortRankedChunks(ranked)
	s.log.Debug("retrieved %d chunks from %d notes", len(ranked), len(scored))
	return ranked, nil
}

// rank scores every candidate note and keeps those that match the query.
func (s *SearchService) rank(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]scoredNote, queryVector, error) {
	notes, err := s.notes.ListNotes(ctx, domain.NoteFilter{OwnerID: opts.OwnerID, Tags: opts.Tags})
	if err != nil {
		return nil, queryVector{}, fmt.Errorf("list notes: %w", err)
	}
	if len(notes) == 0 {
		return nil, queryVector{}, nil
	}

	ids := make([]string, len(notes))
	for i := range notes {
		ids[i] = notes[i].ID
	}
	chunksByNote, err := s.chunks.GetChunksForNotes(ctx, ids)
	if err != nil {
		return nil, queryVector{}, fmt.Errorf("get chunks: %w", err)
	}
	var recs map[string][]domain.RankingRecord
	if s.rankings != nil {
		recs, err = s.rankings.ListRankingsForNotes(ctx, ids)
		if err != nil {
			return nil, queryVector{}, fmt.Errorf("list rankings: %w", err)
		}
	}

	var qv queryVector
	if !opts.Lexical {
		qv = s.embedQuery(ctx, query)
	}

	now := s.now()
	scored := make([]scoredNote, 0, len(notes))
	for i := range notes {
		chunks := chunksByNote[notes[i].ID]
		best, sim := s.matcher.Best(qv.vec, qv.model, chunks)
		bd := s.scorer.Score(notes[i], query, ScoreInputs{
			Now:      now,
			Rankings: recs[notes[i].ID],
			Semantic: sim,
		})
		if !matchesQuery(bd, sim) {
			continue
		}
		scored = append(scored, scoredNote{note: notes[i], chunks: chunks, breakdown: bd, best: best})
	}
	return scored, qv, nil
}

func (s *SearchService) embedQuery(ctx context.Context, query string) queryVector {
	session := s.embeddings.Session()
	if !session.Available() {
		return queryVector{}
	}
	vec, model, err := session.Embed(ctx, query)
	if err != nil {
		s.log.Debug("query embedding unavailable, scoring lexically: %v", err)
		return queryVector{}
	}
	return queryVector{vec: vec, model: model}
}

// matchesQuery requires a lexical, tag or feedback hit, or a strong
// semantic similarity. Recency and length alone never make a match.
func matchesQuery(bd domain.ScoreBreakdown, sim float64) bool {
	for _, f := range []domain.ScoreFactor{
		domain.FactorTitlePhrase,
		domain.FactorContentPhrase,
		domain.FactorTitleKeywords,
		domain.FactorContentKeyword,
		domain.FactorTags,
	} {
		if bd.Factors[f] > 0 {
			return true
		}
	}
	return sim >= minSemanticMatch
}

func (s *SearchService) buildResult(sn *scoredNote, query string, keywords []string) domain.SearchResult {
	res := domain.SearchResult{
		Note:    sn.note,
		Score:   sn.breakdown.Total,
		Factors: sn.breakdown.Factors,
		Reasons: sn.breakdown.Reasons,
	}

	best := sn.best
	if best < 0 {
		best = lexicalBestChunk(sn.chunks, keywords)
	}
	text := sn.note.Content
	if best >= 0 {
		c := sn.chunks[best]
		res.Chunk = &c
		text = c.Content
	}
	terms := append([]string{query}, keywords...)
	res.Highlight = textutil.Snippet(textutil.StripMarkdown(text), terms, highlightLength)
	return res
}

func (s *SearchService) recordFeedback(ctx context.Context, query, ownerID string, results []domain.SearchResult) {
	if s.history != nil {
		entry := &domain.SearchHistoryEntry{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			Query:       query,
			ResultCount: len(results),
			CreatedAt:   s.now().UTC(),
		}
		for i := 0; i < len(results) && i < historyTopNotes; i++ {
			entry.TopNoteIDs = append(entry.TopNoteIDs, results[i].Note.ID)
		}
		if err := s.history.AppendHistory(ctx, entry); err != nil {
			s.log.Warn("append search history: %v", err)
		}
	}

	if s.jobs == nil || len(results) == 0 {
		return
	}
	payload := domain.UpdateRankingsPayload{OwnerID: ownerID, Query: domain.NormalizeQuery(query)}
	for i := 0; i < len(results) && i < s.rankingTopN; i++ {
		payload.Results = append(payload.Results, domain.RankedNoteScore{
			NoteID:  results[i].Note.ID,
			Score:   results[i].Score,
			Factors: results[i].Factors,
		})
	}
	if _, err := s.jobs.Enqueue(ctx, domain.JobUpdateSearchRankings, payload, domain.JobOptions{}); err != nil {
		s.log.Warn("queue ranking update: %v", err)
	}
}

// SaveSearch stores a named query. Saving an existing name replaces its query.
func (s *SearchService) SaveSearch(ctx context.Context, ownerID, name, query string) (*domain.SavedSearch, error) {
	name, query = strings.TrimSpace(name), strings.TrimSpace(query)
	if name == "" || query == "" {
		return nil, fmt.Errorf("%w: saved search needs a name and a query", domain.ErrInvalidInput)
	}
	if ownerID == "" {
		ownerID = s.ownerID
	}

	existing, err := s.history.ListSavedSearches(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list saved searches: %w", err)
	}
	saved := &domain.SavedSearch{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Query:     query,
		CreatedAt: s.now().UTC(),
	}
	for _, e := range existing {
		if strings.EqualFold(e.Name, name) {
			saved.ID = e.ID
			saved.CreatedAt = e.CreatedAt
			break
		}
	}
	if err := s.history.SaveSearch(ctx, saved); err != nil {
		return nil, fmt.Errorf("save search: %w", err)
	}
	return saved, nil
}

// ListSavedSearches returns an owner's saved searches.
func (s *SearchService) ListSavedSearches(ctx context.Context, ownerID string) ([]domain.SavedSearch, error) {
	if ownerID == "" {
		ownerID = s.ownerID
	}
	return s.history.ListSavedSearches(ctx, ownerID)
}

// DeleteSavedSearch removes a saved search owned by ownerID.
func (s *SearchService) DeleteSavedSearch(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		ownerID = s.ownerID
	}
	saved, err := s.history.GetSavedSearch(ctx, id)
	if err != nil {
		return err
	}
	if saved.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	return s.history.DeleteSavedSearch(ctx, id)
}

// History returns an owner's recent searches.
func (s *SearchService) History(ctx context.Context, ownerID string, limit int) ([]domain.SearchHistoryEntry, error) {
	if ownerID == "" {
		ownerID = s.ownerID
	}
	return s.history.ListHistory(ctx, ownerID, limit)
}

// chunkLexicalScore rates one chunk with the phrase and keyword weights.
func chunkLexicalScore(content, phrase string, keywords []string) float64 {
	var score float64
	if phrase != "" && strings.Contains(strings.ToLower(textutil.NormalizeWhitespace(content)), phrase) {
		score += weightContentPhrase
	}
	for _, kw := range keywords {
		if n := textutil.CountWord(content, kw); n > 0 {
			score += weightContentHit + float64(min(n-1, maxRepeatBonus))
		}
	}
	return score
}

// lexicalBestChunk returns the chunk with the most keyword hits, or -1.
func lexicalBestChunk(chunks []domain.Chunk, keywords []string) int {
	best, bestHits := -1, 0
	for i, c := range chunks {
		hits := 0
		for _, kw := range keywords {
			hits += textutil.CountWord(c.Content, kw)
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}
	return best
}

func sortScored(scored []scoredNote) {
	results := make([]domain.SearchResult, len(scored))
	index := make(map[string]scoredNote, len(scored))
	for i, sn := range scored {
		results[i] = domain.SearchResult{Note: sn.note, Score: sn.breakdown.Total}
		index[sn.note.ID] = sn
	}
	SortResults(results, domain.SortByRelevance)
	for i, r := range results {
		scored[i] = index[r.Note.ID]
	}
}

func sortRankedChunks(chunks []domain.RankedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.NoteID != b.Chunk.NoteID {
			return a.Chunk.NoteID < b.Chunk.NoteID
		}
		return a.Chunk.Position < b.Chunk.Position
	})
}

// paginate applies offset and limit.
func paginate(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	end := min(offset+limit, len(results))
	return results[offset:end]
}
