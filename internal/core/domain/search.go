package domain

import (
	"strings"
	"time"
)

// SortKey selects the ordering of search results.
type SortKey string

// Available sort keys.
const (
	// SortByRelevance orders by descending composite score.
	SortByRelevance SortKey = "relevance"

	// SortByUpdated orders by most recently updated first.
	SortByUpdated SortKey = "updated"

	// SortByCreated orders by most recently created first.
	SortByCreated SortKey = "created"

	// SortByTitle orders alphabetically by title.
	SortByTitle SortKey = "title"
)

// IsValid returns true if the sort key is recognised.
func (k SortKey) IsValid() bool {
	switch k {
	case SortByRelevance, SortByUpdated, SortByCreated, SortByTitle:
		return true
	default:
		return false
	}
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// OwnerID restricts the search to one user's notes.
	OwnerID string

	// Limit is the maximum number of results.
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// SortBy selects the result order. Defaults to relevance.
	SortBy SortKey

	// Tags restricts results to notes carrying all of these tags.
	Tags []string

	// Lexical disables the semantic signal for this query.
	Lexical bool

	// SkipFeedback suppresses history logging and ranking persistence.
	SkipFeedback bool
}

// ScoreFactor names one additive scoring signal.
type ScoreFactor string

// Scoring signals, in order of weight.
const (
	FactorTitlePhrase    ScoreFactor = "title_phrase"
	FactorContentPhrase  ScoreFactor = "content_phrase"
	FactorTitleKeywords  ScoreFactor = "title_keywords"
	FactorContentKeyword ScoreFactor = "content_keywords"
	FactorTags           ScoreFactor = "tags"
	FactorRecency        ScoreFactor = "recency"
	FactorLength         ScoreFactor = "length"
	FactorFeedback       ScoreFactor = "feedback"
	FactorSemantic       ScoreFactor = "semantic"
)

// ScoreBreakdown is the output of scoring one note against a query.
type ScoreBreakdown struct {
	// Total is the clamped, non-negative sum of all factors.
	Total float64 `json:"total"`

	// Factors holds each non-zero contribution.
	Factors map[ScoreFactor]float64 `json:"factors,omitempty"`

	// Reasons are human-readable explanations, strongest first, at most 5.
	Reasons []string `json:"reasons,omitempty"`
}

// SearchResult represents a single ranked note. Never persisted.
type SearchResult struct {
	// Note is the matched note.
	Note Note `json:"note"`

	// Chunk is the best-matching chunk, when chunks were consulted.
	Chunk *Chunk `json:"chunk,omitempty"`

	// Score is the composite relevance score.
	Score float64 `json:"score"`

	// Factors is the per-signal breakdown.
	Factors map[ScoreFactor]float64 `json:"factors,omitempty"`

	// Reasons explain the score, strongest first.
	Reasons []string `json:"reasons,omitempty"`

	// Highlight is a snippet around the first matched term.
	Highlight string `json:"highlight,omitempty"`
}

// RankingRecord is persisted feedback linking a (note, query) pair to a past score.
type RankingRecord struct {
	// NoteID is the ranked note.
	NoteID string `json:"note_id"`

	// Query is the normalized query.
	Query string `json:"query"`

	// Score is the score the note received.
	Score float64 `json:"score"`

	// Factors records the contributing signals.
	Factors map[ScoreFactor]float64 `json:"factors,omitempty"`

	// UpdatedAt is when the record was last upserted.
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchHistoryEntry is an append-only log of executed searches.
type SearchHistoryEntry struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	TopNoteIDs  []string  `json:"top_note_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SavedSearch is a user-curated query.
type SavedSearch struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeQuery lower-cases and collapses whitespace so equivalent
// queries share one RankingRecord.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
