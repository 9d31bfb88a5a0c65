package domain

import "time"

// SimilarityType names the measure that produced a duplicate score.
type SimilarityType string

// Similarity measures. When scores tie, semantic wins over content,
// and content over title.
const (
	SimilarityTitle    SimilarityType = "title"
	SimilarityContent  SimilarityType = "content"
	SimilaritySemantic SimilarityType = "semantic"
)

// Precedence orders similarity types for tie-breaking (higher wins).
func (t SimilarityType) Precedence() int {
	switch t {
	case SimilaritySemantic:
		return 3
	case SimilarityContent:
		return 2
	case SimilarityTitle:
		return 1
	default:
		return 0
	}
}

// SuggestedAction is the recommended resolution for a duplicate pair.
type SuggestedAction string

// Suggested actions, most urgent first.
const (
	ActionMerge        SuggestedAction = "merge"
	ActionReview       SuggestedAction = "review"
	ActionKeepSeparate SuggestedAction = "keep_separate"
)

// Classification thresholds.
const (
	// MergeThreshold is the minimum score suggesting a merge.
	MergeThreshold = 0.95

	// ReviewThreshold is the minimum score suggesting a review.
	ReviewThreshold = 0.85
)

// ClassifyScore maps a similarity score to a suggested action.
// The caller is responsible for the reporting threshold.
func ClassifyScore(score float64) SuggestedAction {
	switch {
	case score >= MergeThreshold:
		return ActionMerge
	case score >= ReviewThreshold:
		return ActionReview
	default:
		return ActionKeepSeparate
	}
}

// ReportStatus is the lifecycle state of a DuplicateReport.
type ReportStatus string

// Report statuses.
const (
	ReportPending   ReportStatus = "pending"
	ReportConfirmed ReportStatus = "confirmed"
	ReportDismissed ReportStatus = "dismissed"
	ReportMerged    ReportStatus = "merged"
)

// IsResolved returns true once the report has left the pending state.
func (s ReportStatus) IsResolved() bool {
	return s != ReportPending && s != ""
}

// DuplicateMatch is the transient output of comparing two notes.
type DuplicateMatch struct {
	// NoteA and NoteB are the compared note IDs, in the order given.
	NoteA string `json:"note_a"`
	NoteB string `json:"note_b"`

	// Score is the maximum of the three measures, in [0, 1].
	Score float64 `json:"score"`

	// Type is the measure that produced Score.
	Type SimilarityType `json:"type"`

	// Action is the suggested resolution.
	Action SuggestedAction `json:"action"`

	// Title, Content and Semantic are the individual measures.
	Title    float64 `json:"title"`
	Content  float64 `json:"content"`
	Semantic float64 `json:"semantic"`
}

// DuplicateReport is a persisted duplicate finding.
// Unique per unordered note pair.
type DuplicateReport struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	OriginalNoteID  string          `json:"original_note_id"`
	DuplicateNoteID string          `json:"duplicate_note_id"`
	Similarity      float64         `json:"similarity"`
	SimilarityType  SimilarityType  `json:"similarity_type"`
	SuggestedAction SuggestedAction `json:"suggested_action"`
	Status          ReportStatus    `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	ResolvedAt      time.Time       `json:"resolved_at,omitempty"`
}

// PairKey returns the canonical key of the report's unordered pair.
func (r DuplicateReport) PairKey() string {
	return PairKey(r.OriginalNoteID, r.DuplicateNoteID)
}

// PairKey returns an order-independent key for two note IDs.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// ReportFilter narrows a report listing.
type ReportFilter struct {
	OwnerID       string
	Status        ReportStatus
	MinSimilarity float64
	NoteID        string
	Limit         int
}
