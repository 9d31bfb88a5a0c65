package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func words(w string, n int) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}

func TestTextScorer_Score(t *testing.T) {
	scorer := NewTextScorer()

	tests := []struct {
		name    string
		note    domain.Note
		query   string
		in      ScoreInputs
		factors map[domain.ScoreFactor]float64
		total   float64
	}{
		{
			name:  "phrase and keywords in title",
			note:  domain.Note{Title: "Go Concurrency Patterns", Content: "channels and goroutines"},
			query: "concurrency patterns",
			factors: map[domain.ScoreFactor]float64{
				domain.FactorTitlePhrase:   100,
				domain.FactorTitleKeywords: 30,
			},
			total: 130,
		},
		{
			name:  "repeated content keyword capped",
			note:  domain.Note{Content: "cache cache cache cache cache"},
			query: "cache",
			factors: map[domain.ScoreFactor]float64{
				domain.FactorContentPhrase:  50,
				domain.FactorContentKeyword: 8,
			},
			total: 58,
		},
		{
			name:  "tag match only",
			note:  domain.Note{Title: "Tips", Tags: []string{"golang"}},
			query: "golang",
			factors: map[domain.ScoreFactor]float64{
				domain.FactorTags: 10,
			},
			total: 10,
		},
		{
			name:  "recency halfway through the window",
			note:  domain.Note{Title: "x", UpdatedAt: fixedNow.Add(-84 * time.Hour)},
			query: "unrelated",
			in:    ScoreInputs{Now: fixedNow},
			factors: map[domain.ScoreFactor]float64{
				domain.FactorRecency: 5,
			},
			total: 5,
		},
		{
			name:  "future timestamp counts as fresh",
			note:  domain.Note{Title: "x", UpdatedAt: fixedNow.Add(time.Hour)},
			query: "unrelated",
			in:    ScoreInputs{Now: fixedNow},
			factors: map[domain.ScoreFactor]float64{
				domain.FactorRecency: 10,
			},
			total: 10,
		},
		{
			name:  "substantial length",
			note:  domain.Note{Content: words("lorem", 200)},
			query: "unrelated",
			factors: map[domain.ScoreFactor]float64{
				domain.FactorLength: 5,
			},
			total: 5,
		},
		{
			name:  "very long note never scores negative",
			note:  domain.Note{Content: words("lorem", 5001)},
			query: "unrelated",
			factors: map[domain.ScoreFactor]float64{
				domain.FactorLength: -5,
			},
			total: 0,
		},
		{
			name:  "feedback from the same query",
			note:  domain.Note{Title: "x"},
			query: "Unrelated",
			in: ScoreInputs{Rankings: []domain.RankingRecord{
				{Query: "unrelated", Score: 200},
			}},
			factors: map[domain.ScoreFactor]float64{
				domain.FactorFeedback: 20,
			},
			total: 20,
		},
		{
			name:  "semantic contribution",
			note:  domain.Note{Title: "x"},
			query: "unrelated",
			in:    ScoreInputs{Semantic: 0.5},
			factors: map[domain.ScoreFactor]float64{
				domain.FactorSemantic: 25,
			},
			total: 25,
		},
		{
			name:    "nothing matches",
			note:    domain.Note{Title: "alpha", Content: "beta"},
			query:   "gamma",
			factors: map[domain.ScoreFactor]float64{},
			total:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.note, tt.query, tt.in)
			assert.InDelta(t, tt.total, got.Total, 1e-9)
			require.Len(t, got.Factors, len(tt.factors))
			for f, v := range tt.factors {
				assert.InDelta(t, v, got.Factors[f], 1e-9, "factor %s", f)
			}
			assert.Len(t, got.Reasons, len(tt.factors))
		})
	}
}

func TestTextScorer_TitlePhraseOutranksBodyKeyword(t *testing.T) {
	scorer := NewTextScorer()
	titled := domain.Note{Title: "Project Roadmap", Content: "Milestones for the next two quarters."}
	mention := domain.Note{Title: "Weekly sync", Content: "We briefly looked at the roadmap."}

	a := scorer.Score(titled, "project roadmap", ScoreInputs{})
	b := scorer.Score(mention, "project roadmap", ScoreInputs{})

	assert.InDelta(t, 100, a.Factors[domain.FactorTitlePhrase], 1e-9)
	assert.NotContains(t, b.Factors, domain.FactorTitlePhrase)
	assert.NotContains(t, b.Factors, domain.FactorContentPhrase)
	assert.Greater(t, b.Total, 0.0)
	assert.Greater(t, a.Total, b.Total)
}

func TestTextScorer_FeedbackFallsBackToSharedKeyword(t *testing.T) {
	scorer := NewTextScorer()
	recs := []domain.RankingRecord{
		{Query: "database tuning", Score: 40},
		{Query: "sqlite indexes", Score: 90},
	}

	got := scorer.Score(domain.Note{Title: "x"}, "sqlite", ScoreInputs{Rankings: recs})

	assert.InDelta(t, 9.0, got.Factors[domain.FactorFeedback], 1e-9)
}

func TestTextScorer_ReasonsStrongestFirstAndCapped(t *testing.T) {
	scorer := NewTextScorer()
	note := domain.Note{
		Title:     "Kubernetes operators",
		Content:   "Writing kubernetes operators. " + words("lorem", 150),
		Tags:      []string{"kubernetes"},
		UpdatedAt: fixedNow,
	}

	got := scorer.Score(note, "kubernetes operators", ScoreInputs{Now: fixedNow, Semantic: 0.9})

	require.Len(t, got.Reasons, 5)
	assert.Equal(t, "exact phrase in title", got.Reasons[0])
	assert.Equal(t, "exact phrase in content", got.Reasons[1])
	assert.Equal(t, "semantic similarity 0.90", got.Reasons[2])
	assert.Equal(t, "2 keyword(s) in title", got.Reasons[3])
}

func TestRecencyBoost(t *testing.T) {
	assert.Equal(t, 0.0, recencyBoost(time.Time{}, fixedNow))
	assert.Equal(t, 0.0, recencyBoost(fixedNow.Add(-8*24*time.Hour), fixedNow))
	assert.InDelta(t, 10.0, recencyBoost(fixedNow, fixedNow), 1e-9)
}

func TestSortResults(t *testing.T) {
	older := fixedNow.Add(-time.Hour)
	results := func() []domain.SearchResult {
		return []domain.SearchResult{
			{Note: domain.Note{ID: "a", Title: "beta", CreatedAt: older, UpdatedAt: fixedNow}, Score: 10},
			{Note: domain.Note{ID: "b", Title: "Alpha", CreatedAt: fixedNow, UpdatedAt: older}, Score: 30},
			{Note: domain.Note{ID: "c", Title: "gamma", CreatedAt: older, UpdatedAt: older}, Score: 30},
		}
	}
	ids := func(rs []domain.SearchResult) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Note.ID
		}
		return out
	}

	tests := []struct {
		key  domain.SortKey
		want []string
	}{
		{domain.SortByRelevance, []string{"b", "c", "a"}},
		{domain.SortByUpdated, []string{"a", "b", "c"}},
		{domain.SortByCreated, []string{"b", "c", "a"}},
		{domain.SortByTitle, []string{"b", "a", "c"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			rs := results()
			SortResults(rs, tt.key)
			assert.Equal(t, tt.want, ids(rs))
		})
	}
}
