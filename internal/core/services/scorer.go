package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/textutil"
)

// Scoring weights.
const (
	weightTitlePhrase   = 100.0
	weightContentPhrase = 50.0
	weightTitleKeyword  = 15.0
	weightContentHit    = 5.0
	maxRepeatBonus      = 3
	weightTag           = 10.0
	weightRecency       = 10.0
	recencyWindow       = 7 * 24 * time.Hour
	weightLength        = 5.0
	feedbackShare       = 0.1
	maxReasons          = 5
)

// Length shaping bounds, in words.
const (
	minShapedWords = 100
	maxShapedWords = 1500
	penalisedWords = 5000
)

// ScoreInputs carries the per-note signals the scorer does not derive
// from the note itself.
type ScoreInputs struct {
	// Now anchors the recency factor.
	Now time.Time

	// Rankings are the note's stored feedback records, newest first.
	Rankings []domain.RankingRecord

	// Semantic is the note's best query similarity in [0, 1].
	Semantic float64
}

// TextScorer computes additive relevance scores for notes.
// It is stateless and safe for concurrent use.
type TextScorer struct{}

// NewTextScorer creates a scorer.
func NewTextScorer() *TextScorer {
	return &TextScorer{}
}

// Score rates a note against a query. The total is never negative.
func (s *TextScorer) Score(note domain.Note, query string, in ScoreInputs) domain.ScoreBreakdown {
	factors := make(map[domain.ScoreFactor]float64)
	reasons := make(map[domain.ScoreFactor]string)
	add := func(f domain.ScoreFactor, v float64, reason string) {
		if v == 0 {
			return
		}
		factors[f] = v
		reasons[f] = reason
	}

	phrase := domain.NormalizeQuery(query)
	title := strings.ToLower(textutil.NormalizeWhitespace(note.Title))
	content := strings.ToLower(textutil.NormalizeWhitespace(note.Content))

	if phrase != "" {
		if strings.Contains(title, phrase) {
			add(domain.FactorTitlePhrase, weightTitlePhrase, "exact phrase in title")
		}
		if strings.Contains(content, phrase) {
			add(domain.FactorContentPhrase, weightContentPhrase, "exact phrase in content")
		}
	}

	keywords := textutil.Keywords(query)
	var titleHits, contentHits int
	var contentScore float64
	for _, kw := range keywords {
		if textutil.CountWord(note.Title, kw) > 0 {
			titleHits++
		}
		if n := textutil.CountWord(note.Content, kw); n > 0 {
			contentHits++
			contentScore += weightContentHit + float64(min(n-1, maxRepeatBonus))
		}
	}
	add(domain.FactorTitleKeywords, float64(titleHits)*weightTitleKeyword,
		fmt.Sprintf("%d keyword(s) in title", titleHits))
	add(domain.FactorContentKeyword, contentScore,
		fmt.Sprintf("%d keyword(s) in content", contentHits))

	if matched := matchingTags(note.Tags, keywords); len(matched) > 0 {
		add(domain.FactorTags, float64(len(matched))*weightTag,
			"matching tags: "+strings.Join(matched, ", "))
	}

	add(domain.FactorRecency, recencyBoost(note.UpdatedAt, in.Now), "updated recently")

	switch words := note.WordCount(); {
	case words >= minShapedWords && words <= maxShapedWords:
		add(domain.FactorLength, weightLength, "substantial length")
	case words > penalisedWords:
		add(domain.FactorLength, -weightLength, "very long note")
	}

	if rec, ok := feedbackRecord(in.Rankings, phrase, keywords); ok {
		add(domain.FactorFeedback, rec.Score*feedbackShare,
			fmt.Sprintf("ranked before for %q", rec.Query))
	}

	add(domain.FactorSemantic, SemanticContribution(in.Semantic),
		fmt.Sprintf("semantic similarity %.2f", in.Semantic))

	var total float64
	for _, v := range factors {
		total += v
	}
	return domain.ScoreBreakdown{
		Total:   math.Max(total, 0),
		Factors: factors,
		Reasons: orderedReasons(factors, reasons),
	}
}

// recencyBoost decays linearly from full weight to zero over the window.
// Timestamps in the future count as age zero.
func recencyBoost(updated, now time.Time) float64 {
	if updated.IsZero() || now.IsZero() {
		return 0
	}
	age := now.Sub(updated)
	if age < 0 {
		age = 0
	}
	if age >= recencyWindow {
		return 0
	}
	return weightRecency * (1 - float64(age)/float64(recencyWindow))
}

func matchingTags(tags, keywords []string) []string {
	if len(tags) == 0 || len(keywords) == 0 {
		return nil
	}
	kw := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kw[k] = true
	}
	var matched []string
	for _, t := range tags {
		if kw[strings.ToLower(t)] {
			matched = append(matched, t)
		}
	}
	return matched
}

// feedbackRecord picks the newest record for the same query, else the
// newest record whose query shares a keyword.
func feedbackRecord(recs []domain.RankingRecord, query string, keywords []string) (domain.RankingRecord, bool) {
	for _, r := range recs {
		if domain.NormalizeQuery(r.Query) == query {
			return r, true
		}
	}
	if len(keywords) == 0 {
		return domain.RankingRecord{}, false
	}
	kw := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kw[k] = true
	}
	for _, r := range recs {
		for _, k := range textutil.Keywords(r.Query) {
			if kw[k] {
				return r, true
			}
		}
	}
	return domain.RankingRecord{}, false
}

// factorOrder breaks ties between equally weighted reasons.
var factorOrder = []domain.ScoreFactor{
	domain.FactorTitlePhrase,
	domain.FactorContentPhrase,
	domain.FactorTitleKeywords,
	domain.FactorContentKeyword,
	domain.FactorTags,
	domain.FactorRecency,
	domain.FactorLength,
	domain.FactorFeedback,
	domain.FactorSemantic,
}

func orderedReasons(factors map[domain.ScoreFactor]float64, reasons map[domain.ScoreFactor]string) []string {
	keys := make([]domain.ScoreFactor, 0, len(factors))
	for _, f := range factorOrder {
		if _, ok := factors[f]; ok {
			keys = append(keys, f)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return math.Abs(factors[keys[i]]) > math.Abs(factors[keys[j]])
	})
	if len(keys) > maxReasons {
		keys = keys[:maxReasons]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = reasons[k]
	}
	return out
}

// SortResults orders results by the given key. Ties fall back to score,
// then most recent update, then ID.
func SortResults(results []domain.SearchResult, key domain.SortKey) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch key {
		case domain.SortByUpdated:
			if !a.Note.UpdatedAt.Equal(b.Note.UpdatedAt) {
				return a.Note.UpdatedAt.After(b.Note.UpdatedAt)
			}
		case domain.SortByCreated:
			if !a.Note.CreatedAt.Equal(b.Note.CreatedAt) {
				return a.Note.CreatedAt.After(b.Note.CreatedAt)
			}
		case domain.SortByTitle:
			ta, tb := strings.ToLower(a.Note.Title), strings.ToLower(b.Note.Title)
			if ta != tb {
				return ta < tb
			}
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Note.UpdatedAt.Equal(b.Note.UpdatedAt) {
			return a.Note.UpdatedAt.After(b.Note.UpdatedAt)
		}
		return a.Note.ID < b.Note.ID
	})
}
