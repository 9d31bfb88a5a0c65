package services

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/textutil"
)

// Gates for the semantic measure.
const (
	semanticContentGate = 0.3
	semanticTitleGate   = 0.5
)

// Content similarity blend.
const (
	diceShare    = 0.6
	jaccardShare = 0.4
)

// DuplicateDetector scores note pairs with title, content and semantic
// measures. It is stateless and safe for concurrent use.
type DuplicateDetector struct{}

// NewDuplicateDetector creates a detector.
func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{}
}

// Compare computes all measures for a pair. The result is symmetric in
// everything but the NoteA/NoteB order.
func (d *DuplicateDetector) Compare(a, b domain.NoteWithChunks) domain.DuplicateMatch {
	m := domain.DuplicateMatch{
		NoteA:   a.Note.ID,
		NoteB:   b.Note.ID,
		Title:   TitleSimilarity(a.Note.Title, b.Note.Title),
		Content: ContentSimilarity(a.Note.Content, b.Note.Content),
	}
	if m.Content >= semanticContentGate || m.Title >= semanticTitleGate {
		m.Semantic = ChunkSetSimilarity(a.Chunks, b.Chunks)
	}

	m.Score, m.Type = m.Title, domain.SimilarityTitle
	for _, c := range []struct {
		score float64
		typ   domain.SimilarityType
	}{
		{m.Content, domain.SimilarityContent},
		{m.Semantic, domain.SimilaritySemantic},
	} {
		if c.score > m.Score || (c.score == m.Score && c.typ.Precedence() > m.Type.Precedence()) {
			m.Score, m.Type = c.score, c.typ
		}
	}
	m.Action = domain.ClassifyScore(m.Score)
	return m
}

// Detect compares a pair and reports whether it meets the threshold.
func (d *DuplicateDetector) Detect(a, b domain.NoteWithChunks, threshold float64) (domain.DuplicateMatch, bool) {
	m := d.Compare(a, b)
	return m, m.Score >= threshold && m.Score > 0
}

// FindForNote compares a note with candidates and returns matches at or
// above the threshold, strongest first. The note itself is skipped.
func (d *DuplicateDetector) FindForNote(
	target domain.NoteWithChunks, candidates []domain.NoteWithChunks, threshold float64,
) []domain.DuplicateMatch {
	var matches []domain.DuplicateMatch
	for _, c := range candidates {
		if c.Note.ID == target.Note.ID {
			continue
		}
		if m, ok := d.Detect(target, c, threshold); ok {
			matches = append(matches, m)
		}
	}
	sortMatches(matches)
	return matches
}

// ScanCorpus compares every unordered pair once. progress, if set, is
// called after each row with the number of notes done and the total.
// On cancellation it returns the matches found so far with the context error.
func (d *DuplicateDetector) ScanCorpus(
	ctx context.Context,
	notes []domain.NoteWithChunks,
	threshold float64,
	progress func(done, total int),
) ([]domain.DuplicateMatch, error) {
	var matches []domain.DuplicateMatch
	for i := range notes {
		if err := ctx.Err(); err != nil {
			sortMatches(matches)
			return matches, err
		}
		for j := i + 1; j < len(notes); j++ {
			if notes[i].Note.ID == notes[j].Note.ID {
				continue
			}
			if m, ok := d.Detect(notes[i], notes[j], threshold); ok {
				matches = append(matches, m)
			}
		}
		if progress != nil {
			progress(i+1, len(notes))
		}
	}
	sortMatches(matches)
	return matches, nil
}

func sortMatches(matches []domain.DuplicateMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return domain.PairKey(matches[i].NoteA, matches[i].NoteB) < domain.PairKey(matches[j].NoteA, matches[j].NoteB)
	})
}

// TitleSimilarity is the Dice coefficient over character bigrams of the
// lower-cased titles with whitespace removed.
func TitleSimilarity(a, b string) float64 {
	return DiceCoefficient(stripSpace(strings.ToLower(a)), stripSpace(strings.ToLower(b)))
}

// ContentSimilarity blends bigram Dice and token Jaccard over the
// markdown-stripped, lower-cased content.
func ContentSimilarity(a, b string) float64 {
	na := normalizeContent(a)
	nb := normalizeContent(b)
	if na == "" || nb == "" {
		return 0
	}
	return diceShare*DiceCoefficient(na, nb) +
		jaccardShare*JaccardSimilarity(textutil.TokenSet(na), textutil.TokenSet(nb))
}

// ChunkSetSimilarity is the best cosine across comparable chunk pairs,
// clamped to [0, 1].
func ChunkSetSimilarity(a, b []domain.Chunk) float64 {
	best := 0.0
	for i := range a {
		if !a[i].HasEmbedding() {
			continue
		}
		for j := range b {
			if !b[j].HasEmbedding() || a[i].EmbeddingModel != b[j].EmbeddingModel {
				continue
			}
			if sim := clamp01(CosineSimilarity(a[i].Embedding, b[j].Embedding)); sim > best {
				best = sim
			}
		}
	}
	return best
}

// DiceCoefficient is the Sørensen–Dice coefficient over character
// bigram multisets. Identical non-empty strings score 1; an empty string
// scores 0.
func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	counts := make(map[string]int, len(ba))
	for _, g := range ba {
		counts[g]++
	}
	shared := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ba)+len(bb))
}

// JaccardSimilarity is |A∩B| / |A∪B|; 0 when both sets are empty.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func bigrams(s string) []string {
	r := []rune(s)
	if len(r) < 2 {
		return nil
	}
	out := make([]string, 0, len(r)-1)
	for i := 0; i+1 < len(r); i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func normalizeContent(s string) string {
	return textutil.NormalizeWhitespace(strings.ToLower(textutil.StripMarkdown(s)))
}
