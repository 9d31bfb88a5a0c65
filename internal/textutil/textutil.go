// Package textutil holds the text primitives shared by chunking, scoring and
// duplicate detection: a character-based token estimate, keyword extraction,
// tokenization and markdown stripping.
package textutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CharsPerToken is the character-to-token ratio used by EstimateTokens.
const CharsPerToken = 4

// MaxKeywords caps the number of keywords extracted from a query.
const MaxKeywords = 10

// EstimateTokens returns ceil(runes / CharsPerToken).
// The estimate is subadditive: EstimateTokens(a+b) ≤ EstimateTokens(a) + EstimateTokens(b).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "all": {}, "also": {}, "am": {},
	"an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "because": {},
	"been": {}, "before": {}, "being": {}, "below": {}, "between": {}, "both": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {}, "doing": {}, "down": {},
	"during": {}, "each": {}, "few": {}, "for": {}, "from": {}, "further": {}, "had": {},
	"has": {}, "have": {}, "having": {}, "he": {}, "her": {}, "here": {}, "hers": {}, "him": {},
	"his": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"just": {}, "me": {}, "more": {}, "most": {}, "my": {}, "no": {}, "nor": {}, "not": {},
	"now": {}, "of": {}, "off": {}, "on": {}, "once": {}, "only": {}, "or": {}, "other": {},
	"our": {}, "ours": {}, "out": {}, "over": {}, "own": {}, "same": {}, "she": {}, "should": {},
	"so": {}, "some": {}, "such": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {}, "through": {},
	"to": {}, "too": {}, "under": {}, "until": {}, "up": {}, "very": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {},
	"whom": {}, "why": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {}, "yours": {},
}

// IsStopword reports whether a lower-cased word is a stopword.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// Tokenize lower-cases text and splits it into runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet returns the set of distinct tokens in text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// Keywords extracts up to MaxKeywords distinct, non-stopword terms longer
// than two characters, in query order.
func Keywords(query string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range Tokenize(query) {
		if utf8.RuneCountInString(t) <= 2 || IsStopword(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// CountWord counts whole-word, case-insensitive occurrences of a
// lower-cased word in text.
func CountWord(text, word string) int {
	n := 0
	for _, t := range Tokenize(text) {
		if t == word {
			n++
		}
	}
	return n
}

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	reFence    = regexp.MustCompile("(?m)^\\s*(```|~~~).*$")
	reImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reHeading  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	reQuote    = regexp.MustCompile(`(?m)^\s*>+\s?`)
	reList     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+(?:\[[ xX]\]\s+)?`)
	reRule     = regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	reHTML     = regexp.MustCompile(`<[^>]+>`)
	reEmphasis = regexp.MustCompile("[*_`~]+")
)

// StripMarkdown removes markdown syntax, keeping the readable text.
func StripMarkdown(s string) string {
	s = reFence.ReplaceAllString(s, "")
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reRule.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "")
	s = reQuote.ReplaceAllString(s, "")
	s = reList.ReplaceAllString(s, "")
	s = reHTML.ReplaceAllString(s, "")
	s = reEmphasis.ReplaceAllString(s, "")
	return s
}

// TitleFromPath derives a readable title from a file name: the extension is
// dropped and underscores and dashes become spaces.
func TitleFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return NormalizeWhitespace(name)
}

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace, and at newlines. Terminators stay with their sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()

	return sentences
}

// Snippet returns a window of text around the first occurrence of any term,
// trimmed to roughly maxLen characters.
func Snippet(text string, terms []string, maxLen int) string {
	text = NormalizeWhitespace(text)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}

	lower := []rune(strings.ToLower(text))
	pos := -1
	for _, term := range terms {
		if term == "" {
			continue
		}
		if idx := runeIndex(lower, []rune(strings.ToLower(term))); idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
	}

	start := 0
	if pos > maxLen/3 {
		start = pos - maxLen/3
	}
	end := start + maxLen
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-maxLen)
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
