package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{"héllo", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, EstimateTokens(tt.input), "input %q", tt.input)
	}
}

func TestEstimateTokens_Subadditive(t *testing.T) {
	parts := []string{"", "a", "abc", "abcd", "abcde", "hello world", strings.Repeat("y", 37)}
	for _, a := range parts {
		for _, b := range parts {
			assert.LessOrEqual(t, EstimateTokens(a+b), EstimateTokens(a)+EstimateTokens(b))
		}
	}
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"drops stopwords and short terms", "what is the project roadmap for Q1", []string{"project", "roadmap"}},
		{"deduplicates case-insensitively", "Roadmap roadmap ROADMAP", []string{"roadmap"}},
		{"strips punctuation", "roadmap, planning!", []string{"roadmap", "planning"}},
		{"empty", "", nil},
		{"only stopwords", "the and of", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Keywords(tt.query))
		})
	}
}

func TestKeywords_CappedAtTen(t *testing.T) {
	q := "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima"
	kw := Keywords(q)
	assert.Len(t, kw, MaxKeywords)
	assert.Equal(t, "alpha", kw[0])
	assert.Equal(t, "juliet", kw[9])
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"q1", "planning", "meeting"}, Tokenize("Q1 Planning-Meeting!"))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestCountWord(t *testing.T) {
	assert.Equal(t, 2, CountWord("Roadmap and roadmaps and ROADMAP", "roadmap"))
	assert.Equal(t, 0, CountWord("", "roadmap"))
}

func TestStripMarkdown(t *testing.T) {
	in := "# Title\n\n- **bold** item\n> quote\n[link text](http://x.y) and `code`\n```go\nfmt.Println()\n```"
	out := StripMarkdown(in)

	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "](")
	assert.NotContains(t, out, "```")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold item")
	assert.Contains(t, out, "link text")
	assert.Contains(t, out, "quote")
	assert.Contains(t, out, "fmt.Println()")
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First one. Second one! Third? v1.2 stays\nLast line")
	assert.Equal(t, []string{"First one.", "Second one!", "Third?", "v1.2 stays", "Last line"}, got)
	assert.Empty(t, SplitSentences("   "))
}

func TestSnippet(t *testing.T) {
	short := "a short note"
	assert.Equal(t, short, Snippet(short, []string{"note"}, 100))

	long := strings.Repeat("filler ", 50) + "the roadmap lives here " + strings.Repeat("tail ", 50)
	snip := Snippet(long, []string{"roadmap"}, 60)
	assert.Contains(t, snip, "roadmap")
	assert.True(t, strings.HasPrefix(snip, "..."))
	assert.True(t, strings.HasSuffix(snip, "..."))

	assert.Equal(t, "", Snippet("", []string{"x"}, 10))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\tb   c "))
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "meeting notes", TitleFromPath("/notes/meeting_notes.md"))
	assert.Equal(t, "q3 plan", TitleFromPath("q3-plan.txt"))
	assert.Equal(t, "README", TitleFromPath("README"))
}
