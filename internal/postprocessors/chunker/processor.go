// Package chunker provides a markdown-aware chunking processor.
//
// Text is split on blank lines and headings. Paragraphs accumulate into a
// chunk until the estimated token count would pass the budget. Paragraphs too
// large for one chunk are split at sentence boundaries, and the tail words of
// a chunk closed mid-paragraph are repeated at the start of the next one.
package chunker

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/textutil"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultMaxTokens is the default estimated-token budget per chunk.
const DefaultMaxTokens = 400

// DefaultOverlapWords is the default number of words carried across a split.
const DefaultOverlapWords = 30

// DefaultMinChars is the default minimum chunk length.
const DefaultMinChars = 20

// chunkNamespace scopes name-based chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c3f0e-8a53-4d7b-9a7e-2b1d6c0e4a10")

var headingRe = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.*?)\s*#*\s*$`)

// Processor splits note content into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	maxTokens    int
	overlapWords int
	minChars     int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxTokens sets the estimated-token budget per chunk.
func WithMaxTokens(tokens int) Option {
	return func(p *Processor) {
		if tokens > 0 {
			p.maxTokens = tokens
		}
	}
}

// WithOverlapWords sets the number of words repeated after a mid-paragraph split.
func WithOverlapWords(words int) Option {
	return func(p *Processor) {
		if words >= 0 {
			p.overlapWords = words
		}
	}
}

// WithMinChars sets the length floor below which chunks are dropped.
func WithMinChars(chars int) Option {
	return func(p *Processor) {
		if chars >= 0 {
			p.minChars = chars
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxTokens:    DefaultMaxTokens,
		overlapWords: DefaultOverlapWords,
		minChars:     DefaultMinChars,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room for new text in every chunk
	if p.overlapWords >= p.maxTokens/2 {
		p.overlapWords = p.maxTokens / 8
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the note content into chunks.
// Input chunks are ignored; this processor creates new chunks from note content.
func (p *Processor) Process(ctx context.Context, note *domain.Note, _ []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if note == nil || strings.TrimSpace(note.Content) == "" {
		return nil, nil
	}
	return p.Chunk(note.ID, note.Content), nil
}

// Chunk splits text into an ordered chunk sequence. Identical input always
// yields identical chunks, IDs included.
func (p *Processor) Chunk(noteID, text string) []domain.Chunk {
	b := &builder{p: p, noteID: noteID}

	for _, blk := range splitBlocks(text) {
		if blk.heading {
			b.flush()
			b.heading = blk.text
			continue
		}
		b.addParagraph(blk.text)
	}
	b.flush()

	return b.chunks
}

// block is a heading or a paragraph of the source text.
type block struct {
	text    string
	heading bool
}

// splitBlocks breaks text into headings and blank-line separated paragraphs.
// Fenced code is kept whole and never parsed for headings.
func splitBlocks(text string) []block {
	var blocks []block
	var para []string
	inFence := false

	flush := func() {
		if s := strings.TrimSpace(strings.Join(para, "\n")); s != "" {
			blocks = append(blocks, block{text: s})
		}
		para = para[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			para = append(para, line)
			continue
		}
		if inFence {
			para = append(para, line)
			continue
		}
		if trimmed == "" {
			flush()
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			blocks = append(blocks, block{text: m[2], heading: true})
			continue
		}
		para = append(para, line)
	}
	flush()

	return blocks
}

// builder accumulates text into chunks for one note.
type builder struct {
	p       *Processor
	noteID  string
	heading string
	cur     string
	chunks  []domain.Chunk
}

func (b *builder) fits(s string) bool {
	return textutil.EstimateTokens(s) <= b.p.maxTokens
}

func (b *builder) addParagraph(para string) {
	joined := para
	if b.cur != "" {
		joined = b.cur + "\n\n" + para
	}
	if b.fits(joined) {
		b.cur = joined
		return
	}
	if b.fits(para) {
		b.flush()
		b.cur = para
		return
	}

	// The paragraph alone overflows: split at sentence boundaries.
	first := true
	for _, unit := range b.units(para) {
		sep := " "
		if first {
			sep = "\n\n"
			first = false
		}
		if b.cur == "" {
			b.cur = unit
			continue
		}
		if b.fits(b.cur + sep + unit) {
			b.cur += sep + unit
			continue
		}
		tail := b.overlap(b.cur)
		b.flush()
		if tail != "" && b.fits(tail+" "+unit) {
			b.cur = tail + " " + unit
		} else {
			b.cur = unit
		}
	}
}

// units splits a paragraph into sentences, breaking sentences that exceed
// the budget into word windows.
func (b *builder) units(para string) []string {
	var out []string
	for _, s := range textutil.SplitSentences(para) {
		if b.fits(s) {
			out = append(out, s)
			continue
		}
		out = append(out, b.windows(s)...)
	}
	return out
}

// windows packs the words of s into runs that each fit half the budget,
// leaving room for carried overlap.
func (b *builder) windows(s string) []string {
	limit := max(b.p.maxTokens/2, 1)
	maxChars := limit * textutil.CharsPerToken

	var out []string
	var cur []string
	for _, w := range strings.Fields(s) {
		// A single word longer than the window is cut by characters.
		for len([]rune(w)) > maxChars {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur = cur[:0]
			}
			r := []rune(w)
			out = append(out, string(r[:maxChars]))
			w = string(r[maxChars:])
		}
		next := append(cur, w) //nolint:gocritic // cur is reset below when flushed
		if textutil.EstimateTokens(strings.Join(next, " ")) > limit && len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = []string{w}
			continue
		}
		cur = next
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// overlap returns the last overlapWords words of a closed chunk.
func (b *builder) overlap(closed string) string {
	if b.p.overlapWords == 0 {
		return ""
	}
	words := strings.Fields(closed)
	if len(words) <= b.p.overlapWords {
		return ""
	}
	return strings.Join(words[len(words)-b.p.overlapWords:], " ")
}

func (b *builder) flush() {
	content := strings.TrimSpace(b.cur)
	b.cur = ""
	if len([]rune(content)) < b.p.minChars || content == "" {
		return
	}

	position := len(b.chunks)
	b.chunks = append(b.chunks, domain.Chunk{
		ID:       chunkID(b.noteID, position, content),
		NoteID:   b.noteID,
		Position: position,
		Heading:  b.heading,
		Content:  content,
	})
}

// chunkID derives a name-based UUID from the note, position and content.
func chunkID(noteID string, position int, content string) string {
	name := noteID + "\x00" + strconv.Itoa(position) + "\x00" + content
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
