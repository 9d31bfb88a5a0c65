package services

import (
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/textutil"
)

// blockOverhead is the minimum token charge on top of a chunk's content,
// covering the source tag and separators.
const blockOverhead = 20

const blockSeparator = "\n\n"

// ContextAssembler packs ranked chunks into a token-bounded prompt context.
type ContextAssembler struct{}

// NewContextAssembler creates an assembler.
func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{}
}

// Assemble appends chunks in the order given until the next one would
// exceed the budget. The estimated token count of the returned text never
// exceeds the budget.
func (a *ContextAssembler) Assemble(chunks []domain.RankedChunk, budget int) domain.AssembledContext {
	var (
		sb        strings.Builder
		citations []domain.Citation
		used      int
	)
	sepCost := textutil.EstimateTokens(blockSeparator)

	for _, rc := range chunks {
		content := strings.TrimSpace(rc.Chunk.Content)
		if content == "" {
			continue
		}
		cite := domain.Citation{
			NoteID:  rc.Chunk.NoteID,
			ChunkID: rc.Chunk.ID,
			Title:   rc.NoteTitle,
			Heading: rc.Chunk.Heading,
		}
		block := "[Source: " + cite.Label() + "]\n" + content

		cost := max(textutil.EstimateTokens(block), textutil.EstimateTokens(content)+blockOverhead)
		if len(citations) > 0 {
			cost += sepCost
		}
		if used+cost > budget {
			break
		}

		if len(citations) > 0 {
			sb.WriteString(blockSeparator)
		}
		sb.WriteString(block)
		citations = append(citations, cite)
		used += cost
	}

	if len(citations) == 0 {
		return domain.AssembledContext{}
	}
	return domain.AssembledContext{
		Text:      sb.String(),
		Citations: citations,
		Tokens:    used,
	}
}
