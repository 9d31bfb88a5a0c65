package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/recall/internal/core/domain"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	defaultThreshold   = 0.7
)

// SearchInput is the input schema for the search_notes tool.
type SearchInput struct {
	Query string   `json:"query" jsonschema:"the search query"`
	Limit int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10, max 50)"`
	Tags  []string `json:"tags,omitempty" jsonschema:"only return notes carrying all of these tags"`
	Sort  string   `json:"sort,omitempty" jsonschema:"relevance (default), updated, created or title"`
}

// SearchOutput is the output schema for the search_notes tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	NoteID    string   `json:"note_id"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reasons,omitempty"`
	Highlight string   `json:"highlight,omitempty"`
	Heading   string   `json:"heading,omitempty"`
}

// AskInput is the input schema for the ask_notes tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from the user's notes"`
	MaxTokens int    `json:"max_tokens,omitempty" jsonschema:"completion token ceiling"`
}

// AskOutput is the output schema for the ask_notes tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	Source    string           `json:"source"`
	Citations []CitationOutput `json:"citations,omitempty"`
}

// CitationOutput identifies a note passage an answer drew on.
type CitationOutput struct {
	NoteID  string `json:"note_id"`
	ChunkID string `json:"chunk_id"`
	Title   string `json:"title"`
	Heading string `json:"heading,omitempty"`
}

// DuplicatesInput is the input schema for the find_duplicates tool.
type DuplicatesInput struct {
	NoteID    string  `json:"note_id" jsonschema:"the note to compare against the rest of the corpus"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum similarity between 0 and 1 (default 0.7)"`
}

// DuplicatesOutput is the output schema for the find_duplicates tool.
type DuplicatesOutput struct {
	Matches []DuplicateOutput `json:"matches"`
	Count   int               `json:"count"`
}

// DuplicateOutput is one candidate duplicate.
type DuplicateOutput struct {
	NoteID string  `json:"note_id"`
	Title  string  `json:"title,omitempty"`
	Score  float64 `json:"score"`
	Type   string  `json:"type"`
	Action string  `json:"action"`
}

// registerTools registers all tool handlers with the MCP server.
// Tools whose port is missing are not advertised.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search the user's notes by keywords and meaning, best matches first",
	}, s.handleSearch)

	if s.ports.Answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask_notes",
			Description: "Answer a question using only the user's notes, with citations",
		}, s.handleAsk)
	}

	if s.ports.Duplicates != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "find_duplicates",
			Description: "Find notes that duplicate or closely overlap a given note",
		}, s.handleFindDuplicates)
	}
}

// handleSearch handles the search_notes tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	sortBy := domain.SortKey(input.Sort)
	if sortBy != "" && !sortBy.IsValid() {
		return nil, SearchOutput{}, fmt.Errorf("unknown sort %q", input.Sort)
	}

	opts := domain.SearchOptions{
		OwnerID: s.ports.owner(),
		Limit:   limit,
		SortBy:  sortBy,
		Tags:    input.Tags,
	}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		r := &results[i]
		out := SearchResultOutput{
			NoteID:    r.Note.ID,
			Title:     r.Note.Title,
			Tags:      r.Note.Tags,
			Score:     r.Score,
			Reasons:   r.Reasons,
			Highlight: r.Highlight,
		}
		if r.Chunk != nil {
			out.Heading = r.Chunk.Heading
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

// handleAsk handles the ask_notes tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Answer.Ask(ctx, input.Question, domain.AskOptions{
		OwnerID:   s.ports.owner(),
		MaxTokens: input.MaxTokens,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer: answer.Text,
		Source: string(answer.Source),
	}
	for _, c := range answer.Citations {
		output.Citations = append(output.Citations, CitationOutput{
			NoteID:  c.NoteID,
			ChunkID: c.ChunkID,
			Title:   c.Title,
			Heading: c.Heading,
		})
	}

	return nil, output, nil
}

// handleFindDuplicates handles the find_duplicates tool invocation.
func (s *Server) handleFindDuplicates(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DuplicatesInput,
) (*mcp.CallToolResult, DuplicatesOutput, error) {
	threshold := input.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if threshold > 1 {
		return nil, DuplicatesOutput{}, fmt.Errorf("threshold must be between 0 and 1, got %v", threshold)
	}

	matches, err := s.ports.Duplicates.FindDuplicates(ctx, input.NoteID, threshold)
	if err != nil {
		return nil, DuplicatesOutput{}, err
	}

	output := DuplicatesOutput{
		Matches: make([]DuplicateOutput, len(matches)),
		Count:   len(matches),
	}
	for i, m := range matches {
		other := m.NoteB
		if other == input.NoteID {
			other = m.NoteA
		}
		output.Matches[i] = DuplicateOutput{
			NoteID: other,
			Title:  s.noteTitle(ctx, other),
			Score:  m.Score,
			Type:   string(m.Type),
			Action: string(m.Action),
		}
	}

	return nil, output, nil
}

// noteTitle looks up a title for display; failures leave it blank.
func (s *Server) noteTitle(ctx context.Context, noteID string) string {
	if s.ports.Notes == nil {
		return ""
	}
	note, err := s.ports.Notes.Get(ctx, noteID)
	if err != nil || note == nil {
		return ""
	}
	return note.Title
}
