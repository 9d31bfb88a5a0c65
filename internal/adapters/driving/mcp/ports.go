package mcp

import (
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides note search. Required.
	Search driving.SearchService

	// Answer provides grounded answers. Enables ask_notes.
	Answer driving.AnswerService

	// Duplicates provides duplicate detection. Enables find_duplicates.
	Duplicates driving.DuplicateService

	// Notes provides note access. Enables the note resources and
	// adds titles to duplicate matches.
	Notes driving.NoteService

	// OwnerID scopes every request. Defaults to domain.DefaultOwnerID.
	OwnerID string
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

func (p *Ports) owner() string {
	if p.OwnerID == "" {
		return domain.DefaultOwnerID
	}
	return p.OwnerID
}
