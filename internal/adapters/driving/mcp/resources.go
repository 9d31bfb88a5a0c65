package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/recall/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for recall resources.
	uriScheme = "recall://"

	// noteListLimit caps the recall://notes listing.
	noteListLimit = 200
)

// registerResources registers note resources when a note service is available.
func (s *Server) registerResources() {
	if s.ports.Notes == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "notes",
		Name:        "notes",
		Description: "The user's most recently updated notes",
		MIMEType:    "application/json",
	}, s.handleNotesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "notes/{noteId}",
		Name:        "note-content",
		Description: "Markdown content of a specific note",
		MIMEType:    "text/markdown",
	}, s.handleNoteContentResource)
}

// handleNotesResource lists notes without their bodies.
func (s *Server) handleNotesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	notes, err := s.ports.Notes.List(ctx, domain.NoteFilter{
		OwnerID: s.ports.owner(),
		Limit:   noteListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	type noteInfo struct {
		ID        string   `json:"id"`
		Title     string   `json:"title"`
		Tags      []string `json:"tags,omitempty"`
		UpdatedAt string   `json:"updated_at"`
		URI       string   `json:"uri"`
	}

	infos := make([]noteInfo, len(notes))
	for i := range notes {
		infos[i] = noteInfo{
			ID:        notes[i].ID,
			Title:     notes[i].Title,
			Tags:      notes[i].Tags,
			UpdatedAt: notes[i].UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			URI:       uriScheme + "notes/" + notes[i].ID,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling notes: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleNoteContentResource returns a note as markdown with its title as heading.
func (s *Server) handleNoteContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	noteID := extractNoteID(req.Params.URI)
	if noteID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	note, err := s.ports.Notes.Get(ctx, noteID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && (note == nil || note.Deleted)) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}

	text := note.Content
	if note.Title != "" {
		text = "# " + note.Title + "\n\n" + text
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     text,
		}},
	}, nil
}

// extractNoteID extracts the note ID from a URI like recall://notes/{noteId}.
func extractNoteID(uri string) string {
	const prefix = uriScheme + "notes/"

	id, ok := strings.CutPrefix(uri, prefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
