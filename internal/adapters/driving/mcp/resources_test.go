package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func TestExtractNoteID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid", uri: "recall://notes/n-123", expected: "n-123"},
		{name: "list uri", uri: "recall://notes", expected: ""},
		{name: "nested path", uri: "recall://notes/n-1/chunks", expected: ""},
		{name: "wrong scheme", uri: "file://notes/n-1", expected: ""},
		{name: "empty", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractNoteID(tt.uri))
		})
	}
}

func TestServer_handleNotesResource(t *testing.T) {
	updated := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	notes := &mockNoteService{notes: map[string]domain.Note{
		"n1": {ID: "n1", Title: "Groceries", Tags: []string{"home"}, UpdatedAt: updated},
	}}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Notes: notes})
	require.NoError(t, err)

	result, err := server.handleNotesResource(context.Background(), readRequest("recall://notes"))
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var infos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "Groceries", infos[0]["title"])
	assert.Equal(t, "recall://notes/n1", infos[0]["uri"])
	assert.Equal(t, "2026-03-10T12:00:00Z", infos[0]["updated_at"])

	notes.err = errors.New("db down")
	_, err = server.handleNotesResource(context.Background(), readRequest("recall://notes"))
	assert.Error(t, err)
}

func TestServer_handleNoteContentResource(t *testing.T) {
	notes := &mockNoteService{notes: map[string]domain.Note{
		"n1":   {ID: "n1", Title: "Groceries", Content: "- milk\n- eggs"},
		"gone": {ID: "gone", Title: "Old", Deleted: true},
	}}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Notes: notes})
	require.NoError(t, err)
	ctx := context.Background()

	result, err := server.handleNoteContentResource(ctx, readRequest("recall://notes/n1"))
	require.NoError(t, err)
	assert.Equal(t, "# Groceries\n\n- milk\n- eggs", result.Contents[0].Text)
	assert.Equal(t, "text/markdown", result.Contents[0].MIMEType)

	for _, uri := range []string{"recall://notes/missing", "recall://notes/gone", "recall://notes/"} {
		_, err := server.handleNoteContentResource(ctx, readRequest(uri))
		assert.Error(t, err, uri)
	}
}
