package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

func TestNoteImport_PrintsResultsAndSummary(t *testing.T) {
	ts := setupTestServices(t)
	ts.imports.results = []domain.ImportResult{
		{Path: "notes/a.md", NoteID: "n1", Title: "Alpha", Action: domain.ImportCreated},
		{Path: "notes/b.md", NoteID: "n2", Title: "Beta", Action: domain.ImportUnchanged},
		{Path: "notes/c.txt", NoteID: "n3", Title: "Gamma", Action: domain.ImportUpdated, Error: "index note: boom"},
	}

	out, err := executeCommand("note", "import", "notes", "-t", "inbox", "--dry-run")
	require.NoError(t, err)

	assert.Equal(t, "notes", ts.imports.lastPath)
	assert.Equal(t, driving.ImportOptions{
		OwnerID: domain.DefaultOwnerID,
		Tags:    []string{"inbox"},
		DryRun:  true,
	}, ts.imports.lastOpts)

	assert.Contains(t, out, "notes/a.md")
	assert.Contains(t, out, "(Alpha)")
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "index note: boom")
	assert.Contains(t, out, "Created 1, updated 1, unchanged 1, skipped 0, failed 0")
	assert.Contains(t, out, "Dry run")
}

func TestNoteImport_FailuresReturnError(t *testing.T) {
	ts := setupTestServices(t)
	ts.imports.results = []domain.ImportResult{
		{Path: "bad.md", Action: domain.ImportFailed, Error: "parse front matter"},
	}

	out, err := executeCommand("note", "import", "bad.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 files failed to import")
	assert.Contains(t, out, "bad.md: parse front matter")
}

func TestNoteImport_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.imports.results = []domain.ImportResult{
		{Path: "a.md", NoteID: "n1", Title: "Alpha", Action: domain.ImportCreated},
	}

	out, err := executeCommand("note", "import", "a.md", "--json")
	require.NoError(t, err)

	var got []domain.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, ts.imports.results, got)
}

func TestNoteImport_ServiceError(t *testing.T) {
	ts := setupTestServices(t)
	ts.imports.err = errors.New("walk failed")

	_, err := executeCommand("note", "import", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "walk failed")
}

func TestNoteImport_NotConfigured(t *testing.T) {
	SetServices(&Services{})

	_, err := executeCommand("note", "import", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import service not configured")
}

func TestNoteImport_WatchNeedsDirectory(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand("note", "import", t.TempDir()+"/missing", "--watch")
	require.Error(t, err)
}

func TestRunImportWatch_StopsOnCancel(t *testing.T) {
	ts := setupTestServices(t)
	ts.imports.results = []domain.ImportResult{
		{Path: "a.md", NoteID: "n1", Title: "Alpha", Action: domain.ImportCreated},
	}
	importJSON = false
	t.Cleanup(func() { importJSON = false })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	dir := t.TempDir()
	err := runImportWatch(cmd, dir, driving.ImportOptions{OwnerID: "alice"})
	require.NoError(t, err)

	assert.True(t, ts.imports.watched)
	assert.Equal(t, dir, ts.imports.lastPath)
	assert.Equal(t, "alice", ts.imports.lastOpts.OwnerID)
	assert.True(t, ts.jobs.started)
	assert.True(t, ts.jobs.stopped)
	assert.Contains(t, buf.String(), "Watching")
	assert.Contains(t, buf.String(), "(Alpha)")
}
