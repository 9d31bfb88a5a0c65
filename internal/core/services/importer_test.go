package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/connectors/filesystem"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/normalisers"
)

func newImportEnv(t *testing.T) (*testEnv, *ImportService) {
	t.Helper()
	env := newTestEnv(t, nil)
	return env, NewImportService(env.noteSvc, normalisers.Default(), filesystem.Open)
}

func writeNoteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func resultsByPath(results []domain.ImportResult) map[string]domain.ImportResult {
	m := make(map[string]domain.ImportResult, len(results))
	for _, r := range results {
		m[r.Path] = r
	}
	return m
}

func TestImportService_ImportDirectory(t *testing.T) {
	env, svc := newImportEnv(t)
	ctx := context.Background()
	dir := t.TempDir()

	md := filepath.Join(dir, "trip.md")
	txt := filepath.Join(dir, "sub", "packing_list.txt")
	writeNoteFile(t, md, "# Japan Trip\n\n## Tokyo\n\nShibuya crossing at night, then Asakusa and the Senso-ji temple in the morning.")
	writeNoteFile(t, txt, "socks\nboots")
	writeNoteFile(t, filepath.Join(dir, "photo.png"), "binary")
	writeNoteFile(t, filepath.Join(dir, ".draft.md"), "# Draft")
	writeNoteFile(t, filepath.Join(dir, "empty.md"), "   ")

	results, err := svc.Import(ctx, dir, driving.ImportOptions{Tags: []string{"Imported"}})
	require.NoError(t, err)
	require.Len(t, results, 3)

	byPath := resultsByPath(results)
	assert.Equal(t, domain.ImportCreated, byPath[md].Action)
	assert.Equal(t, "Japan Trip", byPath[md].Title)
	assert.Equal(t, domain.ImportCreated, byPath[txt].Action)
	assert.Equal(t, domain.ImportSkipped, byPath[filepath.Join(dir, "empty.md")].Action)

	note, err := env.noteSvc.Get(ctx, byPath[md].NoteID)
	require.NoError(t, err)
	assert.Equal(t, []string{"imported"}, note.Tags)
	assert.Equal(t, domain.DefaultOwnerID, note.OwnerID)

	chunks, err := env.notes.GetChunks(ctx, note.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)

	notes, err := env.noteSvc.List(ctx, domain.NoteFilter{})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestImportService_ReimportIsIdempotent(t *testing.T) {
	env, svc := newImportEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "recipe.md")
	writeNoteFile(t, path, "# Pancakes\n\nflour, milk, eggs")

	first, err := svc.Import(ctx, dir, driving.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, domain.ImportCreated, first[0].Action)

	again, err := svc.Import(ctx, dir, driving.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, domain.ImportUnchanged, again[0].Action)
	assert.Equal(t, first[0].NoteID, again[0].NoteID)

	writeNoteFile(t, path, "# Pancakes\n\nflour, milk, eggs, butter")
	updated, err := svc.Import(ctx, path, driving.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, domain.ImportUpdated, updated[0].Action)
	assert.Equal(t, first[0].NoteID, updated[0].NoteID)

	note, err := env.noteSvc.Get(ctx, first[0].NoteID)
	require.NoError(t, err)
	assert.Contains(t, note.Content, "butter")

	notes, err := env.noteSvc.List(ctx, domain.NoteFilter{})
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestImportService_MatchesExistingNoteByTitle(t *testing.T) {
	env, svc := newImportEnv(t)
	ctx := context.Background()
	existing := env.create(t, "Reading List", "Dune", "books")

	dir := t.TempDir()
	writeNoteFile(t, filepath.Join(dir, "reading-list.txt"), "Dune\nHyperion")

	results, err := svc.Import(ctx, dir, driving.ImportOptions{Tags: []string{"import"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ImportUpdated, results[0].Action)
	assert.Equal(t, existing.ID, results[0].NoteID)

	note, err := env.noteSvc.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune\nHyperion", note.Content)
	assert.Equal(t, []string{"books", "import"}, note.Tags)
}

func TestImportService_DryRun(t *testing.T) {
	env, svc := newImportEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeNoteFile(t, filepath.Join(dir, "a.md"), "# A\n\nbody")

	results, err := svc.Import(ctx, dir, driving.ImportOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ImportCreated, results[0].Action)
	assert.Empty(t, results[0].NoteID)

	notes, err := env.noteSvc.List(ctx, domain.NoteFilter{})
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestImportService_FailuresAreReported(t *testing.T) {
	_, svc := newImportEnv(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.md")
	writeNoteFile(t, bad, "+++\ntitle = \n+++\nbody")
	writeNoteFile(t, filepath.Join(dir, "good.md"), "# Good\n\nbody")

	results, err := svc.Import(context.Background(), dir, driving.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPath := resultsByPath(results)
	assert.Equal(t, domain.ImportFailed, byPath[bad].Action)
	assert.Contains(t, byPath[bad].Error, "front matter")
	assert.Equal(t, domain.ImportCreated, byPath[filepath.Join(dir, "good.md")].Action)

	summary := domain.Summarize(results)
	assert.Equal(t, 1, summary[domain.ImportFailed])
	assert.Equal(t, 1, summary[domain.ImportCreated])
}

func TestImportService_SingleFileErrors(t *testing.T) {
	_, svc := newImportEnv(t)
	dir := t.TempDir()
	png := filepath.Join(dir, "photo.png")
	writeNoteFile(t, png, "x")

	_, err := svc.Import(context.Background(), png, driving.ImportOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Import(context.Background(), filepath.Join(dir, "missing.md"), driving.ImportOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImportService_OwnerScoping(t *testing.T) {
	env, svc := newImportEnv(t)
	svc.SetDefaultOwner("bob")
	dir := t.TempDir()
	writeNoteFile(t, filepath.Join(dir, "a.md"), "# A\n\nbody")

	results, err := svc.Import(context.Background(), dir, driving.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	note, err := env.noteSvc.Get(context.Background(), results[0].NoteID)
	require.NoError(t, err)
	assert.Equal(t, "bob", note.OwnerID)
}

// chanSource walks a real directory and reports changes pushed by the test.
type chanSource struct {
	*filesystem.Source
	changes chan domain.FileChange
}

func (c *chanSource) Watch(context.Context) (<-chan domain.FileChange, error) {
	return c.changes, nil
}

func TestImportService_Watch(t *testing.T) {
	env, _ := newImportEnv(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.md")
	writeNoteFile(t, first, "# First\n\nbody")

	src := &chanSource{Source: filesystem.New(dir), changes: make(chan domain.FileChange)}
	svc := NewImportService(env.noteSvc, normalisers.Default(), func(string) (driven.FileSource, error) {
		return src, nil
	})

	reports := make(chan domain.ImportResult, 10)
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		done <- svc.Watch(ctx, dir, driving.ImportOptions{}, func(r domain.ImportResult) {
			reports <- r
		})
	}()

	next := func() domain.ImportResult {
		select {
		case r := <-reports:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no report")
			return domain.ImportResult{}
		}
	}

	initial := next()
	assert.Equal(t, domain.ImportCreated, initial.Action)

	second := filepath.Join(dir, "second.md")
	writeNoteFile(t, second, "# Second\n\nbody")
	src.changes <- domain.FileChange{Path: second, Type: domain.FileWritten}
	created := next()
	assert.Equal(t, domain.ImportCreated, created.Action)
	assert.Equal(t, "Second", created.Title)

	src.changes <- domain.FileChange{Path: filepath.Join(dir, "ignored.png"), Type: domain.FileWritten}
	src.changes <- domain.FileChange{Path: filepath.Join(dir, "unknown.md"), Type: domain.FileRemoved}

	src.changes <- domain.FileChange{Path: first, Type: domain.FileRemoved}
	removed := next()
	assert.Equal(t, domain.ImportDeleted, removed.Action)
	assert.Equal(t, initial.NoteID, removed.NoteID)

	_, err := env.noteSvc.Get(context.Background(), initial.NoteID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	close(src.changes)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return")
	}
	assert.Empty(t, reports)
}
