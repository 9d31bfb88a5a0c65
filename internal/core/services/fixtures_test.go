package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/postprocessors"
)

// testEnv wires the note services over in-memory stores.
type testEnv struct {
	notes      *memory.NoteStore
	rankings   *memory.RankingStore
	reports    *memory.DuplicateStore
	history    *memory.HistoryStore
	jobsStore  *memory.JobStore
	embeddings *Embeddings
	index      *IndexService
	noteSvc    *NoteService
	dupSvc     *DuplicateService
	search     *SearchService
	queue      *mockEnqueuer
	clock      time.Time
}

func newTestEnv(t *testing.T, embedder driven.EmbeddingService) *testEnv {
	t.Helper()

	pipeline, err := postprocessors.NewDefaultPipeline(domain.DefaultAppSettings().Retrieval)
	require.NoError(t, err)

	env := &testEnv{
		notes:     memory.NewNoteStore(),
		rankings:  memory.NewRankingStore(),
		reports:   memory.NewDuplicateStore(),
		history:   memory.NewHistoryStore(),
		jobsStore: memory.NewJobStore(),
		queue:     &mockEnqueuer{},
		clock:     fixedNow,
	}
	if embedder != nil {
		env.embeddings = NewEmbeddings(embedder, nil, 0)
	}
	now := func() time.Time { return env.clock }

	env.index = NewIndexService(env.notes, env.notes, pipeline, env.embeddings)

	env.noteSvc = NewNoteService(env.notes, env.notes, env.rankings, env.index)
	env.noteSvc.SetJobEnqueuer(env.queue)
	env.noteSvc.now = now

	env.dupSvc = NewDuplicateService(env.notes, env.notes, env.reports, env.rankings, env.index,
		domain.DefaultAppSettings().Duplicates)
	env.dupSvc.now = now

	env.search = NewSearchService(env.notes, env.notes, env.rankings, env.history, env.embeddings)
	env.search.SetJobEnqueuer(env.queue)
	env.search.now = now

	return env
}

// advance moves the shared clock forward.
func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

// create adds a note and advances the clock so creation order is stable.
func (e *testEnv) create(t *testing.T, title, content string, tags ...string) *domain.Note {
	t.Helper()
	note, err := e.noteSvc.Create(context.Background(), driving.NoteInput{
		Title:   title,
		Content: content,
		Tags:    tags,
	})
	require.NoError(t, err)
	e.advance(time.Minute)
	return note
}
