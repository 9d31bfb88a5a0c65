package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// stubRetriever returns fixed chunks.
type stubRetriever struct {
	chunks   []domain.RankedChunk
	err      error
	lastOpts domain.SearchOptions
}

func (r *stubRetriever) RetrieveChunks(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.RankedChunk, error) {
	r.lastOpts = opts
	return r.chunks, r.err
}

// stubPrompts serves prompt overrides from a map.
type stubPrompts map[string]string

func (p stubPrompts) Load(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (p stubPrompts) Reload() {}

func answerChunks() []domain.RankedChunk {
	return []domain.RankedChunk{
		rankedChunk("1", "Release process", "Rollback", "Revert the tag and redeploy."),
		rankedChunk("2", "Release process", "", "Tag the commit and publish."),
		rankedChunk("3", "Ops handbook", "", "Page the on-call engineer."),
	}
}

func newAnswerService(retriever chunkRetriever, primary, fallback *mockCompletion) *AnswerService {
	var svc *AnswerService
	switch {
	case primary == nil:
		svc = NewAnswerService(retriever, nil, nil, domain.DefaultAppSettings().Retrieval)
	case fallback == nil:
		svc = NewAnswerService(retriever, primary, nil, domain.DefaultAppSettings().Retrieval)
	default:
		svc = NewAnswerService(retriever, primary, fallback, domain.DefaultAppSettings().Retrieval)
	}
	svc.delay = 0
	return svc
}

func TestAnswerService_AskPrimary(t *testing.T) {
	retriever := &stubRetriever{chunks: answerChunks()}
	primary := &mockCompletion{model: "p", text: "  Revert the tag.  "}
	svc := newAnswerService(retriever, primary, nil)

	ans, err := svc.Ask(context.Background(), "How do I roll back?", domain.AskOptions{OwnerID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, "Revert the tag.", ans.Text)
	assert.Equal(t, domain.AnswerFromPrimary, ans.Source)
	require.Len(t, ans.Citations, 3)
	assert.Equal(t, "Release process > Rollback", ans.Citations[0].Label())

	assert.Equal(t, "alice", retriever.lastOpts.OwnerID)
	assert.Equal(t, 5, retriever.lastOpts.Limit)
	assert.True(t, retriever.lastOpts.SkipFeedback)

	assert.Equal(t, defaultAnswerSystem, primary.lastReq.System)
	assert.Contains(t, primary.lastReq.Prompt, "[Source: Release process > Rollback]")
	assert.Contains(t, primary.lastReq.Prompt, "Question: How do I roll back?")
	assert.Equal(t, 512, primary.lastReq.MaxTokens)
}

func TestAnswerService_AskUsesPromptStore(t *testing.T) {
	primary := &mockCompletion{model: "p", text: "ok"}
	svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, nil)
	svc.SetPromptStore(stubPrompts{"answer_system": "Be brief.", "answer": "CTX=%s Q=%s"})

	_, err := svc.Ask(context.Background(), "why", domain.AskOptions{MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", primary.lastReq.System)
	assert.True(t, strings.HasPrefix(primary.lastReq.Prompt, "CTX=[Source:"))
	assert.True(t, strings.HasSuffix(primary.lastReq.Prompt, " Q=why"))
	assert.Equal(t, 64, primary.lastReq.MaxTokens)
}

func TestAnswerService_BadPromptOverrideFallsBack(t *testing.T) {
	for _, tpl := range []string{"Only %s here", "%s %s %s", "%d items for %s %s", "Context %s%v question %s"} {
		t.Run(tpl, func(t *testing.T) {
			primary := &mockCompletion{model: "p", text: "ok"}
			svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, nil)
			svc.SetPromptStore(stubPrompts{"answer": tpl})

			_, err := svc.Ask(context.Background(), "why", domain.AskOptions{})
			require.NoError(t, err)
			assert.Contains(t, primary.lastReq.Prompt, "Question: why")
			assert.NotContains(t, primary.lastReq.Prompt, "%!")
		})
	}
}

func TestValidAnswerTemplate(t *testing.T) {
	assert.True(t, validAnswerTemplate(defaultAnswerPrompt))
	assert.True(t, validAnswerTemplate("100%% sure: %s\n%s"))
	assert.False(t, validAnswerTemplate("%s"))
	assert.False(t, validAnswerTemplate("%s %s %s"))
	assert.False(t, validAnswerTemplate("%q %s %s"))
	assert.False(t, validAnswerTemplate("50% of %s %s"))
	assert.False(t, validAnswerTemplate("%%s %s"))
}

func TestAnswerService_AskCanned(t *testing.T) {
	t.Run("no context", func(t *testing.T) {
		primary := &mockCompletion{model: "p", text: "never"}
		svc := newAnswerService(&stubRetriever{}, primary, nil)

		ans, err := svc.Ask(context.Background(), "anything?", domain.AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, cannedNoContext, ans.Text)
		assert.Equal(t, domain.AnswerCanned, ans.Source)
		assert.Empty(t, ans.Citations)
		assert.Equal(t, 0, primary.calls)
	})

	t.Run("no provider", func(t *testing.T) {
		svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, nil, nil)

		ans, err := svc.Ask(context.Background(), "anything?", domain.AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, domain.AnswerCanned, ans.Source)
		assert.Equal(t, cannedUnavailable+sourcesIntro+"Release process; Ops handbook.", ans.Text)
	})

	t.Run("provider error", func(t *testing.T) {
		primary := &mockCompletion{model: "p", err: errors.New("500")}
		fallback := &mockCompletion{model: "f", text: "unused"}
		svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, fallback)

		ans, err := svc.Ask(context.Background(), "anything?", domain.AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, domain.AnswerCanned, ans.Source)
		assert.Equal(t, 0, fallback.calls)
	})
}

func TestAnswerService_AskQuota(t *testing.T) {
	quota := fmt.Errorf("429: %w", domain.ErrQuotaExceeded)

	t.Run("fallback answers", func(t *testing.T) {
		primary := &mockCompletion{model: "p", err: quota}
		fallback := &mockCompletion{model: "f", text: "from fallback"}
		svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, fallback)

		ans, err := svc.Ask(context.Background(), "q", domain.AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, "from fallback", ans.Text)
		assert.Equal(t, domain.AnswerFromFallback, ans.Source)
	})

	t.Run("fallback fails", func(t *testing.T) {
		primary := &mockCompletion{model: "p", err: quota}
		fallback := &mockCompletion{model: "f", err: quota}
		svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, fallback)

		ans, err := svc.Ask(context.Background(), "q", domain.AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, domain.AnswerDegraded, ans.Source)
		assert.True(t, strings.HasPrefix(ans.Text, degradedMessage))
		assert.Equal(t, 1, fallback.calls)
	})

	t.Run("no fallback", func(t *testing.T) {
		primary := &mockCompletion{model: "p", err: quota}
		svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, nil)

		ans, err := svc.Ask(context.Background(), "q", domain.AskOptions{})
		require.NoError(t, err)
		assert.Equal(t, domain.AnswerDegraded, ans.Source)
	})
}

func TestAnswerService_AskErrors(t *testing.T) {
	svc := newAnswerService(&stubRetriever{err: errors.New("db down")}, nil, nil)

	_, err := svc.Ask(context.Background(), "  ", domain.AskOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Ask(context.Background(), "q", domain.AskOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestAnswerService_AskRespectsBudget(t *testing.T) {
	primary := &mockCompletion{model: "p", text: "ok"}
	svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, nil)

	ans, err := svc.Ask(context.Background(), "q", domain.AskOptions{ContextBudget: 40})
	require.NoError(t, err)
	assert.LessOrEqual(t, ans.Context.Tokens, 40)
	assert.Len(t, ans.Citations, 1)
}

func collect(t *testing.T, events <-chan domain.AnswerEvent) (string, domain.AnswerEvent) {
	t.Helper()
	var sb strings.Builder
	var last domain.AnswerEvent
	for ev := range events {
		sb.WriteString(ev.Delta)
		last = ev
	}
	require.True(t, last.Done, "stream ends with a done event")
	return sb.String(), last
}

func TestAnswerService_AskStream(t *testing.T) {
	primary := &mockCompletion{model: "p", deltas: []string{"Revert ", "the ", "tag."}}
	svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, nil)

	text, done := collect(t, svc.AskStream(context.Background(), "q", domain.AskOptions{}))
	assert.Equal(t, "Revert the tag.", text)
	assert.Equal(t, domain.AnswerFromPrimary, done.Source)
	assert.Len(t, done.Citations, 3)
	assert.NoError(t, done.Err)
}

func TestAnswerService_AskStreamCanned(t *testing.T) {
	svc := newAnswerService(&stubRetriever{}, nil, nil)

	text, done := collect(t, svc.AskStream(context.Background(), "q", domain.AskOptions{}))
	assert.Equal(t, cannedNoContext, text)
	assert.Equal(t, domain.AnswerCanned, done.Source)
}

func TestAnswerService_AskStreamQuotaFallback(t *testing.T) {
	primary := &mockCompletion{model: "p", streamErr: domain.ErrQuotaExceeded}
	fallback := &mockCompletion{model: "f", deltas: []string{"From ", "fallback."}}
	svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, fallback)

	text, done := collect(t, svc.AskStream(context.Background(), "q", domain.AskOptions{}))
	assert.Equal(t, "From fallback.", text)
	assert.Equal(t, domain.AnswerFromFallback, done.Source)
}

func TestAnswerService_AskStreamDegraded(t *testing.T) {
	primary := &mockCompletion{model: "p", streamErr: domain.ErrQuotaExceeded}
	svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, nil)

	text, done := collect(t, svc.AskStream(context.Background(), "q", domain.AskOptions{}))
	assert.True(t, strings.HasPrefix(text, degradedMessage))
	assert.Equal(t, domain.AnswerDegraded, done.Source)
}

func TestAnswerService_AskStreamInterrupted(t *testing.T) {
	primary := &mockCompletion{model: "p", deltas: []string{"Partial "}, streamErr: errors.New("connection reset")}
	fallback := &mockCompletion{model: "f", deltas: []string{"never"}}
	svc := newAnswerService(&stubRetriever{chunks: answerChunks()}, primary, fallback)

	text, done := collect(t, svc.AskStream(context.Background(), "q", domain.AskOptions{}))
	assert.Equal(t, "Partial ", text)
	assert.ErrorIs(t, done.Err, errStreamStarted)
	assert.Equal(t, 0, fallback.calls)
}

func TestAnswerService_AskStreamInvalidQuestion(t *testing.T) {
	svc := newAnswerService(&stubRetriever{}, nil, nil)

	_, done := collect(t, svc.AskStream(context.Background(), "", domain.AskOptions{}))
	assert.ErrorIs(t, done.Err, domain.ErrInvalidInput)
}

func TestSplitDelta(t *testing.T) {
	assert.Nil(t, splitDelta("", 4))
	assert.Equal(t, []string{"abc"}, splitDelta("abc", 4))
	assert.Equal(t, []string{"abcd", "efgh", "i"}, splitDelta("abcdefghi", 4))
	assert.Equal(t, []string{"äö", "ü"}, splitDelta("äöü", 2))
}
