package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestSemanticMatcher_Best(t *testing.T) {
	m := NewSemanticMatcher()
	chunks := []domain.Chunk{
		{ID: "other-model", Embedding: []float32{1, 0}, EmbeddingModel: "m2"},
		{ID: "none"},
		{ID: "close", Embedding: []float32{1, 1}, EmbeddingModel: "m1"},
		{ID: "exact", Embedding: []float32{1, 0}, EmbeddingModel: "m1"},
		{ID: "opposite", Embedding: []float32{-1, 0}, EmbeddingModel: "m1"},
	}

	idx, sim := m.Best([]float32{1, 0}, "m1", chunks)
	assert.Equal(t, 3, idx)
	assert.InDelta(t, 1.0, sim, 1e-6)

	idx, sim = m.Best([]float32{1, 0}, "m3", chunks)
	assert.Equal(t, -1, idx)
	assert.Equal(t, 0.0, sim)

	assert.Equal(t, 0.0, m.MaxSimilarity(nil, "m1", chunks))
	assert.Equal(t, 0.0, m.MaxSimilarity([]float32{-1, 0}, "m1", chunks[3:4]))
}

func TestEmbeddings_NilPrimaryDisabled(t *testing.T) {
	var e *Embeddings
	s := e.Session()
	assert.False(t, s.Available())
	assert.Empty(t, s.ModelName())

	_, _, err := NewEmbeddings(nil, nil, 0).Session().Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingSession_EmbedBatchPreservesOrder(t *testing.T) {
	primary := newMockEmbedding("m1")
	s := NewEmbeddings(primary, nil, 0).Session()

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("text number %d", i)
	}

	vecs, model, err := s.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, "m1", model)
	require.Len(t, vecs, len(texts))
	for i := range texts {
		assert.Equal(t, bagOfWords(texts[i]), vecs[i])
	}
	assert.Equal(t, 3, primary.callCount())
}

func TestEmbeddingSession_QuotaSwitchesToFallbackOnce(t *testing.T) {
	primary := newMockEmbedding("primary")
	primary.setErr(fmt.Errorf("http 429: %w", domain.ErrQuotaExceeded))
	fallback := newMockEmbedding("fallback")
	s := NewEmbeddings(primary, fallback, 0).Session()

	vec, model, err := s.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, "fallback", model)
	assert.NotEmpty(t, vec)
	assert.Equal(t, "fallback", s.ModelName())

	fallback.setErr(fmt.Errorf("again: %w", domain.ErrQuotaExceeded))
	_, _, err = s.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.False(t, s.Available())
	assert.Equal(t, 1, primary.callCount())
}

func TestEmbeddingSession_QuotaWithoutFallbackDisables(t *testing.T) {
	primary := newMockEmbedding("primary")
	primary.setErr(domain.ErrQuotaExceeded)
	s := NewEmbeddings(primary, nil, 0).Session()

	_, _, err := s.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, s.Available())

	_, _, err = s.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, 1, primary.callCount())
}

func TestEmbeddingSession_OutageDisablesSession(t *testing.T) {
	primary := newMockEmbedding("primary")
	primary.setErr(fmt.Errorf("dial: %w", domain.ErrProviderUnavailable))
	fallback := newMockEmbedding("fallback")
	s := NewEmbeddings(primary, fallback, 0).Session()

	_, _, err := s.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, s.Available())
	assert.Equal(t, 0, fallback.callCount())
}

func TestEmbeddingSession_AnyErrorDisablesSession(t *testing.T) {
	primary := newMockEmbedding("primary")
	primary.setErr(errors.New("openai: API returned status 401: invalid api key"))
	fallback := newMockEmbedding("fallback")
	s := NewEmbeddings(primary, fallback, 0).Session()

	_, _, err := s.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, s.Available())

	for range 3 {
		_, _, err = s.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	}
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 0, fallback.callCount())
}

func TestEmbeddingSession_CancelKeepsSession(t *testing.T) {
	primary := newMockEmbedding("primary")
	s := NewEmbeddings(primary, nil, 0).Session()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.Available())

	_, _, err = s.Embed(context.Background(), "x")
	assert.NoError(t, err)
}

func TestEmbeddingSession_SessionsAreIndependent(t *testing.T) {
	primary := newMockEmbedding("primary")
	primary.setErr(domain.ErrProviderUnavailable)
	e := NewEmbeddings(primary, nil, 0)

	first := e.Session()
	_, _, _ = first.Embed(context.Background(), "x")
	require.False(t, first.Available())

	primary.setErr(nil)
	second := e.Session()
	_, model, err := second.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "primary", model)
}
