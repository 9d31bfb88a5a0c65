package services

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/textutil"
)

// Ensure mocks implement interfaces
var (
	_ driven.EmbeddingService  = (*mockEmbedding)(nil)
	_ driven.CompletionService = (*mockCompletion)(nil)
	_ jobEnqueuer              = (*mockEnqueuer)(nil)
)

// fixedNow is the reference time used across service tests.
var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// --- Embedding ---

const mockDims = 32

// mockEmbedding hashes tokens into a small bag-of-words vector, so texts
// sharing words are similar and identical texts score 1.
type mockEmbedding struct {
	mu    sync.Mutex
	model string
	err   error
	calls int
}

func newMockEmbedding(model string) *mockEmbedding {
	return &mockEmbedding{model: model}
}

func bagOfWords(text string) []float32 {
	v := make([]float32, mockDims)
	for _, tok := range textutil.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%mockDims]++
	}
	return v
}

func (m *mockEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func (m *mockEmbedding) Dimensions() int              { return mockDims }
func (m *mockEmbedding) ModelName() string            { return m.model }
func (m *mockEmbedding) Ping(_ context.Context) error { return nil }
func (m *mockEmbedding) Close() error                 { return nil }

func (m *mockEmbedding) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockEmbedding) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Completion ---

type mockCompletion struct {
	model     string
	text      string
	err       error
	deltas    []string
	streamErr error
	calls     int
	lastReq   domain.CompletionRequest
}

func (m *mockCompletion) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockCompletion) Stream(_ context.Context, req domain.CompletionRequest, emit func(string) error) error {
	m.calls++
	m.lastReq = req
	for _, d := range m.deltas {
		if err := emit(d); err != nil {
			return err
		}
	}
	return m.streamErr
}

func (m *mockCompletion) ModelName() string            { return m.model }
func (m *mockCompletion) Ping(_ context.Context) error { return nil }
func (m *mockCompletion) Close() error                 { return nil }

// --- Jobs ---

type enqueued struct {
	kind    domain.JobKind
	payload any
}

type mockEnqueuer struct {
	mu    sync.Mutex
	jobs  []enqueued
	err   error
	count int
}

func (m *mockEnqueuer) Enqueue(_ context.Context, kind domain.JobKind, payload any, _ domain.JobOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.count++
	m.jobs = append(m.jobs, enqueued{kind: kind, payload: payload})
	return "job-" + string(kind), nil
}

func (m *mockEnqueuer) queued() []enqueued {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]enqueued(nil), m.jobs...)
}
