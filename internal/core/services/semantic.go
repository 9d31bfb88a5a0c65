package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// semanticWeight scales a similarity in [0, 1] into score points.
const semanticWeight = 50.0

// SemanticContribution converts a similarity into score points.
func SemanticContribution(sim float64) float64 {
	return sim * semanticWeight
}

// CosineSimilarity returns the cosine of two vectors. Mismatched lengths,
// empty vectors and zero-norm vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

// SemanticMatcher compares query vectors with chunk vectors.
// Vectors from different models are never compared.
type SemanticMatcher struct{}

// NewSemanticMatcher creates a matcher.
func NewSemanticMatcher() *SemanticMatcher {
	return &SemanticMatcher{}
}

// MaxSimilarity returns the best similarity, clamped to [0, 1], between
// the query and any comparable chunk. 0 when no chunk is comparable.
func (m *SemanticMatcher) MaxSimilarity(query []float32, queryModel string, chunks []domain.Chunk) float64 {
	_, sim := m.Best(query, queryModel, chunks)
	return sim
}

// Best returns the index of the most similar chunk and its similarity.
// The index is -1 when no chunk is comparable.
func (m *SemanticMatcher) Best(query []float32, queryModel string, chunks []domain.Chunk) (int, float64) {
	best, bestSim := -1, 0.0
	if len(query) == 0 {
		return best, 0
	}
	for i := range chunks {
		c := &chunks[i]
		if !c.HasEmbedding() || c.EmbeddingModel != queryModel || len(c.Embedding) != len(query) {
			continue
		}
		sim := clamp01(CosineSimilarity(query, c.Embedding))
		if best < 0 || sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best, bestSim
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// embedGroupSize is the number of texts sent per provider call.
const embedGroupSize = 16

// embedConcurrency bounds in-flight provider calls per batch.
const embedConcurrency = 3

// Embeddings holds the configured embedding providers and the shared
// call rate limit. Sessions are created per request or job.
type Embeddings struct {
	primary  driven.EmbeddingService
	fallback driven.EmbeddingService
	limiter  *rate.Limiter
}

// NewEmbeddings wires primary and optional fallback providers.
// perSecond limits provider calls; zero or less means unlimited.
// A nil primary yields sessions that are always unavailable.
func NewEmbeddings(primary, fallback driven.EmbeddingService, perSecond float64) *Embeddings {
	limit, burst := rate.Inf, 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(perSecond))
	}
	return &Embeddings{
		primary:  primary,
		fallback: fallback,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Session starts a new embedding session. Safe on a nil receiver.
func (e *Embeddings) Session() *EmbeddingSession {
	if e == nil || e.primary == nil {
		return &EmbeddingSession{disabled: true}
	}
	return &EmbeddingSession{
		primary:  e.primary,
		fallback: e.fallback,
		active:   e.primary,
		limiter:  e.limiter,
	}
}

// EmbeddingSession wraps the embedding providers for one request or job.
// The first provider outage disables embeddings for the rest of the
// session. A quota rejection switches to the fallback once; without a
// fallback, embeddings are disabled.
type EmbeddingSession struct {
	mu       sync.Mutex
	primary  driven.EmbeddingService
	fallback driven.EmbeddingService
	active   driven.EmbeddingService
	switched bool
	disabled bool
	limiter  *rate.Limiter
}

// Available reports whether embedding calls may still be attempted.
func (s *EmbeddingSession) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disabled
}

// ModelName returns the model of the active provider, or "" when disabled.
func (s *EmbeddingSession) ModelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return ""
	}
	return s.active.ModelName()
}

// Embed embeds a single text and returns the vector and its model.
func (s *EmbeddingSession) Embed(ctx context.Context, text string) ([]float32, string, error) {
	vecs, model, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, "", err
	}
	return vecs[0], model, nil
}

// EmbedBatch embeds texts with a single provider and returns the vectors
// in input order plus the model that produced them.
func (s *EmbeddingSession) EmbedBatch(ctx context.Context, texts []string) ([][]float32, string, error) {
	if len(texts) == 0 {
		return nil, s.ModelName(), nil
	}
	for {
		svc, err := s.current()
		if err != nil {
			return nil, "", err
		}
		vecs, err := s.embedWith(ctx, svc, texts)
		if err == nil {
			return vecs, svc.ModelName(), nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		if !s.recordFailure(svc, err) {
			return nil, "", fmt.Errorf("embed batch: %w", err)
		}
	}
}

func (s *EmbeddingSession) current() (driven.EmbeddingService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return nil, domain.ErrEmbeddingUnavailable
	}
	return s.active, nil
}

// recordFailure updates session state after a failed call and reports
// whether another provider should be tried. Any failure other than
// cancellation disables the session; a quota error first moves to the
// fallback, once.
func (s *EmbeddingSession) recordFailure(svc driven.EmbeddingService, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != svc {
		// Another caller already moved the session on.
		return !s.disabled
	}

	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		if !s.switched && s.fallback != nil {
			logger.Warn("Embedding quota exceeded on %s, switching to %s", svc.ModelName(), s.fallback.ModelName())
			s.active = s.fallback
			s.switched = true
			return true
		}
		logger.Warn("Embedding quota exceeded on %s, disabling embeddings", svc.ModelName())
		s.disabled = true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, domain.ErrProviderUnavailable):
		logger.Warn("Embedding provider %s unavailable, disabling embeddings: %v", svc.ModelName(), err)
		s.disabled = true
	default:
		logger.Warn("Embedding failed on %s, disabling embeddings: %v", svc.ModelName(), err)
		s.disabled = true
	}
	return false
}

// embedWith splits texts into groups and embeds them concurrently.
func (s *EmbeddingSession) embedWith(
	ctx context.Context, svc driven.EmbeddingService, texts []string,
) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(texts); start += embedGroupSize {
		end := min(start+embedGroupSize, len(texts))
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			vecs, err := svc.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
