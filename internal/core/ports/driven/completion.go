package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// CompletionService produces language model completions for grounded answers.
// This is an optional service - when nil, answers fall back to canned responses.
//
// Implementations map provider failures onto domain errors:
// domain.ErrQuotaExceeded for quota or rate rejections and
// domain.ErrProviderUnavailable for transport failures and server errors.
//
// Implementations may include:
//   - OpenAI (GPT-4o)
//   - Anthropic (Claude)
//   - Ollama (local models)
type CompletionService interface {
	// Complete returns the full completion for a request.
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)

	// Stream delivers the completion incrementally through emit.
	// Returning an error from emit aborts the stream.
	Stream(ctx context.Context, req domain.CompletionRequest, emit func(delta string) error) error

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
