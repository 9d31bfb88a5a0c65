// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/recall/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/recall/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/recall/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/recall/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/recall/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult holds the AI services built from settings. Any field may be
// nil: search degrades to lexical scoring and answers to canned responses.
type InitResult struct {
	Embedding          driven.EmbeddingService
	FallbackEmbedding  driven.EmbeddingService
	Completion         driven.CompletionService
	FallbackCompletion driven.CompletionService
	Warnings           []string // Non-fatal configuration problems.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Embedding != nil {
		r.Embedding.Close()
	}
	if r.FallbackEmbedding != nil {
		r.FallbackEmbedding.Close()
	}
	if r.Completion != nil {
		r.Completion.Close()
	}
	if r.FallbackCompletion != nil {
		r.FallbackCompletion.Close()
	}
}

// Init builds every configured provider slot. Construction does not touch
// the network; unreachable providers are detected per session at call time.
// A slot that cannot be built is left nil and reported in Warnings.
func Init(settings *domain.AppSettings) *InitResult {
	log := logger.For("ai")
	result := &InitResult{}
	if settings == nil {
		return result
	}

	warn := func(slot string, err error) {
		msg := fmt.Sprintf("%s: %v", slot, err)
		log.Warn("%s provider disabled: %v", slot, err)
		result.Warnings = append(result.Warnings, msg)
	}

	if svc, err := CreateEmbeddingService(&settings.Embedding); err != nil {
		warn("embedding", err)
	} else if svc != nil {
		result.Embedding = svc
	}
	if svc, err := CreateEmbeddingService(&settings.FallbackEmbedding); err != nil {
		warn("embedding fallback", err)
	} else if svc != nil {
		result.FallbackEmbedding = svc
	}
	if svc, err := CreateCompletionService(&settings.Completion); err != nil {
		warn("completion", err)
	} else if svc != nil {
		result.Completion = svc
	}
	if svc, err := CreateCompletionService(&settings.FallbackCompletion); err != nil {
		warn("completion fallback", err)
	} else if svc != nil {
		result.FallbackCompletion = svc
	}

	// A lone fallback is promoted so that it is still used.
	if result.Embedding == nil && result.FallbackEmbedding != nil {
		result.Embedding, result.FallbackEmbedding = result.FallbackEmbedding, nil
	}
	if result.Completion == nil && result.FallbackCompletion != nil {
		result.Completion, result.FallbackCompletion = result.FallbackCompletion, nil
	}

	return result
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// Returns nil when the settings are not configured.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateCompletionConfig validates a completion configuration by creating a service and pinging it.
// Returns nil when the settings are not configured.
func ValidateCompletionConfig(settings *domain.CompletionSettings) error {
	svc, err := CreateCompletionService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
	if !settings.Provider.SupportsEmbeddings() {
		return nil, fmt.Errorf("%s does not support embeddings, use ollama or openai", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s requires an API key", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	default:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

// CreateCompletionService creates the appropriate completion service based on settings.
// Returns nil if the provider is not configured.
func CreateCompletionService(settings *domain.CompletionSettings) (driven.CompletionService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("unsupported completion provider: %s", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s requires an API key", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewCompletionService(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewCompletionService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		svc, err := anthropicllm.NewCompletionService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}
