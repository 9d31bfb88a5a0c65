package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.EmbeddingSettings
		wantNil   bool
		wantErr   string
		wantModel string
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "no provider", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name:      "ollama",
			settings:  &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"},
			wantModel: "nomic-embed-text",
		},
		{
			name:      "openai",
			settings:  &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk", Model: "text-embedding-3-large"},
			wantModel: "text-embedding-3-large",
		},
		{
			name:     "openai without key",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantErr:  "requires an API key",
		},
		{
			name:     "anthropic",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantErr:  "does not support embeddings",
		},
		{
			name:     "unknown",
			settings: &domain.EmbeddingSettings{Provider: "cohere"},
			wantErr:  "unsupported embedding provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantModel, svc.ModelName())
		})
	}
}

func TestCreateCompletionService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.CompletionSettings
		wantNil   bool
		wantErr   bool
		wantModel string
	}{
		{name: "nil settings", wantNil: true},
		{name: "no provider", settings: &domain.CompletionSettings{}, wantNil: true},
		{name: "ollama default model", settings: &domain.CompletionSettings{Provider: domain.AIProviderOllama}, wantModel: "llama3.2"},
		{
			name:      "openai",
			settings:  &domain.CompletionSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk", Model: "gpt-4o"},
			wantModel: "gpt-4o",
		},
		{
			name:      "anthropic default model",
			settings:  &domain.CompletionSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantModel: "claude-3-5-sonnet-latest",
		},
		{name: "anthropic without key", settings: &domain.CompletionSettings{Provider: domain.AIProviderAnthropic}, wantErr: true},
		{name: "unknown", settings: &domain.CompletionSettings{Provider: "mistral"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateCompletionService(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantModel, svc.ModelName())
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("nil settings", func(t *testing.T) {
		result := Init(nil)
		assert.Nil(t, result.Embedding)
		assert.Nil(t, result.Completion)
		result.Close()
	})

	t.Run("all slots", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk"}
		settings.FallbackEmbedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama}
		settings.Completion = domain.CompletionSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}
		settings.FallbackCompletion = domain.CompletionSettings{Provider: domain.AIProviderOllama}

		result := Init(&settings)
		defer result.Close()

		require.NotNil(t, result.Embedding)
		require.NotNil(t, result.FallbackEmbedding)
		require.NotNil(t, result.Completion)
		require.NotNil(t, result.FallbackCompletion)
		assert.Equal(t, "text-embedding-3-small", result.Embedding.ModelName())
		assert.Equal(t, "nomic-embed-text", result.FallbackEmbedding.ModelName())
		assert.Empty(t, result.Warnings)
	})

	t.Run("broken primary promotes fallback", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Completion = domain.CompletionSettings{Provider: domain.AIProviderOpenAI}
		settings.FallbackCompletion = domain.CompletionSettings{Provider: domain.AIProviderOllama, Model: "mistral"}

		result := Init(&settings)
		defer result.Close()

		require.NotNil(t, result.Completion)
		assert.Equal(t, "mistral", result.Completion.ModelName())
		assert.Nil(t, result.FallbackCompletion)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "completion")
	})
}
