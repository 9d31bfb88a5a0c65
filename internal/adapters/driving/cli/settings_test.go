package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Short key", input: "abc123", expected: "****"},
		{name: "Exactly 8 chars", input: "12345678", expected: "****"},
		{name: "Long key", input: "sk-1234567890abcdef", expected: "sk-1...cdef"},
		{name: "Empty key", input: "", expected: "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.input))
		})
	}
}

func TestSettingsShow_Defaults(t *testing.T) {
	setupTestServices(t)

	out, err := executeCommand("settings")
	require.NoError(t, err)

	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "Provider: (not set)")
	assert.Contains(t, out, "[Completion]")
	assert.NotContains(t, out, "[Embedding Fallback]")
	assert.Contains(t, out, "Context budget: 2000 tokens")
	assert.Contains(t, out, "Auto-merge: 0.95 (batch 10)")
	assert.Contains(t, out, "Workers: 2")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_Providers(t *testing.T) {
	ts := setupTestServices(t)
	ts.settings.settings.Embedding = domain.ProviderSettings{
		Provider: domain.AIProviderOllama, Model: "nomic-embed-text", BaseURL: "http://localhost:11434",
	}
	ts.settings.settings.Completion = domain.ProviderSettings{
		Provider: domain.AIProviderOpenAI, Model: "gpt-4o-mini", APIKey: "sk-1234567890abcdef",
	}
	ts.settings.settings.FallbackCompletion = domain.ProviderSettings{
		Provider: domain.AIProviderAnthropic, Model: "claude-3-5-sonnet-latest",
	}
	ts.settings.validateErr = errors.New("fallback broken")

	out, err := executeCommand("settings", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "Provider: Ollama (local)")
	assert.Contains(t, out, "Base URL: http://localhost:11434")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.Contains(t, out, "[Completion Fallback]")
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "Status: not configured")
	assert.Contains(t, out, "Warning: fallback broken")
}

func TestSettingsEmbedding(t *testing.T) {
	ts := setupTestServices(t)

	out, err := executeCommand("settings", "embedding", "--provider", "openai", "--api-key", "sk-test", "--model", "text-embedding-3-large")
	require.NoError(t, err)

	require.Len(t, ts.settings.embeddingCalls, 1)
	assert.Equal(t, providerCall{domain.AIProviderOpenAI, "text-embedding-3-large", "sk-test", false}, ts.settings.embeddingCalls[0])
	assert.Equal(t, 1, ts.settings.pings)
	assert.Contains(t, out, "Validating configuration... OK")
	assert.Contains(t, out, "recall index --all")
}

func TestSettingsEmbedding_FallbackSkipsValidation(t *testing.T) {
	ts := setupTestServices(t)

	out, err := executeCommand("settings", "embedding", "--provider", "ollama", "--fallback")
	require.NoError(t, err)

	assert.True(t, ts.settings.embeddingCalls[0].fallback)
	assert.Equal(t, 0, ts.settings.pings)
	assert.Contains(t, out, "Embedding fallback configured: Ollama (local)")
}

func TestSettingsEmbedding_ValidationFails(t *testing.T) {
	ts := setupTestServices(t)
	ts.settings.embeddingErr = domain.ErrProviderUnavailable

	out, err := executeCommand("settings", "embedding", "--provider", "ollama")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Contains(t, out, "FAILED")
}

func TestSettingsEmbedding_RequiresProvider(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand("settings", "embedding")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "provider" not set`)
}

func TestSettingsCompletion(t *testing.T) {
	ts := setupTestServices(t)

	out, err := executeCommand("settings", "completion", "--provider", "anthropic", "--api-key", "key", "--skip-validate")
	require.NoError(t, err)

	assert.Equal(t, providerCall{domain.AIProviderAnthropic, "", "key", false}, ts.settings.completeCalls[0])
	assert.Equal(t, 0, ts.settings.pings)
	assert.Contains(t, out, "Completion provider configured: Anthropic (cloud)")
}

func TestSettingsCompletion_SetError(t *testing.T) {
	ts := setupTestServices(t)
	ts.settings.setErr = errors.New("API key required for openai")

	_, err := executeCommand("settings", "completion", "--provider", "openai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestSettingsValidate(t *testing.T) {
	ts := setupTestServices(t)
	ts.settings.settings.Embedding.Provider = domain.AIProviderOllama
	ts.settings.settings.Completion.Provider = domain.AIProviderOpenAI
	ts.settings.completionErr = domain.ErrQuotaExceeded

	out, err := executeCommand("settings", "validate")
	require.Error(t, err)

	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "FAILED: provider quota exceeded")
	assert.Equal(t, 2, ts.settings.pings)
}

func TestSettingsValidate_Unconfigured(t *testing.T) {
	ts := setupTestServices(t)

	_, err := executeCommand("settings", "validate")
	require.NoError(t, err)
	assert.Equal(t, 0, ts.settings.pings)
}
