package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

func TestConfigValidator_ImplementsInterface(t *testing.T) {
	var _ driven.AIConfigValidator = NewConfigValidator()
}

func TestConfigValidator_Unconfigured(t *testing.T) {
	v := NewConfigValidator()
	assert.NoError(t, v.ValidateEmbedding(nil))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{}))
	assert.NoError(t, v.ValidateCompletion(nil))
	assert.NoError(t, v.ValidateCompletion(&domain.CompletionSettings{}))
}

func TestConfigValidator_PingsProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	v := NewConfigValidator()
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  srv.URL,
	}))
	assert.NoError(t, v.ValidateCompletion(&domain.CompletionSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  srv.URL,
	}))
}

func TestConfigValidator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewConfigValidator().ValidateCompletion(&domain.CompletionSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  url,
	})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
