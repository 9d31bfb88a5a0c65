package driving

import "github.com/custodia-labs/recall/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the primary or fallback embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string, fallback bool) error

	// SetCompletionProvider configures the primary or fallback completion provider.
	SetCompletionProvider(provider domain.AIProvider, model, apiKey string, fallback bool) error

	// Validate checks that the configured values are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// GetSchedulerConfig returns the scheduler configuration.
	GetSchedulerConfig() domain.SchedulerConfig

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateCompletionConfig validates the current completion configuration by pinging the provider.
	ValidateCompletionConfig() error
}
