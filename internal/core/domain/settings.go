package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or completions.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// SupportsEmbeddings returns true if the provider offers an embedding API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// ProviderSettings holds the connection details of one AI provider.
type ProviderSettings struct {
	// Provider is the service provider.
	Provider AIProvider

	// Model is the model name.
	Model string

	// BaseURL is the API endpoint (optional for cloud providers).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string
}

// IsConfigured returns true if the provider is set up.
func (s ProviderSettings) IsConfigured() bool {
	if !s.Provider.IsValid() {
		return false
	}
	if s.Provider.RequiresAPIKey() && s.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings = ProviderSettings

// CompletionSettings holds completion provider configuration.
type CompletionSettings = ProviderSettings

// RetrievalSettings tunes chunking, scoring and context assembly.
type RetrievalSettings struct {
	// ChunkMaxTokens is the estimated-token ceiling per chunk.
	ChunkMaxTokens int

	// ChunkOverlapWords is the number of words carried across a split.
	ChunkOverlapWords int

	// ChunkMinChars is the floor below which chunks are dropped.
	ChunkMinChars int

	// ContextBudget is the default token budget for assembled contexts.
	ContextBudget int

	// MaxCompletionTokens is the default completion ceiling.
	MaxCompletionTokens int

	// TopNotes is how many ranked notes feed context assembly.
	TopNotes int

	// RankingTopN is how many results are persisted as ranking feedback.
	RankingTopN int

	// EmbeddingsPerSecond rate-limits provider calls. Zero disables limiting.
	EmbeddingsPerSecond float64
}

// DuplicateSettings holds duplicate detection thresholds.
type DuplicateSettings struct {
	// Threshold is the default reporting threshold for on-demand checks.
	Threshold float64

	// AutoReportThreshold is the minimum score for background-created reports.
	AutoReportThreshold float64

	// AutoMergeThreshold is the minimum score for auto-merge.
	AutoMergeThreshold float64

	// AutoMergeBatch bounds merges per auto-merge run.
	AutoMergeBatch int

	// MaxCorpusNotes caps corpus-wide scans.
	MaxCorpusNotes int

	// MaxComparisons caps single-note scans.
	MaxComparisons int
}

// JobSettings holds background job configuration.
type JobSettings struct {
	// Workers is the size of the worker pool.
	Workers int

	// PollInterval is how often idle workers check for due jobs.
	PollInterval time.Duration

	// RetentionDays is how long dismissed reports, stale ranking records
	// and finished jobs are kept.
	RetentionDays int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// OwnerID is the default note owner for the local user.
	OwnerID string

	// Embedding holds the primary embedding provider.
	Embedding EmbeddingSettings

	// FallbackEmbedding is used once the primary reports quota exhaustion.
	FallbackEmbedding EmbeddingSettings

	// Completion holds the primary completion provider.
	Completion CompletionSettings

	// FallbackCompletion is used once the primary reports quota exhaustion.
	FallbackCompletion CompletionSettings

	// Retrieval holds chunking, scoring and context settings.
	Retrieval RetrievalSettings

	// Duplicates holds duplicate detection settings.
	Duplicates DuplicateSettings

	// Jobs holds background job settings.
	Jobs JobSettings
}

// DefaultOwnerID is the owner used when none is configured.
const DefaultOwnerID = "local"

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; scoring is lexical-only until
// an embedding provider is set.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		OwnerID: DefaultOwnerID,
		Retrieval: RetrievalSettings{
			ChunkMaxTokens:      400,
			ChunkOverlapWords:   30,
			ChunkMinChars:       20,
			ContextBudget:       2000,
			MaxCompletionTokens: 512,
			TopNotes:            5,
			RankingTopN:         10,
			EmbeddingsPerSecond: 5,
		},
		Duplicates: DuplicateSettings{
			Threshold:           0.7,
			AutoReportThreshold: ReviewThreshold,
			AutoMergeThreshold:  MergeThreshold,
			AutoMergeBatch:      10,
			MaxCorpusNotes:      500,
			MaxComparisons:      200,
		},
		Jobs: JobSettings{
			Workers:       2,
			PollInterval:  time.Second,
			RetentionDays: 30,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllCompletionProviders returns providers that support completions.
func AllCompletionProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultCompletionModels returns default models for each completion provider.
func DefaultCompletionModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
