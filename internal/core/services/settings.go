package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config key prefixes for provider sections.
const (
	sectionEmbedding          = "embedding"
	sectionEmbeddingFallback  = "embedding_fallback"
	sectionCompletion         = "completion"
	sectionCompletionFallback = "completion_fallback"
)

// Config keys for settings storage.
const (
	keyOwnerID             = "owner.id"
	keyChunkMaxTokens      = "retrieval.chunk_max_tokens"
	keyChunkOverlapWords   = "retrieval.chunk_overlap_words"
	keyChunkMinChars       = "retrieval.chunk_min_chars"
	keyContextBudget       = "retrieval.context_budget"
	keyMaxCompletionTokens = "retrieval.max_completion_tokens"
	keyTopNotes            = "retrieval.top_notes"
	keyRankingTopN         = "retrieval.ranking_top_n"
	keyEmbeddingsPerSecond = "retrieval.embeddings_per_second"
	keyDupThreshold        = "duplicates.threshold"
	keyDupAutoReport       = "duplicates.auto_report_threshold"
	keyDupAutoMerge        = "duplicates.auto_merge_threshold"
	keyDupAutoMergeBatch   = "duplicates.auto_merge_batch"
	keyDupMaxCorpus        = "duplicates.max_corpus_notes"
	keyDupMaxComparisons   = "duplicates.max_comparisons"
	keyJobWorkers          = "jobs.workers"
	keyJobPollInterval     = "jobs.poll_interval"
	keyJobRetentionDays    = "jobs.retention_days"
)

// defaultOllamaURL is assigned to local providers without a base URL.
const defaultOllamaURL = "http://localhost:11434"

// SecretSource resolves an API key for a provider from outside the config
// file, typically the environment.
type SecretSource func(provider domain.AIProvider) string

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	secrets     SecretSource
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// SetSecretSource sets where API keys missing from config are looked up.
func (s *SettingsService) SetSecretSource(src SecretSource) {
	s.secrets = src
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		OwnerID:            s.getString(keyOwnerID, d.OwnerID),
		Embedding:          s.getProvider(sectionEmbedding),
		FallbackEmbedding:  s.getProvider(sectionEmbeddingFallback),
		Completion:         s.getProvider(sectionCompletion),
		FallbackCompletion: s.getProvider(sectionCompletionFallback),
		Retrieval: domain.RetrievalSettings{
			ChunkMaxTokens:      s.getInt(keyChunkMaxTokens, d.Retrieval.ChunkMaxTokens),
			ChunkOverlapWords:   s.getInt(keyChunkOverlapWords, d.Retrieval.ChunkOverlapWords),
			ChunkMinChars:       s.getInt(keyChunkMinChars, d.Retrieval.ChunkMinChars),
			ContextBudget:       s.getInt(keyContextBudget, d.Retrieval.ContextBudget),
			MaxCompletionTokens: s.getInt(keyMaxCompletionTokens, d.Retrieval.MaxCompletionTokens),
			TopNotes:            s.getInt(keyTopNotes, d.Retrieval.TopNotes),
			RankingTopN:         s.getInt(keyRankingTopN, d.Retrieval.RankingTopN),
			EmbeddingsPerSecond: s.getFloat(keyEmbeddingsPerSecond, d.Retrieval.EmbeddingsPerSecond),
		},
		Duplicates: domain.DuplicateSettings{
			Threshold:           s.getFloat(keyDupThreshold, d.Duplicates.Threshold),
			AutoReportThreshold: s.getFloat(keyDupAutoReport, d.Duplicates.AutoReportThreshold),
			AutoMergeThreshold:  s.getFloat(keyDupAutoMerge, d.Duplicates.AutoMergeThreshold),
			AutoMergeBatch:      s.getInt(keyDupAutoMergeBatch, d.Duplicates.AutoMergeBatch),
			MaxCorpusNotes:      s.getInt(keyDupMaxCorpus, d.Duplicates.MaxCorpusNotes),
			MaxComparisons:      s.getInt(keyDupMaxComparisons, d.Duplicates.MaxComparisons),
		},
		Jobs: domain.JobSettings{
			Workers:       s.getInt(keyJobWorkers, d.Jobs.Workers),
			PollInterval:  s.getDuration(keyJobPollInterval, d.Jobs.PollInterval),
			RetentionDays: s.getInt(keyJobRetentionDays, d.Jobs.RetentionDays),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := s.configStore.Set(keyOwnerID, settings.OwnerID); err != nil {
		return fmt.Errorf("save owner id: %w", err)
	}

	sections := []struct {
		name     string
		settings domain.ProviderSettings
	}{
		{sectionEmbedding, settings.Embedding},
		{sectionEmbeddingFallback, settings.FallbackEmbedding},
		{sectionCompletion, settings.Completion},
		{sectionCompletionFallback, settings.FallbackCompletion},
	}
	for _, sec := range sections {
		if err := s.saveProvider(sec.name, sec.settings); err != nil {
			return err
		}
	}

	values := []struct {
		key   string
		value any
	}{
		{keyChunkMaxTokens, settings.Retrieval.ChunkMaxTokens},
		{keyChunkOverlapWords, settings.Retrieval.ChunkOverlapWords},
		{keyChunkMinChars, settings.Retrieval.ChunkMinChars},
		{keyContextBudget, settings.Retrieval.ContextBudget},
		{keyMaxCompletionTokens, settings.Retrieval.MaxCompletionTokens},
		{keyTopNotes, settings.Retrieval.TopNotes},
		{keyRankingTopN, settings.Retrieval.RankingTopN},
		{keyEmbeddingsPerSecond, settings.Retrieval.EmbeddingsPerSecond},
		{keyDupThreshold, settings.Duplicates.Threshold},
		{keyDupAutoReport, settings.Duplicates.AutoReportThreshold},
		{keyDupAutoMerge, settings.Duplicates.AutoMergeThreshold},
		{keyDupAutoMergeBatch, settings.Duplicates.AutoMergeBatch},
		{keyDupMaxCorpus, settings.Duplicates.MaxCorpusNotes},
		{keyDupMaxComparisons, settings.Duplicates.MaxComparisons},
		{keyJobWorkers, settings.Jobs.Workers},
		{keyJobPollInterval, settings.Jobs.PollInterval.String()},
		{keyJobRetentionDays, settings.Jobs.RetentionDays},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

func (s *SettingsService) saveProvider(section string, p domain.ProviderSettings) error {
	if err := s.configStore.Set(section+".provider", p.Provider.String()); err != nil {
		return fmt.Errorf("save %s provider: %w", section, err)
	}
	if err := s.configStore.Set(section+".model", p.Model); err != nil {
		return fmt.Errorf("save %s model: %w", section, err)
	}
	if err := s.configStore.Set(section+".base_url", p.BaseURL); err != nil {
		return fmt.Errorf("save %s base_url: %w", section, err)
	}
	// Keys resolved from the secret source are never written back to disk.
	if p.APIKey != "" && p.APIKey != s.secret(p.Provider) {
		if err := s.configStore.Set(section+".api_key", p.APIKey); err != nil {
			return fmt.Errorf("save %s api_key: %w", section, err)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the primary or fallback embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string, fallback bool) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !provider.SupportsEmbeddings() {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	target := &settings.Embedding
	if fallback {
		target = &settings.FallbackEmbedding
	}
	if err := s.configureProvider(target, provider, model, apiKey, domain.DefaultEmbeddingModels()); err != nil {
		return err
	}

	return s.Save(settings)
}

// SetCompletionProvider configures the primary or fallback completion provider.
func (s *SettingsService) SetCompletionProvider(provider domain.AIProvider, model, apiKey string, fallback bool) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid completion provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	target := &settings.Completion
	if fallback {
		target = &settings.FallbackCompletion
	}
	if err := s.configureProvider(target, provider, model, apiKey, domain.DefaultCompletionModels()); err != nil {
		return err
	}

	return s.Save(settings)
}

func (s *SettingsService) configureProvider(
	target *domain.ProviderSettings,
	provider domain.AIProvider,
	model, apiKey string,
	defaults map[domain.AIProvider]string,
) error {
	if apiKey == "" {
		apiKey = s.secret(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	target.Provider = provider
	target.Model = model
	if target.Model == "" {
		target.Model = defaults[provider]
	}

	// Local providers need a base URL; cloud providers use their default.
	if provider.IsLocal() {
		if target.BaseURL == "" {
			target.BaseURL = defaultOllamaURL
		}
	} else {
		target.BaseURL = ""
	}
	target.APIKey = apiKey

	return nil
}

// Validate checks that the configured values are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if settings.Embedding.Provider != "" && !settings.Embedding.Provider.SupportsEmbeddings() {
		errs = append(errs, fmt.Errorf("provider %s does not support embeddings", settings.Embedding.Provider))
	}
	if settings.FallbackEmbedding.IsConfigured() && !settings.Embedding.IsConfigured() {
		errs = append(errs, errors.New("fallback embedding provider set without a primary"))
	}
	if settings.FallbackCompletion.IsConfigured() && !settings.Completion.IsConfigured() {
		errs = append(errs, errors.New("fallback completion provider set without a primary"))
	}
	d := settings.Duplicates
	for _, th := range []float64{d.Threshold, d.AutoReportThreshold, d.AutoMergeThreshold} {
		if th < 0 || th > 1 {
			errs = append(errs, fmt.Errorf("duplicate threshold %v outside [0, 1]", th))
		}
	}
	if d.AutoMergeThreshold < d.AutoReportThreshold {
		errs = append(errs, errors.New("auto-merge threshold below auto-report threshold"))
	}
	if settings.Retrieval.ChunkMaxTokens <= 0 || settings.Retrieval.ContextBudget <= 0 {
		errs = append(errs, errors.New("chunk size and context budget must be positive"))
	}
	if settings.Jobs.Workers <= 0 {
		errs = append(errs, errors.New("jobs.workers must be positive"))
	}

	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateCompletionConfig validates the current completion configuration by pinging the provider.
func (s *SettingsService) ValidateCompletionConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateCompletion(&settings.Completion)
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get("scheduler.enabled"); exists {
		defaults.Enabled = s.configStore.GetBool("scheduler.enabled")
	}

	// Map from task ID to config key (underscore version for TOML)
	taskKeys := map[string]string{
		domain.TaskIDCleanup:       "cleanup",
		domain.TaskIDDuplicateScan: "duplicate_scan",
		domain.TaskIDAutoMerge:     "auto_merge",
	}

	for taskID, configKey := range taskKeys {
		prefix := "scheduler." + configKey + "."

		taskCfg := defaults.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}

		// Duration string like "45m", "12h"
		if interval := s.configStore.GetString(prefix + "interval"); interval != "" {
			if d, err := time.ParseDuration(interval); err == nil && d > 0 {
				taskCfg.Interval = d
			}
		}

		defaults.TaskConfigs[taskID] = taskCfg
	}

	return defaults
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getProvider(section string) domain.ProviderSettings {
	p := domain.ProviderSettings{
		Provider: domain.AIProvider(s.configStore.GetString(section + ".provider")),
		Model:    s.configStore.GetString(section + ".model"),
		BaseURL:  s.configStore.GetString(section + ".base_url"), // No default - empty is valid for cloud providers
		APIKey:   s.configStore.GetString(section + ".api_key"),
	}
	if !p.Provider.IsValid() {
		return domain.ProviderSettings{}
	}
	if p.APIKey == "" {
		p.APIKey = s.secret(p.Provider)
	}
	return p
}

func (s *SettingsService) secret(provider domain.AIProvider) string {
	if s.secrets == nil || provider == "" {
		return ""
	}
	return s.secrets(provider)
}

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
