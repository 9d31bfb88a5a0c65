package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	providerName     string
	providerModel    string
	providerAPIKey   string
	providerFallback bool
	skipValidate     bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers and other options.

API keys may also come from the environment (RECALL_OPENAI_API_KEY,
OPENAI_API_KEY, ...) or from ~/.recall/.env.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long: `Configure the embedding provider used for semantic search and duplicate detection.

Providers: ollama, openai. Use --fallback to set the provider used once
the primary reports that its quota is exhausted.`,
	Args: cobra.NoArgs,
	RunE: runSettingsEmbedding,
}

var settingsCompletionCmd = &cobra.Command{
	Use:   "completion",
	Short: "Configure the completion provider",
	Long: `Configure the completion provider used to answer questions.

Providers: ollama, openai, anthropic. Use --fallback to set the provider
used once the primary reports that its quota is exhausted.`,
	Args: cobra.NoArgs,
	RunE: runSettingsCompletion,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and provider connectivity",
	Args:  cobra.NoArgs,
	RunE:  runSettingsValidate,
}

func init() {
	for _, c := range []*cobra.Command{settingsEmbeddingCmd, settingsCompletionCmd} {
		c.Flags().StringVar(&providerName, "provider", "", "provider name")
		c.Flags().StringVar(&providerModel, "model", "", "model name (default depends on provider)")
		c.Flags().StringVar(&providerAPIKey, "api-key", "", "API key (prompted for when required and omitted)")
		c.Flags().BoolVar(&providerFallback, "fallback", false, "configure the fallback provider")
		c.Flags().BoolVar(&skipValidate, "skip-validate", false, "do not contact the provider")
		_ = c.MarkFlagRequired("provider")
	}

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsCompletionCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(titleStyle.Render("Current Settings"))
	cmd.Println()

	printProvider(cmd, "Embedding", settings.Embedding)
	if settings.FallbackEmbedding.Provider != "" {
		printProvider(cmd, "Embedding Fallback", settings.FallbackEmbedding)
	}
	printProvider(cmd, "Completion", settings.Completion)
	if settings.FallbackCompletion.Provider != "" {
		printProvider(cmd, "Completion Fallback", settings.FallbackCompletion)
	}

	r := settings.Retrieval
	cmd.Println(sectionHeader("Retrieval"))
	cmd.Printf("  Chunk size: %d tokens (overlap %d words, min %d chars)\n", r.ChunkMaxTokens, r.ChunkOverlapWords, r.ChunkMinChars)
	cmd.Printf("  Context budget: %d tokens\n", r.ContextBudget)
	cmd.Printf("  Completion tokens: %d\n", r.MaxCompletionTokens)
	cmd.Printf("  Notes per answer: %d\n", r.TopNotes)
	cmd.Println()

	d := settings.Duplicates
	cmd.Println(sectionHeader("Duplicates"))
	cmd.Printf("  Threshold: %.2f\n", d.Threshold)
	cmd.Printf("  Auto-report: %.2f\n", d.AutoReportThreshold)
	cmd.Printf("  Auto-merge: %.2f (batch %d)\n", d.AutoMergeThreshold, d.AutoMergeBatch)
	cmd.Println()

	cmd.Println(sectionHeader("Jobs"))
	cmd.Printf("  Workers: %d\n", settings.Jobs.Workers)
	cmd.Printf("  Poll interval: %s\n", settings.Jobs.PollInterval)
	cmd.Printf("  Retention: %d days\n", settings.Jobs.RetentionDays)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
	} else {
		cmd.Println(successStyle.Render("Configuration is valid."))
	}

	return nil
}

func printProvider(cmd *cobra.Command, name string, p domain.ProviderSettings) {
	cmd.Println(sectionHeader(name))
	if p.Provider == "" {
		cmd.Println("  Provider: (not set)")
		cmd.Println()
		return
	}
	cmd.Printf("  Provider: %s\n", p.Provider.Description())
	cmd.Printf("  Model: %s\n", p.Model)
	if p.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", p.BaseURL)
	}
	if p.Provider.RequiresAPIKey() {
		if p.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(p.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !p.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider := domain.AIProvider(providerName)
	apiKey := promptAPIKey(cmd, provider)
	if err := settingsService.SetEmbeddingProvider(provider, providerModel, apiKey, providerFallback); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	if !skipValidate && !providerFallback {
		cmd.Print("Validating configuration... ")
		if err := settingsService.ValidateEmbeddingConfig(); err != nil {
			cmd.Println(errorStyle.Render("FAILED"))
			return fmt.Errorf("embedding configuration validation failed: %w", err)
		}
		cmd.Println(successStyle.Render("OK"))
	}

	cmd.Printf("Embedding %s configured: %s\n", providerRole(), provider.Description())
	cmd.Println(mutedStyle.Render("Run 'recall index --all' to embed existing notes."))
	return nil
}

func runSettingsCompletion(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider := domain.AIProvider(providerName)
	apiKey := promptAPIKey(cmd, provider)
	if err := settingsService.SetCompletionProvider(provider, providerModel, apiKey, providerFallback); err != nil {
		return fmt.Errorf("failed to configure completion provider: %w", err)
	}

	if !skipValidate && !providerFallback {
		cmd.Print("Validating configuration... ")
		if err := settingsService.ValidateCompletionConfig(); err != nil {
			cmd.Println(errorStyle.Render("FAILED"))
			return fmt.Errorf("completion configuration validation failed: %w", err)
		}
		cmd.Println(successStyle.Render("OK"))
	}

	cmd.Printf("Completion %s configured: %s\n", providerRole(), provider.Description())
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	var failed bool
	check := func(name string, fn func() error) {
		cmd.Printf("%-12s ", name)
		if err := fn(); err != nil {
			failed = true
			cmd.Println(errorStyle.Render("FAILED: " + err.Error()))
			return
		}
		cmd.Println(successStyle.Render("OK"))
	}

	check("settings", settingsService.Validate)
	if settings.Embedding.Provider != "" {
		check("embedding", settingsService.ValidateEmbeddingConfig)
	}
	if settings.Completion.Provider != "" {
		check("completion", settingsService.ValidateCompletionConfig)
	}

	if failed {
		return errors.New("validation failed")
	}
	return nil
}

func providerRole() string {
	if providerFallback {
		return "fallback"
	}
	return "provider"
}

// promptAPIKey returns --api-key, or asks for one on an interactive
// terminal when the provider needs a key. An empty result lets the
// settings service fall back to the environment.
func promptAPIKey(cmd *cobra.Command, provider domain.AIProvider) string {
	if providerAPIKey != "" || !provider.RequiresAPIKey() {
		return providerAPIKey
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ""
	}
	cmd.Printf("Enter %s API key (leave empty to use the environment): ", provider)
	key := readPassword(fd)
	cmd.Println()
	return key
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(fd int) string {
	password, err := term.ReadPassword(fd)
	if err == nil {
		return strings.TrimSpace(string(password))
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
