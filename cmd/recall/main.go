// Command recall is a personal notes search, answering and deduplication tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/custodia-labs/recall/internal/adapters/driven/ai"
	"github.com/custodia-labs/recall/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall/internal/adapters/driving/cli"
	"github.com/custodia-labs/recall/internal/connectors/filesystem"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/normalisers"
	"github.com/custodia-labs/recall/internal/postprocessors"
)

// version is set via ldflags during build.
var version = "dev"

// homeEnv overrides the data directory (default ~/.recall).
const homeEnv = "RECALL_HOME"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Wiring logs before cobra parses flags.
	logger.SetVerbose(slices.Contains(os.Args[1:], "--verbose") || slices.Contains(os.Args[1:], "-v"))

	dir, err := homeDir()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	if err := file.LoadEnvFile(dir); err != nil {
		logger.Warn("loading %s: %v", file.EnvFileName, err)
	}

	configStore, err := file.NewConfigStore(dir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settingsService.SetSecretSource(file.EnvSecrets)

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	store, err := sqlite.NewStore(filepath.Join(dir, "data"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close() //nolint:errcheck // shutdown

	providers := ai.Init(settings)
	defer providers.Close()

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Retrieval)
	if err != nil {
		return fmt.Errorf("building chunk pipeline: %w", err)
	}

	embeddings := services.NewEmbeddings(providers.Embedding, providers.FallbackEmbedding, settings.Retrieval.EmbeddingsPerSecond)
	indexService := services.NewIndexService(store.NoteStore(), store.ChunkStore(), pipeline, embeddings)

	jobs := services.NewJobOrchestrator(store.JobStore(), settings.Jobs.Workers, settings.Jobs.PollInterval)

	noteService := services.NewNoteService(store.NoteStore(), store.ChunkStore(), store.RankingStore(), indexService)
	noteService.SetJobEnqueuer(jobs)
	noteService.SetDefaultOwner(settings.OwnerID)

	importService := services.NewImportService(noteService, normalisers.Default(), filesystem.Open)
	importService.SetDefaultOwner(settings.OwnerID)

	searchService := services.NewSearchService(
		store.NoteStore(), store.ChunkStore(), store.RankingStore(), store.HistoryStore(), embeddings,
	)
	searchService.SetJobEnqueuer(jobs)
	searchService.SetDefaultOwner(settings.OwnerID)
	searchService.SetRankingTopN(settings.Retrieval.RankingTopN)

	prompts, err := file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return fmt.Errorf("opening prompts: %w", err)
	}
	answerService := services.NewAnswerService(
		searchService, providers.Completion, providers.FallbackCompletion, settings.Retrieval,
	)
	answerService.SetPromptStore(prompts)

	duplicateService := services.NewDuplicateService(
		store.NoteStore(), store.ChunkStore(), store.DuplicateStore(), store.RankingStore(),
		indexService, settings.Duplicates,
	)

	services.NewMaintenanceJobs(
		store.RankingStore(), store.DuplicateStore(), store.JobStore(), duplicateService, *settings,
	).Register(jobs)

	scheduler := services.NewScheduler(settingsService.GetSchedulerConfig(), store.SchedulerStore(), jobs, settings.OwnerID)

	cli.SetVersion(version)
	cli.SetServices(&cli.Services{
		Notes:      noteService,
		Index:      indexService,
		Search:     searchService,
		Answer:     answerService,
		Duplicates: duplicateService,
		Jobs:       jobs,
		Scheduler:  scheduler,
		Settings:   settingsService,
		Import:     importService,
		OwnerID:    settings.OwnerID,
	})

	return cli.Execute(ctx)
}

// homeDir returns $RECALL_HOME or ~/.recall.
func homeDir() (string, error) {
	if dir := os.Getenv(homeEnv); dir != "" {
		return dir, nil
	}
	return file.DefaultDir()
}
