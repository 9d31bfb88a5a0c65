// Package cli provides the recall command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

var (
	version = "dev"
	verbose bool
)

// Service instances injected by main.
var (
	noteService      driving.NoteService
	indexService     driving.IndexService
	searchService    driving.SearchService
	answerService    driving.AnswerService
	duplicateService driving.DuplicateService
	jobOrchestrator  driving.JobOrchestrator
	scheduler        driving.Scheduler
	settingsService  driving.SettingsService
	importService    driving.ImportService
	ownerID          = domain.DefaultOwnerID
)

// Services groups the driving ports the CLI dispatches to.
type Services struct {
	Notes      driving.NoteService
	Index      driving.IndexService
	Search     driving.SearchService
	Answer     driving.AnswerService
	Duplicates driving.DuplicateService
	Jobs       driving.JobOrchestrator
	Scheduler  driving.Scheduler
	Settings   driving.SettingsService
	Import     driving.ImportService
	OwnerID    string
}

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Search, ask and tidy your personal notes",
	Long: `recall keeps personal markdown notes in a local index and finds them again.

It ranks notes by keywords and meaning, answers questions from your notes
with citations, and finds notes that duplicate each other.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetServices injects the services used by commands.
func SetServices(s *Services) {
	noteService = s.Notes
	indexService = s.Index
	searchService = s.Search
	answerService = s.Answer
	duplicateService = s.Duplicates
	jobOrchestrator = s.Jobs
	scheduler = s.Scheduler
	settingsService = s.Settings
	importService = s.Import
	ownerID = s.OwnerID
	if ownerID == "" {
		ownerID = domain.DefaultOwnerID
	}
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ignoreCanceled treats shutdown by signal as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
