package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

var noteImportCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import notes from files",
	Long: `Import a Markdown, HTML or text file, or every such file under a directory.

A file updates the note with the same title, or creates one. Unchanged
files are left alone, so importing a folder twice is safe. Markdown files
may start with a TOML front matter block (+++) setting title and tags.

With --watch the directory is followed until Ctrl+C: saved files are
imported again and deleted files remove their notes.`,
	Args: cobra.ExactArgs(1),
	RunE: runNoteImport,
}

var (
	importTags      []string
	importDryRun    bool
	importWatch     bool
	importJSON      bool
	importNoWorkers bool
)

func init() {
	noteImportCmd.Flags().StringSliceVarP(&importTags, "tag", "t", nil, "tag added to every imported note (repeatable)")
	noteImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report changes without writing notes")
	noteImportCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "keep notes in step with the directory")
	noteImportCmd.Flags().BoolVar(&importNoWorkers, "no-workers", false, "do not run background jobs while watching")
	noteImportCmd.Flags().BoolVar(&importJSON, "json", false, "output as JSON")

	noteCmd.AddCommand(noteImportCmd)
}

func runNoteImport(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}

	opts := driving.ImportOptions{
		OwnerID: ownerID,
		Tags:    importTags,
		DryRun:  importDryRun,
	}
	if importWatch {
		return runImportWatch(cmd, args[0], opts)
	}

	results, err := importService.Import(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}
	if importJSON {
		return writeJSON(cmd, results)
	}

	for _, r := range results {
		printImportResult(cmd, r)
	}
	summary := domain.Summarize(results)
	cmd.Println()
	cmd.Printf("Created %d, updated %d, unchanged %d, skipped %d, failed %d\n",
		summary[domain.ImportCreated], summary[domain.ImportUpdated], summary[domain.ImportUnchanged],
		summary[domain.ImportSkipped], summary[domain.ImportFailed])
	if importDryRun {
		cmd.Println(mutedStyle.Render("Dry run: no notes were written."))
	}
	if n := summary[domain.ImportFailed]; n > 0 {
		return fmt.Errorf("%d files failed to import", n)
	}
	return nil
}

func runImportWatch(cmd *cobra.Command, dir string, opts driving.ImportOptions) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("--watch needs a directory, got %s", dir)
	}

	watch := func(ctx context.Context) error {
		cmd.PrintErrf("Watching %s. Press Ctrl+C to stop.\n", dir)
		return importService.Watch(ctx, dir, opts, func(r domain.ImportResult) {
			if importJSON {
				writeJSON(cmd, r) //nolint:errcheck // best-effort stream
				return
			}
			printImportResult(cmd, r)
		})
	}

	if importNoWorkers || jobOrchestrator == nil {
		return ignoreCanceled(watch(cmd.Context()))
	}
	return runBackground(cmd, watch)
}

func printImportResult(cmd *cobra.Command, r domain.ImportResult) {
	label := importStyle(r.Action).Render(fmt.Sprintf("%-9s", r.Action))
	switch {
	case r.Action == domain.ImportFailed:
		cmd.Printf("%s %s: %s\n", label, r.Path, r.Error)
	case r.Title != "":
		cmd.Printf("%s %s %s\n", label, r.Path, mutedStyle.Render(fmt.Sprintf("(%s)", r.Title)))
	default:
		cmd.Printf("%s %s\n", label, r.Path)
	}
	if r.Action != domain.ImportFailed && r.Error != "" {
		cmd.Printf("  %s %s\n", warningStyle.Render("Warning:"), r.Error)
	}
}
