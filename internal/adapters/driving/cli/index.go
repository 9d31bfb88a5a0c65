package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexAll bool

var indexCmd = &cobra.Command{
	Use:   "index [note-id]",
	Short: "Rebuild the search index",
	Long: `Re-chunk and re-embed a single note, or every note with --all.

Notes are indexed when saved; run this after changing the embedding
provider or chunking settings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexAll, "all", false, "reindex every note")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	ctx := cmd.Context()

	if indexAll {
		result, err := indexService.ReindexAll(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}
		cmd.Printf("Reindexed %d notes\n", result.Processed)
		for _, f := range result.Failures {
			cmd.Println(errorStyle.Render(fmt.Sprintf("  %s: %s", f.ItemID, f.Error)))
		}
		if len(result.Failures) > 0 {
			return fmt.Errorf("%d notes failed to index", len(result.Failures))
		}
		return nil
	}

	if len(args) == 0 {
		return errors.New("specify a note ID or --all")
	}

	chunks, err := indexService.IndexNote(ctx, args[0])
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	cmd.Printf("Indexed note %s (%d chunks)\n", args[0], chunks)
	return nil
}
