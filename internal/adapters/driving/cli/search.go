package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	searchLimit   int
	searchOffset  int
	searchSort    string
	searchTags    []string
	searchLexical bool
	searchJSON    bool
	searchSave    string
	searchReasons bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search notes",
	Long: `Ranks notes by exact phrases, keywords, tags, recency and past clicks.
When an embedding provider is configured, semantic similarity is added.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "skip this many results")
	searchCmd.Flags().StringVar(&searchSort, "sort", "relevance", "order: relevance, updated, created or title")
	searchCmd.Flags().StringSliceVarP(&searchTags, "tag", "t", nil, "only notes with all of these tags")
	searchCmd.Flags().BoolVar(&searchLexical, "lexical", false, "skip semantic scoring")
	searchCmd.Flags().BoolVar(&searchReasons, "why", false, "show why each result matched")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchSave, "save", "", "save this query under a name")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	sortBy := domain.SortKey(searchSort)
	if !sortBy.IsValid() {
		return fmt.Errorf("unknown sort %q", searchSort)
	}

	ctx := cmd.Context()
	opts := domain.SearchOptions{
		OwnerID: ownerID,
		Limit:   searchLimit,
		Offset:  searchOffset,
		SortBy:  sortBy,
		Tags:    searchTags,
		Lexical: searchLexical,
	}

	results, err := searchService.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchSave != "" {
		saved, err := searchService.SaveSearch(ctx, ownerID, searchSave, query)
		if err != nil {
			return fmt.Errorf("failed to save search: %w", err)
		}
		if !searchJSON {
			cmd.Printf("Saved search %q (%s)\n\n", saved.Name, saved.ID)
		}
	}

	if searchJSON {
		return writeJSON(cmd, results)
	}

	return outputSearchTable(cmd, results, searchOffset, searchReasons)
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult, offset int, reasons bool) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		title := r.Note.Title
		if title == "" {
			title = r.Note.ID
		}

		cmd.Printf("  [%d] %s %s\n", offset+i+1, titleStyle.Render(title), scoreStyle.Render(fmt.Sprintf("(%.1f)", r.Score)))
		meta := mutedStyle.Render(r.Note.ID)
		if len(r.Note.Tags) > 0 {
			meta += "  #" + strings.Join(r.Note.Tags, " #")
		}
		if r.Chunk != nil && r.Chunk.Heading != "" {
			meta += "  § " + r.Chunk.Heading
		}
		cmd.Printf("      %s\n", meta)
		if r.Highlight != "" {
			cmd.Printf("      %s\n", r.Highlight)
		}
		if reasons {
			for _, reason := range r.Reasons {
				cmd.Printf("      %s\n", mutedStyle.Render("- "+reason))
			}
		}
		cmd.Println()
	}

	return nil
}
