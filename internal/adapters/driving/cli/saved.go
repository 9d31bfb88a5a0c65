package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	savedLimit int
	savedJSON  bool
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage saved searches and search history",
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved searches",
	Args:  cobra.NoArgs,
	RunE:  runSavedList,
}

var savedAddCmd = &cobra.Command{
	Use:   "add [name] [query]",
	Short: "Save a search query",
	Args:  cobra.ExactArgs(2),
	RunE:  runSavedAdd,
}

var savedDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved search",
	Args:  cobra.ExactArgs(1),
	RunE:  runSavedDelete,
}

var savedRunCmd = &cobra.Command{
	Use:   "run [id-or-name]",
	Short: "Run a saved search",
	Args:  cobra.ExactArgs(1),
	RunE:  runSavedRun,
}

var savedHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	Args:  cobra.NoArgs,
	RunE:  runSavedHistory,
}

func init() {
	savedRunCmd.Flags().IntVarP(&savedLimit, "limit", "n", 10, "maximum number of results")
	savedHistoryCmd.Flags().IntVarP(&savedLimit, "limit", "n", 20, "maximum number of entries")
	savedListCmd.Flags().BoolVar(&savedJSON, "json", false, "output as JSON")
	savedHistoryCmd.Flags().BoolVar(&savedJSON, "json", false, "output as JSON")

	savedCmd.AddCommand(savedListCmd)
	savedCmd.AddCommand(savedAddCmd)
	savedCmd.AddCommand(savedDeleteCmd)
	savedCmd.AddCommand(savedRunCmd)
	savedCmd.AddCommand(savedHistoryCmd)
	rootCmd.AddCommand(savedCmd)
}

func runSavedList(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	saved, err := searchService.ListSavedSearches(cmd.Context(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to list saved searches: %w", err)
	}

	if savedJSON {
		return writeJSON(cmd, saved)
	}

	if len(saved) == 0 {
		cmd.Println("No saved searches.")
		return nil
	}
	for i := range saved {
		cmd.Printf("  %s  %s  %s\n", mutedStyle.Render(saved[i].ID), titleStyle.Render(saved[i].Name), saved[i].Query)
	}
	return nil
}

func runSavedAdd(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	saved, err := searchService.SaveSearch(cmd.Context(), ownerID, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to save search: %w", err)
	}
	cmd.Printf("Saved search %q (%s)\n", saved.Name, saved.ID)
	return nil
}

func runSavedDelete(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	if err := searchService.DeleteSavedSearch(cmd.Context(), ownerID, args[0]); err != nil {
		return fmt.Errorf("failed to delete saved search: %w", err)
	}
	cmd.Printf("Deleted saved search %s\n", args[0])
	return nil
}

func runSavedRun(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	ctx := cmd.Context()
	saved, err := searchService.ListSavedSearches(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list saved searches: %w", err)
	}

	var match *domain.SavedSearch
	for i := range saved {
		if saved[i].ID == args[0] || saved[i].Name == args[0] {
			match = &saved[i]
			break
		}
	}
	if match == nil {
		return fmt.Errorf("saved search %q: %w", args[0], domain.ErrNotFound)
	}

	results, err := searchService.Search(ctx, match.Query, domain.SearchOptions{
		OwnerID: ownerID,
		Limit:   savedLimit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	cmd.Println(mutedStyle.Render(fmt.Sprintf("%s: %s", match.Name, match.Query)))
	return outputSearchTable(cmd, results, 0, false)
}

func runSavedHistory(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	entries, err := searchService.History(cmd.Context(), ownerID, savedLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if savedJSON {
		return writeJSON(cmd, entries)
	}

	if len(entries) == 0 {
		cmd.Println("No searches yet.")
		return nil
	}
	for i := range entries {
		e := &entries[i]
		cmd.Printf("  %s  %s %s\n",
			mutedStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04")),
			e.Query,
			mutedStyle.Render(fmt.Sprintf("(%d results)", e.ResultCount)))
	}
	return nil
}
