package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	dupFindThreshold float64
	dupScanThreshold float64
	dupStatus        string
	dupMin           float64
	dupNote          string
	dupLimit         int
	dupJSON          bool
	dupWait          bool
)

var duplicatesCmd = &cobra.Command{
	Use:     "duplicates",
	Aliases: []string{"dup"},
	Short:   "Find and resolve duplicate notes",
	Long: `Compare notes by title, content and meaning, and review the reports
produced by background scans.

Scores of 0.95 and above suggest a merge; 0.85 and above suggest a review.`,
}

var duplicatesFindCmd = &cobra.Command{
	Use:   "find [note-id]",
	Short: "Find notes similar to a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runDuplicatesFind,
}

var duplicatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List duplicate reports",
	Args:  cobra.NoArgs,
	RunE:  runDuplicatesList,
}

var duplicatesConfirmCmd = &cobra.Command{
	Use:   "confirm [report-id]",
	Short: "Confirm a report as a real duplicate",
	Args:  cobra.ExactArgs(1),
	RunE:  runDuplicatesConfirm,
}

var duplicatesDismissCmd = &cobra.Command{
	Use:   "dismiss [report-id]",
	Short: "Dismiss a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runDuplicatesDismiss,
}

var duplicatesMergeCmd = &cobra.Command{
	Use:   "merge [report-id]",
	Short: "Merge the duplicate into the original note",
	Long: `Merge a reported pair. The duplicate's content is appended to the original,
tags are combined and the duplicate is deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDuplicatesMerge,
}

var duplicatesScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Queue a scan of all notes",
	Args:  cobra.NoArgs,
	RunE:  runDuplicatesScan,
}

func init() {
	duplicatesFindCmd.Flags().Float64Var(&dupFindThreshold, "threshold", 0.7, "minimum similarity between 0 and 1")
	duplicatesFindCmd.Flags().BoolVar(&dupJSON, "json", false, "output as JSON")

	duplicatesListCmd.Flags().StringVar(&dupStatus, "status", "pending", "pending, confirmed, dismissed, merged or all")
	duplicatesListCmd.Flags().Float64Var(&dupMin, "min", 0, "minimum similarity")
	duplicatesListCmd.Flags().StringVar(&dupNote, "note", "", "only reports involving this note")
	duplicatesListCmd.Flags().IntVarP(&dupLimit, "limit", "n", 50, "maximum number of reports")
	duplicatesListCmd.Flags().BoolVar(&dupJSON, "json", false, "output as JSON")

	duplicatesScanCmd.Flags().Float64Var(&dupScanThreshold, "threshold", 0, "report threshold (0 = settings default)")
	duplicatesScanCmd.Flags().BoolVar(&dupWait, "wait", false, "run queued jobs now instead of leaving them to workers")

	duplicatesCmd.AddCommand(duplicatesFindCmd)
	duplicatesCmd.AddCommand(duplicatesListCmd)
	duplicatesCmd.AddCommand(duplicatesConfirmCmd)
	duplicatesCmd.AddCommand(duplicatesDismissCmd)
	duplicatesCmd.AddCommand(duplicatesMergeCmd)
	duplicatesCmd.AddCommand(duplicatesScanCmd)
	rootCmd.AddCommand(duplicatesCmd)
}

func runDuplicatesFind(cmd *cobra.Command, args []string) error {
	if duplicateService == nil {
		return errors.New("duplicate service not configured")
	}

	noteID := args[0]
	ctx := cmd.Context()
	matches, err := duplicateService.FindDuplicates(ctx, noteID, dupFindThreshold)
	if err != nil {
		return fmt.Errorf("duplicate check failed: %w", err)
	}

	if dupJSON {
		return writeJSON(cmd, matches)
	}

	if len(matches) == 0 {
		cmd.Println("No duplicates found.")
		return nil
	}

	cmd.Printf("Notes similar to %s:\n\n", noteTitleOrID(ctx, noteID))
	for _, m := range matches {
		other := m.NoteB
		if other == noteID {
			other = m.NoteA
		}
		cmd.Printf("  %s %s  %s\n",
			scoreStyle.Render(fmt.Sprintf("%.2f", m.Score)),
			noteTitleOrID(ctx, other),
			actionStyle(m.Action).Render(string(m.Action)))
		cmd.Println(mutedStyle.Render(fmt.Sprintf("       %s  title %.2f  content %.2f  semantic %.2f",
			other, m.Title, m.Content, m.Semantic)))
	}
	return nil
}

func runDuplicatesList(cmd *cobra.Command, _ []string) error {
	if duplicateService == nil {
		return errors.New("duplicate service not configured")
	}

	filter := domain.ReportFilter{
		OwnerID:       ownerID,
		MinSimilarity: dupMin,
		NoteID:        dupNote,
		Limit:         dupLimit,
	}
	if dupStatus != "all" {
		filter.Status = domain.ReportStatus(dupStatus)
	}

	ctx := cmd.Context()
	reports, err := duplicateService.ListReports(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if dupJSON {
		return writeJSON(cmd, reports)
	}

	if len(reports) == 0 {
		cmd.Println("No duplicate reports.")
		return nil
	}

	for i := range reports {
		r := &reports[i]
		cmd.Printf("  %s  %s\n", mutedStyle.Render(r.ID), scoreStyle.Render(fmt.Sprintf("%.2f %s", r.Similarity, r.SimilarityType)))
		cmd.Printf("      %s\n", noteTitleOrID(ctx, r.OriginalNoteID))
		cmd.Printf("      %s\n", noteTitleOrID(ctx, r.DuplicateNoteID))
		cmd.Printf("      %s  %s\n", actionStyle(r.SuggestedAction).Render(string(r.SuggestedAction)), mutedStyle.Render(string(r.Status)))
		cmd.Println()
	}
	cmd.Printf("Total: %d reports\n", len(reports))
	return nil
}

func runDuplicatesConfirm(cmd *cobra.Command, args []string) error {
	if duplicateService == nil {
		return errors.New("duplicate service not configured")
	}
	if err := duplicateService.Confirm(cmd.Context(), ownerID, args[0]); err != nil {
		return fmt.Errorf("failed to confirm report: %w", err)
	}
	cmd.Printf("Confirmed report %s\n", args[0])
	return nil
}

func runDuplicatesDismiss(cmd *cobra.Command, args []string) error {
	if duplicateService == nil {
		return errors.New("duplicate service not configured")
	}
	if err := duplicateService.Dismiss(cmd.Context(), ownerID, args[0]); err != nil {
		return fmt.Errorf("failed to dismiss report: %w", err)
	}
	cmd.Printf("Dismissed report %s\n", args[0])
	return nil
}

func runDuplicatesMerge(cmd *cobra.Command, args []string) error {
	if duplicateService == nil {
		return errors.New("duplicate service not configured")
	}
	merged, err := duplicateService.Merge(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to merge: %w", err)
	}
	cmd.Println(successStyle.Render(fmt.Sprintf("Merged into %q (%s)", merged.Title, merged.ID)))
	return nil
}

func runDuplicatesScan(cmd *cobra.Command, _ []string) error {
	if jobOrchestrator == nil {
		return errors.New("job orchestrator not configured")
	}

	ctx := cmd.Context()
	payload := domain.DetectDuplicatesPayload{OwnerID: ownerID, Threshold: dupScanThreshold}
	jobID, err := jobOrchestrator.Enqueue(ctx, domain.JobDetectDuplicates, payload, domain.JobOptions{})
	if err != nil {
		return fmt.Errorf("failed to queue scan: %w", err)
	}
	cmd.Printf("Queued duplicate scan %s\n", jobID)

	if !dupWait {
		cmd.Println(mutedStyle.Render("Run 'recall jobs work' or 'recall jobs drain' to process it."))
		return nil
	}
	return drainJobs(cmd)
}

// noteTitleOrID returns a display label for a note, falling back to its ID.
func noteTitleOrID(ctx context.Context, noteID string) string {
	if noteService == nil {
		return noteID
	}
	note, err := noteService.Get(ctx, noteID)
	if err != nil || note == nil || note.Title == "" {
		return noteID
	}
	return note.Title
}
