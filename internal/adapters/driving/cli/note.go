package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
	Long:  `Add, edit, show, list or delete notes. Saving a note re-indexes it.`,
}

var noteAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a note",
	Long: `Add a note with the given title.

Content comes from --content, or from --file (use "-" to read stdin).`,
	Args: cobra.ExactArgs(1),
	RunE: runNoteAdd,
}

var noteEditCmd = &cobra.Command{
	Use:   "edit [note-id]",
	Short: "Edit a note",
	Long:  `Replace the title, content or tags of a note. Fields without a flag keep their value.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteEdit,
}

var noteShowCmd = &cobra.Command{
	Use:   "show [note-id]",
	Short: "Show a note and its index state",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteShow,
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Args:  cobra.NoArgs,
	RunE:  runNoteList,
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete [note-id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteDelete,
}

var (
	noteContent string
	noteFile    string
	noteTitle   string
	noteTags    []string
	noteLimit   int
	noteDeleted bool
	noteJSON    bool
)

func init() {
	for _, c := range []*cobra.Command{noteAddCmd, noteEditCmd} {
		c.Flags().StringVarP(&noteContent, "content", "c", "", "note content (markdown)")
		c.Flags().StringVarP(&noteFile, "file", "f", "", `read content from a file ("-" for stdin)`)
		c.Flags().StringSliceVarP(&noteTags, "tag", "t", nil, "tag (repeatable)")
	}
	noteEditCmd.Flags().StringVar(&noteTitle, "title", "", "new title")

	noteListCmd.Flags().StringSliceVarP(&noteTags, "tag", "t", nil, "only notes with all of these tags")
	noteListCmd.Flags().IntVarP(&noteLimit, "limit", "n", 50, "maximum number of notes")
	noteListCmd.Flags().BoolVar(&noteDeleted, "deleted", false, "include deleted notes")
	noteListCmd.Flags().BoolVar(&noteJSON, "json", false, "output as JSON")

	noteShowCmd.Flags().BoolVar(&noteJSON, "json", false, "output as JSON")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteEditCmd)
	noteCmd.AddCommand(noteShowCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteDeleteCmd)
	rootCmd.AddCommand(noteCmd)
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	content, err := readNoteContent(cmd)
	if err != nil {
		return err
	}

	note, err := noteService.Create(cmd.Context(), driving.NoteInput{
		OwnerID: ownerID,
		Title:   args[0],
		Content: content,
		Tags:    noteTags,
	})
	if note == nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	cmd.Printf("Created note %s\n", note.ID)
	if err != nil {
		cmd.Println(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
	}
	return nil
}

func runNoteEdit(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	ctx := cmd.Context()
	note, err := noteService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	input := driving.NoteInput{
		OwnerID: note.OwnerID,
		Title:   note.Title,
		Content: note.Content,
		Tags:    note.Tags,
	}
	flags := cmd.Flags()
	if flags.Changed("title") {
		input.Title = noteTitle
	}
	if flags.Changed("content") || flags.Changed("file") {
		content, err := readNoteContent(cmd)
		if err != nil {
			return err
		}
		input.Content = content
	}
	if flags.Changed("tag") {
		input.Tags = noteTags
	}

	updated, err := noteService.Update(ctx, note.ID, input)
	if updated == nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	cmd.Printf("Updated note %s\n", updated.ID)
	if err != nil {
		cmd.Println(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
	}
	return nil
}

func runNoteShow(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	ctx := cmd.Context()
	note, err := noteService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	if noteJSON {
		return writeJSON(cmd, note)
	}

	cmd.Println(titleStyle.Render(note.Title))
	cmd.Println(mutedStyle.Render(fmt.Sprintf("ID: %s  Updated: %s", note.ID, note.UpdatedAt.Format("2006-01-02 15:04"))))
	if len(note.Tags) > 0 {
		cmd.Printf("Tags: %s\n", strings.Join(note.Tags, ", "))
	}
	if note.Deleted {
		cmd.Println(warningStyle.Render("This note has been deleted."))
	}

	if details, err := noteService.GetDetails(ctx, note.ID); err == nil && details != nil {
		cmd.Printf("Words: %d  Chunks: %d  Embedded: %d", details.WordCount, details.ChunkCount, details.EmbeddedChunks)
		if details.EmbeddingModel != "" {
			cmd.Printf(" (%s)", details.EmbeddingModel)
		}
		cmd.Println()
	}

	cmd.Println()
	cmd.Println(note.Content)
	return nil
}

func runNoteList(cmd *cobra.Command, _ []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	notes, err := noteService.List(cmd.Context(), domain.NoteFilter{
		OwnerID:        ownerID,
		Tags:           noteTags,
		IncludeDeleted: noteDeleted,
		Limit:          noteLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}

	if noteJSON {
		return writeJSON(cmd, notes)
	}

	if len(notes) == 0 {
		cmd.Println("No notes found.")
		return nil
	}

	for i := range notes {
		n := &notes[i]
		line := fmt.Sprintf("  %s  %s", mutedStyle.Render(n.ID), n.Title)
		if len(n.Tags) > 0 {
			line += "  " + scoreStyle.Render("#"+strings.Join(n.Tags, " #"))
		}
		if n.Deleted {
			line += "  " + warningStyle.Render("(deleted)")
		}
		cmd.Println(line)
	}
	cmd.Printf("\nTotal: %d notes\n", len(notes))
	return nil
}

func runNoteDelete(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	if err := noteService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	cmd.Printf("Deleted note %s\n", args[0])
	return nil
}

// readNoteContent resolves note content from --content or --file.
func readNoteContent(cmd *cobra.Command) (string, error) {
	if noteFile == "" {
		return noteContent, nil
	}
	if noteContent != "" {
		return "", errors.New("use either --content or --file, not both")
	}

	var (
		data []byte
		err  error
	)
	if noteFile == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(noteFile)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return string(data), nil
}

// writeJSON prints v as indented JSON on stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
