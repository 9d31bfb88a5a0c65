package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	askNoStream  bool
	askBudget    int
	askMaxTokens int
	askTopNotes  int
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from your notes",
	Long: `Retrieves the most relevant note passages, fits them into a token budget
and asks the configured completion provider to answer using only them.

Answers stream as they are generated. Sources are listed at the end.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "print the answer once complete")
	askCmd.Flags().IntVar(&askBudget, "budget", 0, "context token budget (0 = settings default)")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "completion token ceiling (0 = settings default)")
	askCmd.Flags().IntVar(&askTopNotes, "top", 0, "number of notes to draw from (0 = settings default)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	question := strings.Join(args, " ")
	opts := domain.AskOptions{
		OwnerID:       ownerID,
		ContextBudget: askBudget,
		MaxTokens:     askMaxTokens,
		TopNotes:      askTopNotes,
	}

	if askNoStream || askJSON {
		answer, err := answerService.Ask(cmd.Context(), question, opts)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		if askJSON {
			return writeJSON(cmd, answer)
		}
		cmd.Println(answer.Text)
		printAnswerFooter(cmd, answer.Source, answer.Citations)
		return nil
	}

	var (
		citations []domain.Citation
		source    domain.AnswerSource
	)
	out := cmd.OutOrStdout()
	for ev := range answerService.AskStream(cmd.Context(), question, opts) {
		if ev.Err != nil {
			fmt.Fprintln(out) //nolint:errcheck // terminal output
			return fmt.Errorf("ask failed: %w", ev.Err)
		}
		if ev.Citations != nil {
			citations = ev.Citations
		}
		if ev.Source != "" {
			source = ev.Source
		}
		if ev.Delta != "" {
			fmt.Fprint(out, ev.Delta) //nolint:errcheck // terminal output
		}
	}
	fmt.Fprintln(out) //nolint:errcheck // terminal output

	printAnswerFooter(cmd, source, citations)
	return nil
}

func printAnswerFooter(cmd *cobra.Command, source domain.AnswerSource, citations []domain.Citation) {
	switch source {
	case domain.AnswerFromFallback:
		cmd.Println(mutedStyle.Render("(answered by the fallback provider)"))
	case domain.AnswerCanned, domain.AnswerDegraded:
		// Fixed messages already name their sources.
		return
	}

	if len(citations) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(headingStyle.Render("Sources:"))
	for i, c := range citations {
		cmd.Printf("  [%d] %s %s\n", i+1, c.Label(), mutedStyle.Render(c.NoteID))
	}
}
