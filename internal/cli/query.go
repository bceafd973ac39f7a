package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ragledger/internal/helper"
	"ragledger/internal/models"
)

var (
	queryTopK   int
	queryFileID string
	queryJSON   bool
)

var (
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question about ingested documents",
	Long: `Retrieve the chunks most similar to the question and answer from them.

Examples:
  ragledger query "What was the closing balance in March?"
  ragledger query "List the card payments" --top-k 10 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", models.DefaultTopK, "number of chunks to retrieve (1-20)")
	queryCmd.Flags().StringVar(&queryFileID, "file-id", "", "only search chunks of this file")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryFileID != "" && !helper.IsUUID(queryFileID) {
		return models.ErrInvalidFileID
	}
	var filter models.Filter
	if queryFileID != "" {
		filter = models.Filter{models.MetaFileID: queryFileID}
	}

	ctx := commandContext(cmd)
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ans, err := app.Querier.Query(ctx, strings.Join(args, " "), queryTopK, filter)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		helper.PrettyPrint(cmd.OutOrStdout(), ans)
		return nil
	}
	printAnswer(cmd.OutOrStdout(), ans)
	return nil
}

func printAnswer(w io.Writer, ans *models.Answer) {
	fmt.Fprintln(w, answerStyle.Render(ans.Answer))
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("\nSources (%d):", len(ans.Sources))))
	for i, s := range ans.Sources {
		loc := s.Filename
		if p, ok := s.Page.Get(); ok {
			loc = fmt.Sprintf("%s, page %d", s.Filename, p)
		}
		fmt.Fprintf(w, "%d. %s %s\n", i+1, loc, scoreStyle.Render(fmt.Sprintf("[%.3f]", s.SimilarityScore)))
		fmt.Fprintln(w, mutedStyle.Render("   "+snippet(s.Content, 160)))
	}
}

// snippet flattens whitespace and cuts to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
