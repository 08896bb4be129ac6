package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask a question about a document",
	Long: `Retrieves the chunks most similar to the question, generates an answer
from them and scores how well the answer is supported.

A question that names a section, such as "what is problem statement 2 about",
is answered from that section only.

Examples:
  querynest ask what are the deliverables
  querynest ask --section "problem statement 1" what data is provided
  querynest ask --doc 3f2a... --top-k 8 summarise the constraints`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var askOpts struct {
	documentID string
	section    string
	topK       int
	noValidate bool
}

func init() {
	askCmd.Flags().StringVarP(&askOpts.documentID, "doc", "d", "", "Document ID (default: active document)")
	askCmd.Flags().StringVarP(&askOpts.section, "section", "s", "", "Restrict retrieval to a section")
	askCmd.Flags().IntVarP(&askOpts.topK, "top-k", "k", 0, "Number of chunks to retrieve (default from settings)")
	askCmd.Flags().BoolVar(&askOpts.noValidate, "no-validate", false, "Skip answer validation")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireQueries(); err != nil {
		return err
	}

	result, err := queryService.AnswerQuery(cmd.Context(), driving.AnswerRequest{
		DocumentID:     askOpts.documentID,
		Query:          strings.Join(args, " "),
		Section:        askOpts.section,
		TopK:           askOpts.topK,
		SkipValidation: askOpts.noValidate,
	})
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	return renderResult(cmd.OutOrStdout(), result)
}
