package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

var summarizeCmd = &cobra.Command{
	Use:     "summarize [target...]",
	Aliases: []string{"summarise"},
	Short:   "Summarise a document, section or topic",
	Long: `Produces a summary at one of three scopes:

  full     the whole document (default)
  section  one section, named by the target
  topic    chunks about the target topic

Examples:
  querynest summarize
  querynest summarize --scope section "problem statement 2"
  querynest summarize --scope topic evaluation criteria`,
	RunE: runSummarize,
}

var summarizeOpts struct {
	documentID string
	scope      string
	validate   bool
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeOpts.documentID, "doc", "d", "", "Document ID (default: active document)")
	summarizeCmd.Flags().StringVar(&summarizeOpts.scope, "scope", string(domain.ScopeFull), "Scope: full, section or topic")
	summarizeCmd.Flags().BoolVar(&summarizeOpts.validate, "validate", false, "Validate the summary against its source")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if err := requireQueries(); err != nil {
		return err
	}

	scope := domain.SummaryScope(strings.ToLower(summarizeOpts.scope))
	if _, ok := scope.Mode(); !ok {
		return fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidInput, summarizeOpts.scope)
	}

	result, err := queryService.Summarize(cmd.Context(), driving.SummaryRequest{
		DocumentID: summarizeOpts.documentID,
		Scope:      scope,
		Target:     strings.Join(args, " "),
		Validate:   summarizeOpts.validate,
	})
	if err != nil {
		return fmt.Errorf("failed to summarise: %w", err)
	}

	return renderResult(cmd.OutOrStdout(), result)
}
