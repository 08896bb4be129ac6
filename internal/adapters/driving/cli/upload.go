package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload documents",
	Long: `Extracts text from each file, splits it into sections and indexes the
sections for questions. The last uploaded document becomes active.

Supported formats: PDF, DOCX, HTML, Markdown and plain text.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	views := make([]documentView, 0, len(args))
	var failed int
	for _, path := range args {
		doc, err := documentService.ProcessFile(cmd.Context(), path)
		view, err := uploadView(doc, err)
		if err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", path, err)
			continue
		}
		views = append(views, view)
	}

	if done, err := writeStructured(cmd.OutOrStdout(), views); done {
		if err != nil {
			return err
		}
	} else {
		for i := range views {
			printUploaded(cmd.OutOrStdout(), &views[i])
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}

// uploadView accepts a partly indexed document and reports its failed
// sections as warnings.
func uploadView(doc *domain.Document, err error) (documentView, error) {
	var idxErr *domain.IndexError
	if err != nil && !(errors.As(err, &idxErr) && doc != nil) {
		return documentView{}, err
	}
	view := viewOf(doc)
	if idxErr != nil {
		for _, s := range idxErr.Sections {
			view.Warnings = append(view.Warnings, s.Error())
		}
	}
	return view, nil
}

func printUploaded(w io.Writer, v *documentView) {
	fmt.Fprintf(w, "%s %s (%s)\n", outputStyles.title.Render("Uploaded"), v.Name, v.ID)
	fmt.Fprintf(w, "  Sections: %d  Chunks: %d\n", len(v.Sections), v.Chunks)
	for i, title := range v.Sections {
		fmt.Fprintf(w, "    %d. %s\n", i+1, title)
	}
	for _, warning := range v.Warnings {
		fmt.Fprintln(w, outputStyles.warning.Render("  Warning: "+warning))
	}
	if len(v.Warnings) > 0 {
		fmt.Fprintln(w, outputStyles.muted.Render("  Failed sections are retried by 'querynest documents reindex' or 'querynest watch'."))
	}
}
