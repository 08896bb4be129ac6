package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage uploaded documents",
	Long:    `List, inspect, activate, reindex or delete uploaded documents.`,
	RunE:    runDocumentsList,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Long:  `Shows a document's sections and index state. Defaults to the active document.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDocumentsShow,
}

var documentsSectionsCmd = &cobra.Command{
	Use:   "sections [doc-id]",
	Short: "List section titles",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDocumentsSections,
}

var documentsActivateCmd = &cobra.Command{
	Use:   "activate [doc-id]",
	Short: "Make a document active",
	Long:  `Questions and summaries without --doc use the active document.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsActivate,
}

var documentsReindexCmd = &cobra.Command{
	Use:   "reindex [doc-id]",
	Short: "Rebuild a document's index",
	Long: `Re-detects sections and re-embeds every chunk from the stored text.
The previous index stays in place until the new one is complete.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDocumentsReindex,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsSectionsCmd)
	documentsCmd.AddCommand(documentsActivateCmd)
	documentsCmd.AddCommand(documentsReindexCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func optionalID(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	views := make([]documentView, len(docs))
	for i := range docs {
		views[i] = viewOf(&docs[i])
	}
	if done, err := writeStructured(cmd.OutOrStdout(), views); done {
		return err
	}

	if len(docs) == 0 {
		cmd.Println("No documents uploaded. Run 'querynest upload <file>' to add one.")
		return nil
	}

	for _, v := range views {
		marker := " "
		if v.Active {
			marker = "*"
		}
		cmd.Printf("%s %s  %s\n", marker, v.ID, v.Name)
		state := "indexed"
		if !v.FullyIndexed {
			state = "partly indexed"
		}
		cmd.Printf("    %d sections, %s, uploaded %s\n", len(v.Sections), state, v.Created)
	}
	cmd.Printf("\nTotal: %d documents (* = active)\n", len(views))
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	doc, err := documentService.Get(cmd.Context(), optionalID(args))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	view := viewOf(doc)
	for _, s := range doc.Sections {
		if !s.Indexed() {
			view.Warnings = append(view.Warnings, s.Title+": "+s.IndexError)
		}
	}
	if done, err := writeStructured(cmd.OutOrStdout(), view); done {
		return err
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Name:      %s\n", doc.Name)
	cmd.Printf("  Type:      %s\n", doc.MIMEType)
	cmd.Printf("  Size:      %d bytes\n", doc.SizeBytes)
	cmd.Printf("  Pages:     %d\n", len(doc.PageBoundaries))
	cmd.Printf("  Active:    %t\n", doc.IsActive)
	cmd.Printf("  Model:     %s (%d dims)\n", doc.EmbeddingModel, doc.Dimensions)
	cmd.Printf("  Created:   %s\n", view.Created)
	cmd.Printf("  Updated:   %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	cmd.Println("\n  Sections:")
	for _, s := range doc.Sections {
		state := fmt.Sprintf("%d chunks", len(s.Chunks))
		if !s.Indexed() {
			state = outputStyles.warning.Render("failed: " + s.IndexError)
		}
		cmd.Printf("    %d. %s (%s)\n", s.Index+1, s.Title, state)
	}
	return nil
}

func runDocumentsSections(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	titles, err := documentService.ListSections(cmd.Context(), optionalID(args))
	if err != nil {
		return fmt.Errorf("failed to list sections: %w", err)
	}
	if done, err := writeStructured(cmd.OutOrStdout(), titles); done {
		return err
	}

	for i, title := range titles {
		cmd.Printf("%d. %s\n", i+1, title)
	}
	return nil
}

func runDocumentsActivate(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	if err := documentService.Activate(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to activate document: %w", err)
	}

	cmd.Printf("Document %s is now active.\n", args[0])
	return nil
}

func runDocumentsReindex(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	doc, err := documentService.Reindex(cmd.Context(), optionalID(args))
	view, err := uploadView(doc, err)
	if err != nil {
		return fmt.Errorf("failed to reindex document: %w", err)
	}
	if done, err := writeStructured(cmd.OutOrStdout(), view); done {
		return err
	}

	cmd.Printf("Document %s reindexed: %d sections, %d chunks.\n", view.ID, len(view.Sections), view.Chunks)
	for _, warning := range view.Warnings {
		cmd.Println(outputStyles.warning.Render("  Warning: " + warning))
	}
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	if err := documentService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
