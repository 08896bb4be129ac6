package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

// UploadInput is the input schema for the upload_document tool.
type UploadInput struct {
	Path    string `json:"path,omitempty" jsonschema:"path of a local file to upload"`
	Name    string `json:"name,omitempty" jsonschema:"file name for inline content, the extension selects the format"`
	Content string `json:"content,omitempty" jsonschema:"inline text content, used when path is empty"`
}

// DocumentOutput describes a stored document.
type DocumentOutput struct {
	DocumentID   string   `json:"document_id"`
	Name         string   `json:"name"`
	MIMEType     string   `json:"mime_type"`
	Active       bool     `json:"active"`
	Sections     []string `json:"sections"`
	Chunks       int      `json:"chunks"`
	FullyIndexed bool     `json:"fully_indexed"`
	Warnings     []string `json:"warnings,omitempty"`
}

// DocumentRef selects a document. An empty id means the active document.
type DocumentRef struct {
	DocumentID string `json:"document_id,omitempty" jsonschema:"document id, defaults to the active document"`
}

// ListOutput is the output schema for the list_documents tool.
type ListOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// SectionsOutput is the output schema for the list_sections tool.
type SectionsOutput struct {
	DocumentID string   `json:"document_id"`
	Sections   []string `json:"sections"`
}

// StatusOutput acknowledges a state change.
type StatusOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Query          string `json:"query" jsonschema:"the question to answer"`
	DocumentID     string `json:"document_id,omitempty" jsonschema:"document id, defaults to the active document"`
	Section        string `json:"section,omitempty" jsonschema:"restrict retrieval to this section, e.g. problem statement 2"`
	TopK           int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve"`
	SkipValidation bool   `json:"skip_validation,omitempty" jsonschema:"skip answer validation"`
}

// SummarizeInput is the input schema for the summarize tool.
type SummarizeInput struct {
	Scope      string `json:"scope,omitempty" jsonschema:"full, section or topic (default full)"`
	Target     string `json:"target,omitempty" jsonschema:"section name or topic"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"document id, defaults to the active document"`
	Validate   bool   `json:"validate,omitempty" jsonschema:"validate the summary against its source"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upload_document",
		Description: "Upload a PDF, DOCX, HTML, Markdown or text document and make it searchable",
	}, s.handleUpload)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List uploaded documents and their sections",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "activate_document",
		Description: "Make a document the default target for questions",
	}, s.handleActivate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sections",
		Description: "List the section titles of a document",
	}, s.handleSections)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from a document, with validation and confidence",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize",
		Description: "Summarise a whole document, one section, or a topic",
	}, s.handleSummarize)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reindex_document",
		Description: "Rebuild a document's index, retrying sections that failed",
	}, s.handleReindex)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document",
	}, s.handleDelete)
}

func (s *Server) handleUpload(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UploadInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	var (
		doc *domain.Document
		err error
	)
	switch {
	case input.Path != "":
		doc, err = s.ports.Documents.ProcessFile(ctx, input.Path)
	case input.Content != "":
		name := strings.TrimSpace(input.Name)
		if name == "" {
			name = "upload.txt"
		}
		doc, err = s.ports.Documents.ProcessUpload(ctx, []byte(input.Content), name)
	default:
		return nil, DocumentOutput{}, fmt.Errorf("%w: path or content is required", domain.ErrInvalidInput)
	}

	out, err := documentResult(doc, err)
	return nil, out, err
}

func (s *Server) handleList(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, ListOutput, error) {
	docs, err := s.ports.Documents.List(ctx)
	if err != nil {
		return nil, ListOutput{}, err
	}

	out := ListOutput{Documents: make([]DocumentOutput, len(docs)), Count: len(docs)}
	for i := range docs {
		out.Documents[i] = describe(&docs[i])
	}
	return nil, out, nil
}

func (s *Server) handleActivate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentRef,
) (*mcp.CallToolResult, StatusOutput, error) {
	if input.DocumentID == "" {
		return nil, StatusOutput{}, fmt.Errorf("%w: document_id is required", domain.ErrInvalidInput)
	}
	if err := s.ports.Documents.Activate(ctx, input.DocumentID); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{DocumentID: input.DocumentID, Status: "active"}, nil
}

func (s *Server) handleSections(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentRef,
) (*mcp.CallToolResult, SectionsOutput, error) {
	doc, err := s.ports.Documents.Get(ctx, input.DocumentID)
	if err != nil {
		return nil, SectionsOutput{}, err
	}
	return nil, SectionsOutput{DocumentID: doc.ID, Sections: doc.SectionTitles()}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, domain.QueryResult, error) {
	result, err := s.ports.Queries.AnswerQuery(ctx, driving.AnswerRequest{
		DocumentID:     input.DocumentID,
		Query:          input.Query,
		Section:        input.Section,
		TopK:           input.TopK,
		SkipValidation: input.SkipValidation,
	})
	if err != nil {
		return nil, domain.QueryResult{}, err
	}
	return nil, *result, nil
}

func (s *Server) handleSummarize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SummarizeInput,
) (*mcp.CallToolResult, domain.QueryResult, error) {
	result, err := s.ports.Queries.Summarize(ctx, driving.SummaryRequest{
		DocumentID: input.DocumentID,
		Scope:      domain.SummaryScope(strings.ToLower(strings.TrimSpace(input.Scope))),
		Target:     input.Target,
		Validate:   input.Validate,
	})
	if err != nil {
		return nil, domain.QueryResult{}, err
	}
	return nil, *result, nil
}

func (s *Server) handleReindex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentRef,
) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.ports.Documents.Reindex(ctx, input.DocumentID)
	out, err := documentResult(doc, err)
	return nil, out, err
}

func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentRef,
) (*mcp.CallToolResult, StatusOutput, error) {
	if input.DocumentID == "" {
		return nil, StatusOutput{}, fmt.Errorf("%w: document_id is required", domain.ErrInvalidInput)
	}
	if err := s.ports.Documents.Delete(ctx, input.DocumentID); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{DocumentID: input.DocumentID, Status: "deleted"}, nil
}

// documentResult turns a partial index into a warning on an otherwise
// successful result.
func documentResult(doc *domain.Document, err error) (DocumentOutput, error) {
	var idxErr *domain.IndexError
	if err != nil && !(errors.As(err, &idxErr) && doc != nil) {
		return DocumentOutput{}, err
	}
	out := describe(doc)
	if idxErr != nil {
		out.Warnings = append(out.Warnings, idxErr.Error())
	}
	return out, nil
}

func describe(doc *domain.Document) DocumentOutput {
	sections := doc.SectionTitles()
	if sections == nil {
		sections = []string{}
	}
	return DocumentOutput{
		DocumentID:   doc.ID,
		Name:         doc.Name,
		MIMEType:     doc.MIMEType,
		Active:       doc.IsActive,
		Sections:     sections,
		Chunks:       doc.ChunkCount(),
		FullyIndexed: doc.FullyIndexed(),
	}
}
