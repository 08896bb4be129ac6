package mcp

import (
	"context"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	err       error

	uploadedName string
	uploadedData string
	path         string
	lastID       string
}

func (m *mockDocumentService) ProcessUpload(_ context.Context, data []byte, name string) (*domain.Document, error) {
	m.uploadedName = name
	m.uploadedData = string(data)
	return m.document, m.err
}

func (m *mockDocumentService) ProcessFile(_ context.Context, path string) (*domain.Document, error) {
	m.path = path
	return m.document, m.err
}

func (m *mockDocumentService) ListSections(_ context.Context, id string) ([]string, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.document.SectionTitles(), nil
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	m.lastID = id
	return m.document, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}

func (m *mockDocumentService) Activate(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}

func (m *mockDocumentService) Active(_ context.Context) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Reindex(_ context.Context, id string) (*domain.Document, error) {
	m.lastID = id
	return m.document, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.QueryResult
	err    error

	answerReq  driving.AnswerRequest
	summaryReq driving.SummaryRequest
}

func (m *mockQueryService) AnswerQuery(_ context.Context, req driving.AnswerRequest) (*domain.QueryResult, error) {
	m.answerReq = req
	return m.result, m.err
}

func (m *mockQueryService) Summarize(_ context.Context, req driving.SummaryRequest) (*domain.QueryResult, error) {
	m.summaryReq = req
	return m.result, m.err
}

func testDocument() *domain.Document {
	text := "Overview\nIntro text.\nProblem Statement 1\nBuild a tracker."
	return &domain.Document{
		ID:       "doc-1",
		Name:     "brief.md",
		MIMEType: "text/markdown",
		Text:     text,
		IsActive: true,
		Sections: []domain.Section{
			{Index: 0, Title: "Overview", Start: 0, End: 20, Chunks: []domain.Chunk{{ID: "c0", Text: "Intro text."}}},
			{Index: 1, Title: "Problem Statement 1", Start: 20, End: len(text), Chunks: []domain.Chunk{
				{ID: "c1", Text: "Build a tracker."},
			}},
		},
	}
}

func newTestServer(docs *mockDocumentService, queries *mockQueryService) *Server {
	server, err := NewServer(&Ports{Documents: docs, Queries: queries})
	if err != nil {
		panic(err)
	}
	return server
}
