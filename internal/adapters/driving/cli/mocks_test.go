package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

type mockDocumentService struct {
	docs   map[string]*domain.Document
	active string
	err    error

	processed []string
}

func newMockDocumentService() *mockDocumentService {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	text := "Overview\nIntro.\nProblem Statement 1\nBuild a tracker."
	return &mockDocumentService{
		active: "doc-1",
		docs: map[string]*domain.Document{
			"doc-1": {
				ID:        "doc-1",
				Name:      "brief.pdf",
				MIMEType:  "application/pdf",
				Text:      text,
				SizeBytes: 2048,
				CreatedAt: created,
				UpdatedAt: created,
				Sections: []domain.Section{
					{Index: 0, Title: "Overview", Start: 0, End: 16, Chunks: []domain.Chunk{{ID: "c0", Text: "Intro."}}},
					{Index: 1, Title: "Problem Statement 1", Start: 16, End: len(text),
						IndexError: "embedding capability unavailable"},
				},
				EmbeddingModel: "hashing-384",
				Dimensions:     384,
			},
		},
	}
}

func (m *mockDocumentService) resolve(id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	if id == "" {
		id = m.active
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := doc.Clone()
	c.IsActive = id == m.active
	return c, nil
}

func (m *mockDocumentService) ProcessUpload(_ context.Context, _ []byte, name string) (*domain.Document, error) {
	return m.ProcessFile(context.Background(), name)
}

func (m *mockDocumentService) ProcessFile(_ context.Context, path string) (*domain.Document, error) {
	m.processed = append(m.processed, path)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Document{
		ID:       "new-doc",
		Name:     path,
		IsActive: true,
		Sections: []domain.Section{{Title: "Full Document", Chunks: []domain.Chunk{{ID: "n0"}}}},
	}, nil
}

func (m *mockDocumentService) ListSections(_ context.Context, id string) ([]string, error) {
	doc, err := m.resolve(id)
	if err != nil {
		return nil, err
	}
	return doc.SectionTitles(), nil
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Document
	for id := range m.docs {
		doc, _ := m.resolve(id)
		out = append(out, *doc.Summary())
	}
	return out, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	return m.resolve(id)
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if _, err := m.resolve(id); err != nil {
		return err
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentService) Activate(_ context.Context, id string) error {
	if _, err := m.resolve(id); err != nil {
		return err
	}
	m.active = id
	return nil
}

func (m *mockDocumentService) Active(_ context.Context) (*domain.Document, error) {
	if m.active == "" {
		return nil, domain.ErrNoActiveDocument
	}
	return m.resolve("")
}

func (m *mockDocumentService) Reindex(_ context.Context, id string) (*domain.Document, error) {
	doc, err := m.resolve(id)
	if err != nil {
		return nil, err
	}
	idxErr := &domain.IndexError{}
	for _, s := range doc.Sections {
		if !s.Indexed() {
			idxErr.Sections = append(idxErr.Sections, &domain.SectionError{
				Index: s.Index, Title: s.Title, Err: domain.ErrEmbeddingUnavailable,
			})
		}
	}
	if len(idxErr.Sections) > 0 {
		return doc, idxErr
	}
	return doc, nil
}

type mockQueryService struct {
	result *domain.QueryResult
	err    error

	answerReq  driving.AnswerRequest
	summaryReq driving.SummaryRequest
}

func newMockQueryService() *mockQueryService {
	relevance := 0.71
	return &mockQueryService{result: &domain.QueryResult{
		DocumentID: "doc-1",
		Mode:       domain.ModeAnswer,
		Answer:     "Build an inventory tracker.",
		SourceSections: []string{
			"Problem Statement 1",
		},
		Validation: &domain.ValidationResult{
			Valid:           true,
			Score:           0.74,
			Confidence:      domain.ConfidenceMedium,
			FactualValidity: 0.76,
			QueryRelevance:  &relevance,
			Message:         "answer is supported by the source",
		},
	}}
}

func (m *mockQueryService) AnswerQuery(_ context.Context, req driving.AnswerRequest) (*domain.QueryResult, error) {
	m.answerReq = req
	return m.result, m.err
}

func (m *mockQueryService) Summarize(_ context.Context, req driving.SummaryRequest) (*domain.QueryResult, error) {
	m.summaryReq = req
	return m.result, m.err
}

type mockSettingsService struct {
	settings domain.AppSettings
	set      map[string]string
	err      error

	validateErr error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), set: map[string]string{}}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	st := m.settings
	return &st, m.err
}

func (m *mockSettingsService) Save(st *domain.AppSettings) error {
	m.settings = *st
	return m.err
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"embedding.provider", "retrieval.top_k"}
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider, m.settings.Embedding.Model, m.settings.Embedding.APIKey = p, model, apiKey
	return m.err
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider, m.settings.LLM.Model, m.settings.LLM.APIKey = p, model, apiKey
	return m.err
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.err }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.err }
