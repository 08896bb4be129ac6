package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
	"github.com/custodia-labs/querynest/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers questions and summarises documents.
type QueryService struct {
	library     *Library
	retriever   *Retriever
	synthesizer *Synthesizer
	validator   *Validator
	topicTopK   int
	observer    driven.PipelineObserver
}

// NewQueryService creates a new query service.
func NewQueryService(
	library *Library,
	retriever *Retriever,
	synthesizer *Synthesizer,
	validator *Validator,
	topicTopK int,
) *QueryService {
	if topicTopK <= 0 {
		topicTopK = domain.DefaultAppSettings().Retrieval.TopicTopK
	}
	return &QueryService{
		library:     library,
		retriever:   retriever,
		synthesizer: synthesizer,
		validator:   validator,
		topicTopK:   topicTopK,
		observer:    noopObserver{},
	}
}

// SetObserver sets the receiver of pipeline events.
func (s *QueryService) SetObserver(o driven.PipelineObserver) {
	s.observer = observerOrNoop(o)
}

// AnswerQuery answers a question from the document's most similar chunks.
func (s *QueryService) AnswerQuery(ctx context.Context, req driving.AnswerRequest) (*domain.QueryResult, error) {
	logger.Section("Answer")
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	doc, err := s.library.Snapshot(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	retrieval, err := s.retriever.Retrieve(ctx, doc, query, req.Section, req.TopK)
	if err != nil {
		return nil, s.capabilityError(err)
	}

	answer, err := s.synthesizer.Synthesize(ctx, SynthesisInput{
		Mode:   domain.ModeAnswer,
		Query:  query,
		Chunks: retrieval.Chunks,
	})
	if err != nil {
		return nil, s.capabilityError(err)
	}

	result := &domain.QueryResult{
		DocumentID:     doc.ID,
		Mode:           domain.ModeAnswer,
		Query:          query,
		Answer:         answer,
		Hits:           domain.NewHits(retrieval.Chunks),
		SourceSections: domain.DistinctSections(retrieval.Chunks),
		Warnings:       retrieval.Warnings,
	}
	if !req.SkipValidation {
		s.validate(ctx, result, chunksOf(retrieval.Chunks), query)
	}

	s.observer.QueryServed(domain.ModeAnswer.String())
	return result, nil
}

// Summarize summarises the whole document, one section or one topic.
// A section that cannot be found degrades to a whole-document summary
// with a warning.
func (s *QueryService) Summarize(ctx context.Context, req driving.SummaryRequest) (*domain.QueryResult, error) {
	logger.Section("Summary")
	mode, ok := req.Scope.Mode()
	if !ok {
		return nil, fmt.Errorf("%w: unknown summary scope %q", domain.ErrInvalidInput, req.Scope)
	}
	target := strings.TrimSpace(req.Target)
	if mode != domain.ModeFullSummary && target == "" {
		return nil, fmt.Errorf("%w: %s summary needs a target", domain.ErrInvalidInput, req.Scope)
	}

	doc, err := s.library.Snapshot(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	result := &domain.QueryResult{DocumentID: doc.ID, Mode: mode}
	var (
		in      SynthesisInput
		sources []domain.Chunk
		query   string
	)

	if mode == domain.ModeSectionSummary {
		idx := ResolveSections(doc, target)
		if len(idx) == 0 {
			err := fmt.Errorf("%w: %q", domain.ErrSectionNotFound, target)
			result.Warnings = append(result.Warnings, err.Error()+"; summarised the whole document")
			mode = domain.ModeFullSummary
			result.Mode = mode
		} else {
			var text strings.Builder
			for _, i := range idx {
				if text.Len() > 0 {
					text.WriteString("\n\n")
				}
				text.WriteString(doc.SectionText(i))
				sources = append(sources, doc.Sections[i].Chunks...)
				result.SourceSections = append(result.SourceSections, doc.Sections[i].Title)
			}
			in = SynthesisInput{Mode: mode, Text: text.String()}
		}
	}

	switch mode {
	case domain.ModeFullSummary:
		in = SynthesisInput{Mode: mode, Text: doc.Text}
		for _, sec := range doc.Sections {
			sources = append(sources, sec.Chunks...)
		}
		result.SourceSections = doc.SectionTitles()

	case domain.ModeTopicSummary:
		retrieval, err := s.retriever.Retrieve(ctx, doc, target, "", s.topicTopK)
		if err != nil {
			return nil, s.capabilityError(err)
		}
		in = SynthesisInput{Mode: mode, Query: target, Chunks: retrieval.Chunks}
		sources = chunksOf(retrieval.Chunks)
		query = target
		result.Query = target
		result.Hits = domain.NewHits(retrieval.Chunks)
		result.SourceSections = domain.DistinctSections(retrieval.Chunks)
		result.Warnings = append(result.Warnings, retrieval.Warnings...)
	}

	summary, err := s.synthesizer.Synthesize(ctx, in)
	if err != nil {
		return nil, s.capabilityError(err)
	}
	result.Answer = summary

	if req.Validate {
		if len(sources) == 0 {
			result.Warnings = append(result.Warnings, "validation skipped: the summarised text has no indexed chunks")
		} else {
			s.validate(ctx, result, sources, query)
		}
	}

	s.observer.QueryServed(mode.String())
	return result, nil
}

// validate attaches a ValidationResult, or a warning when the embedding
// capability fails. The answer is returned either way.
func (s *QueryService) validate(ctx context.Context, result *domain.QueryResult, sources []domain.Chunk, query string) {
	v, err := s.validator.Validate(ctx, result.Answer, sources, query)
	if err != nil {
		s.capabilityError(err)
		logger.Warn("Validation failed: %v", err)
		result.Warnings = append(result.Warnings, "validation unavailable: "+err.Error())
		return
	}
	result.Validation = v
	s.observer.ValidationScored(v.Score)
	logger.Debug("Validation score %.3f (%s)", v.Score, v.Confidence)
}

// capabilityError records capability failures before returning err unchanged.
func (s *QueryService) capabilityError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		s.observer.CapabilityFailed(capabilityEmbedding)
	case errors.Is(err, domain.ErrGenerationUnavailable):
		s.observer.CapabilityFailed(capabilityGeneration)
	}
	return err
}

func chunksOf(scored []domain.ScoredChunk) []domain.Chunk {
	out := make([]domain.Chunk, len(scored))
	for i, sc := range scored {
		out[i] = sc.Chunk
	}
	return out
}
