package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

func TestQueryService_AnswerQuery(t *testing.T) {
	st := newTestStack(t)
	doc := st.upload(t, "brief.md", briefText)

	res, err := st.queries.AnswerQuery(context.Background(), driving.AnswerRequest{
		Query: "What does the inventory tracker warn the owner about?",
	})
	require.NoError(t, err)

	assert.Equal(t, doc.ID, res.DocumentID)
	assert.Equal(t, domain.ModeAnswer, res.Mode)
	assert.NotEmpty(t, res.Answer)
	assert.NotEmpty(t, res.Hits)
	assert.LessOrEqual(t, len(res.Hits), 3)
	assert.Contains(t, res.SourceSections, "Problem Statement 1: Inventory Tracker")

	require.NotNil(t, res.Validation)
	assert.GreaterOrEqual(t, res.Validation.Score, 0.0)
	assert.LessOrEqual(t, res.Validation.Score, 1.0)
	require.NotNil(t, res.Validation.QueryRelevance)
	assert.NotEmpty(t, res.Validation.Message)

	assert.Equal(t, 1, st.observer.count("query.answer"))
	assert.Len(t, st.observer.scores, 1)
}

func TestQueryService_AnswerQuery_ExplicitDocumentAndSection(t *testing.T) {
	st := newTestStack(t)
	st.upload(t, "first.md", briefText)
	second := st.upload(t, "second.md", briefText)

	res, err := st.queries.AnswerQuery(context.Background(), driving.AnswerRequest{
		DocumentID:     second.ID,
		Query:          "what must the planner respect",
		Section:        "ps 2",
		SkipValidation: true,
	})
	require.NoError(t, err)

	assert.Equal(t, second.ID, res.DocumentID)
	assert.Equal(t, []string{"Problem Statement 2: Route Planner"}, res.SourceSections)
	assert.Nil(t, res.Validation)
}

func TestQueryService_AnswerQuery_ProblemNumberOnPageJoinedText(t *testing.T) {
	st := newTestStack(t)
	text := "Hackathon Brief\nTeams pick one problem and present a prototype on Sunday.\n" +
		"Problem Statement 1\nBuild an inventory tracker for a small grocery store.\nIt warns the owner when stock runs low.\n" +
		"Problem Statement 2\nDesign a delivery route planner for a bakery.\nIt respects customer delivery windows.\n"
	doc := st.upload(t, "brief.pdf", text)
	require.Equal(t, []string{"Preamble", "Problem Statement 1", "Problem Statement 2"}, doc.SectionTitles())

	res, err := st.queries.AnswerQuery(context.Background(), driving.AnswerRequest{
		Query:          "what is ps 2 about",
		SkipValidation: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Problem Statement 2"}, res.SourceSections)
	assert.Empty(t, res.Warnings)
	for _, hit := range res.Hits {
		assert.Equal(t, "Problem Statement 2", hit.SectionTitle)
	}
}

func TestQueryService_AnswerQuery_UnknownSectionWarns(t *testing.T) {
	st := newTestStack(t)
	st.upload(t, "brief.md", briefText)

	res, err := st.queries.AnswerQuery(context.Background(), driving.AnswerRequest{
		Query:   "delivery windows",
		Section: "Nonexistent Section",
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Nonexistent Section")
	assert.NotEmpty(t, res.Answer)
}

func TestQueryService_AnswerQuery_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no active document", func(t *testing.T) {
		st := newTestStack(t)
		_, err := st.queries.AnswerQuery(ctx, driving.AnswerRequest{Query: "anything"})
		assert.ErrorIs(t, err, domain.ErrNoActiveDocument)
	})

	t.Run("empty query", func(t *testing.T) {
		st := newTestStack(t)
		st.upload(t, "brief.md", briefText)
		_, err := st.queries.AnswerQuery(ctx, driving.AnswerRequest{Query: " "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("generation unavailable", func(t *testing.T) {
		st := newTestStackWithLLM(t, &stubLLM{err: errors.New("model offline")})
		st.upload(t, "brief.md", briefText)

		_, err := st.queries.AnswerQuery(ctx, driving.AnswerRequest{Query: "inventory"})
		assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
		assert.Equal(t, 1, st.observer.count("capability.generation"))
		assert.Zero(t, st.observer.count("query.answer"))
	})

	t.Run("embedding unavailable", func(t *testing.T) {
		st := newTestStack(t)
		st.upload(t, "brief.md", briefText)
		st.embedding.set(true, "")

		_, err := st.queries.AnswerQuery(ctx, driving.AnswerRequest{Query: "inventory"})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Equal(t, 1, st.observer.count("capability.embedding"))
	})
}

func TestQueryService_ValidationFailureKeepsAnswer(t *testing.T) {
	st := newTestStackWithLLM(t, &stubLLM{out: "Zebras design the delivery routes."})
	st.upload(t, "brief.md", briefText)
	st.embedding.set(false, "Zebras")

	res, err := st.queries.AnswerQuery(context.Background(), driving.AnswerRequest{Query: "who designs routes"})
	require.NoError(t, err)

	assert.Equal(t, "Zebras design the delivery routes.", res.Answer)
	assert.Nil(t, res.Validation)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "validation unavailable")
	assert.Equal(t, 1, st.observer.count("capability.embedding"))
}

func TestQueryService_Summarize_Full(t *testing.T) {
	st := newTestStack(t)
	doc := st.upload(t, "brief.md", briefText)

	res, err := st.queries.Summarize(context.Background(), driving.SummaryRequest{Scope: domain.ScopeFull})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeFullSummary, res.Mode)
	assert.NotEmpty(t, res.Answer)
	assert.Equal(t, doc.SectionTitles(), res.SourceSections)
	assert.Nil(t, res.Validation, "summaries are validated on request only")
	assert.Equal(t, 1, st.observer.count("query.full-summary"))
}

func TestQueryService_Summarize_Section(t *testing.T) {
	st := newTestStack(t)
	st.upload(t, "brief.md", briefText)

	res, err := st.queries.Summarize(context.Background(), driving.SummaryRequest{
		Scope:    domain.ScopeSection,
		Target:   "problem statement 2",
		Validate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeSectionSummary, res.Mode)
	assert.Equal(t, []string{"Problem Statement 2: Route Planner"}, res.SourceSections)
	assert.NotContains(t, res.Answer, "grocery")
	require.NotNil(t, res.Validation)
	assert.Nil(t, res.Validation.QueryRelevance)
	assert.Empty(t, res.Warnings)
}

func TestQueryService_Summarize_MissingSectionFallsBack(t *testing.T) {
	st := newTestStack(t)
	doc := st.upload(t, "brief.md", briefText)

	res, err := st.queries.Summarize(context.Background(), driving.SummaryRequest{
		Scope:  domain.ScopeSection,
		Target: "Appendix Z",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeFullSummary, res.Mode)
	assert.Equal(t, doc.SectionTitles(), res.SourceSections)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Appendix Z")
}

func TestQueryService_Summarize_Topic(t *testing.T) {
	st := newTestStack(t)
	st.upload(t, "brief.md", briefText)

	res, err := st.queries.Summarize(context.Background(), driving.SummaryRequest{
		Scope:    domain.ScopeTopic,
		Target:   "delivery windows and driving time",
		Validate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeTopicSummary, res.Mode)
	assert.Equal(t, "delivery windows and driving time", res.Query)
	assert.NotEmpty(t, res.Hits)
	assert.LessOrEqual(t, len(res.Hits), 4)
	assert.Contains(t, res.SourceSections, "Problem Statement 2: Route Planner")
	require.NotNil(t, res.Validation)
	assert.NotNil(t, res.Validation.QueryRelevance)
}

func TestQueryService_Summarize_Errors(t *testing.T) {
	st := newTestStack(t)
	st.upload(t, "brief.md", briefText)
	ctx := context.Background()

	_, err := st.queries.Summarize(ctx, driving.SummaryRequest{Scope: domain.ScopeTopic})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = st.queries.Summarize(ctx, driving.SummaryRequest{Scope: domain.ScopeSection, Target: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = st.queries.Summarize(ctx, driving.SummaryRequest{Scope: "chapter"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = st.queries.Summarize(ctx, driving.SummaryRequest{DocumentID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
