package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

func embeddedChunk(t *testing.T, emb *flakyEmbedding, text string) domain.Chunk {
	t.Helper()
	vec, err := emb.Embed(context.Background(), text)
	require.NoError(t, err)
	return domain.Chunk{ID: text, Text: text, Embedding: vec}
}

func TestValidator_Classify(t *testing.T) {
	v := NewValidator(newFlakyEmbedding(), domain.ValidationSettings{}, 0)

	tests := []struct {
		score      float64
		valid      bool
		confidence domain.Confidence
	}{
		{1.0, true, domain.ConfidenceHigh},
		{0.8, true, domain.ConfidenceHigh},
		{0.79, true, domain.ConfidenceMedium},
		{0.6, true, domain.ConfidenceMedium},
		{0.59, false, domain.ConfidenceLow},
		{0, false, domain.ConfidenceLow},
	}
	for _, tt := range tests {
		valid, confidence := v.Classify(tt.score)
		assert.Equal(t, tt.valid, valid, "score %.2f", tt.score)
		assert.Equal(t, tt.confidence, confidence, "score %.2f", tt.score)
	}
}

func TestValidator_ResultAtThreshold(t *testing.T) {
	v := NewValidator(newFlakyEmbedding(), domain.ValidationSettings{}, 0)

	r := v.Result(0.6, nil, nil)
	assert.True(t, r.Valid)
	assert.InDelta(t, 0.6, r.Score, 1e-9)
	assert.Equal(t, domain.ConfidenceMedium, r.Confidence)
	assert.Nil(t, r.QueryRelevance)
}

func TestValidator_ResultWeighsRelevance(t *testing.T) {
	v := NewValidator(newFlakyEmbedding(), domain.ValidationSettings{FactualWeight: 0.7}, 0)

	rel := 0.0
	r := v.Result(1.0, &rel, nil)
	assert.InDelta(t, 0.7, r.Score, 1e-9)
	assert.True(t, r.Valid)
	require.NotNil(t, r.QueryRelevance)
	assert.Contains(t, r.Message, "low query relevance")

	high := 1.5
	r = v.Result(1.0, &high, nil)
	assert.InDelta(t, 1.0, r.Score, 1e-9, "signals are clamped")
}

func TestValidator_EmptyAnswer(t *testing.T) {
	v := NewValidator(newFlakyEmbedding(), domain.ValidationSettings{}, 0)

	r, err := v.Validate(context.Background(), "   ", nil, "question")
	require.NoError(t, err)
	assert.False(t, r.Valid)
	assert.Zero(t, r.Score)
	assert.Equal(t, domain.ConfidenceLow, r.Confidence)
}

func TestValidator_AnswerCopiedFromSourceIsHigh(t *testing.T) {
	emb := newFlakyEmbedding()
	v := NewValidator(emb, domain.ValidationSettings{}, 0)
	text := "The tracker records stock levels for every product in the store."

	r, err := v.Validate(context.Background(), text, []domain.Chunk{embeddedChunk(t, emb, text)}, "")
	require.NoError(t, err)

	assert.True(t, r.Valid)
	assert.Equal(t, domain.ConfidenceHigh, r.Confidence)
	assert.InDelta(t, 1.0, r.FactualValidity, 1e-6)
	assert.Empty(t, r.UnsupportedClaims)
	assert.Nil(t, r.QueryRelevance)
	assert.Equal(t, "Supported by the source text", r.Message)
}

func TestValidator_FlagsUnsupportedClaim(t *testing.T) {
	emb := newFlakyEmbedding()
	v := NewValidator(emb, domain.ValidationSettings{}, 0)
	source := embeddedChunk(t, emb, "The tracker records stock levels for every product and warns the owner when an item runs low.")

	answer := "The tracker records stock levels for every product. " +
		"Penguins migrate across frozen Antarctic glaciers each winter."

	r, err := v.Validate(context.Background(), answer, []domain.Chunk{source}, "")
	require.NoError(t, err)

	require.Len(t, r.UnsupportedClaims, 1)
	assert.Contains(t, r.UnsupportedClaims[0], "Penguins")
	assert.Less(t, r.FactualValidity, 0.8)
	assert.Contains(t, r.Message, "1 claim is")
}

func TestValidator_QueryRelevance(t *testing.T) {
	emb := newFlakyEmbedding()
	v := NewValidator(emb, domain.ValidationSettings{}, 0)
	text := "The planner orders delivery stops to minimise driving time."
	sources := []domain.Chunk{embeddedChunk(t, emb, text)}

	onTopic, err := v.Validate(context.Background(), text, sources, "How does the planner order delivery stops?")
	require.NoError(t, err)
	offTopic, err := v.Validate(context.Background(), text, sources, "Which payment cards are accepted?")
	require.NoError(t, err)

	require.NotNil(t, onTopic.QueryRelevance)
	require.NotNil(t, offTopic.QueryRelevance)
	assert.Greater(t, *onTopic.QueryRelevance, *offTopic.QueryRelevance)
	assert.Greater(t, onTopic.Score, offTopic.Score)
}

func TestValidator_EmbeddingUnavailable(t *testing.T) {
	emb := newFlakyEmbedding()
	v := NewValidator(emb, domain.ValidationSettings{}, 0)
	sources := []domain.Chunk{embeddedChunk(t, emb, "Some source text about bakeries.")}
	emb.set(true, "")

	_, err := v.Validate(context.Background(), "Bakeries bake bread daily.", sources, "")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestValidator_Deterministic(t *testing.T) {
	emb := newFlakyEmbedding()
	v := NewValidator(emb, domain.ValidationSettings{}, 0)
	sources := []domain.Chunk{embeddedChunk(t, emb, "Drivers use a phone app to mark each stop as complete.")}

	a, err := v.Validate(context.Background(), "Drivers mark stops complete in an app.", sources, "how do drivers report")
	require.NoError(t, err)
	b, err := v.Validate(context.Background(), "Drivers mark stops complete in an app.", sources, "how do drivers report")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestClaimsOf(t *testing.T) {
	assert.Equal(t, []string{"Yes."}, claimsOf("Yes."), "short answers are one claim")

	claims := claimsOf("Sure. The planner respects customer delivery windows. It orders stops by driving time.")
	assert.Equal(t, []string{
		"The planner respects customer delivery windows.",
		"It orders stops by driving time.",
	}, claims)
}
