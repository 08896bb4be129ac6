package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/postprocessors/embedder"
)

// widthPipeline returns one chunk whose vector width depends on the text.
type widthPipeline struct{}

func (widthPipeline) Process(_ context.Context, text string) ([]domain.Chunk, error) {
	width := 3
	if strings.Contains(text, "wide") {
		width = 4
	}
	return []domain.Chunk{{ID: text, Text: text, Embedding: make([]float32, width)}}, nil
}

func sectionedDocument(text string, titles ...string) *domain.Document {
	doc := &domain.Document{Name: "doc", Text: text}
	step := len(text) / len(titles)
	for i, title := range titles {
		end := (i + 1) * step
		if i == len(titles)-1 {
			end = len(text)
		}
		doc.Sections = append(doc.Sections, domain.Section{Index: i, Title: title, Start: i * step, End: end})
	}
	return doc
}

func TestChunkIndexer_NoSections(t *testing.T) {
	ix := NewChunkIndexer(widthPipeline{}, newFlakyEmbedding())

	err := ix.IndexDocument(context.Background(), &domain.Document{Name: "empty"})
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestChunkIndexer_RecordsModelAndDimensions(t *testing.T) {
	st := newTestStack(t)
	doc := sectionedDocument(briefText, "A", "B")

	require.NoError(t, st.indexer.IndexDocument(context.Background(), doc))

	assert.Equal(t, "hashing-64", doc.EmbeddingModel)
	assert.Equal(t, 64, doc.Dimensions)
	for _, sec := range doc.Sections {
		assert.True(t, sec.Indexed())
		assert.NotEmpty(t, sec.Chunks)
	}
}

func TestChunkIndexer_MixedDimensionsFailSection(t *testing.T) {
	ix := NewChunkIndexer(widthPipeline{}, newFlakyEmbedding(), WithConcurrency(1))
	doc := sectionedDocument("narrow text here wide text there", "Narrow", "Wide")

	err := ix.IndexDocument(context.Background(), doc)

	var idxErr *domain.IndexError
	require.ErrorAs(t, err, &idxErr)
	require.Len(t, idxErr.Sections, 1)
	assert.Equal(t, "Wide", idxErr.Sections[0].Title)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
	assert.Equal(t, 3, doc.Dimensions)
	assert.Nil(t, doc.Sections[1].Chunks)
}

func TestChunkIndexer_Seed(t *testing.T) {
	emb := newFlakyEmbedding()
	cache := embedder.NewCache(16)
	ix := NewChunkIndexer(widthPipeline{}, emb, WithEmbeddingCache(cache))

	doc := &domain.Document{
		EmbeddingModel: emb.ModelName(),
		Sections: []domain.Section{{Chunks: []domain.Chunk{
			{Text: "one", Embedding: []float32{1}},
			{Text: "no vector"},
		}}},
	}
	assert.Equal(t, 1, ix.Seed(doc))
	v, ok := cache.Get(emb.ModelName(), "one")
	assert.True(t, ok)
	assert.Equal(t, []float32{1}, v)

	doc.EmbeddingModel = "other-model"
	assert.Zero(t, ix.Seed(doc))

	assert.Zero(t, NewChunkIndexer(widthPipeline{}, emb).Seed(doc), "no cache configured")
}
