package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/logger"
)

// DefaultIndexConcurrency is the number of sections indexed at once.
const DefaultIndexConcurrency = 4

// ChunkIndexer turns each section of a document into embedded chunks.
type ChunkIndexer struct {
	pipeline    driven.PostProcessorPipeline
	embedding   driven.EmbeddingService
	cache       driven.EmbeddingCache
	observer    driven.PipelineObserver
	concurrency int
}

// IndexerOption configures a ChunkIndexer.
type IndexerOption func(*ChunkIndexer)

// WithConcurrency bounds how many sections are indexed in parallel.
func WithConcurrency(n int) IndexerOption {
	return func(ix *ChunkIndexer) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// WithEmbeddingCache lets Seed reuse a previous tree's embeddings.
// The cache should be the one the pipeline's embedder reads.
func WithEmbeddingCache(c driven.EmbeddingCache) IndexerOption {
	return func(ix *ChunkIndexer) {
		ix.cache = c
	}
}

// WithIndexObserver reports per-section outcomes.
func WithIndexObserver(o driven.PipelineObserver) IndexerOption {
	return func(ix *ChunkIndexer) {
		ix.observer = observerOrNoop(o)
	}
}

// NewChunkIndexer creates an indexer running pipeline on every section.
// embedding must be the service the pipeline embeds with.
func NewChunkIndexer(
	pipeline driven.PostProcessorPipeline,
	embedding driven.EmbeddingService,
	opts ...IndexerOption,
) *ChunkIndexer {
	ix := &ChunkIndexer{
		pipeline:    pipeline,
		embedding:   embedding,
		observer:    noopObserver{},
		concurrency: DefaultIndexConcurrency,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

type sectionOutcome struct {
	chunks []domain.Chunk
	err    error
}

// IndexDocument fills the Chunks of every section in doc.
//
// Sections are processed concurrently and independently: a failing
// section keeps no chunks and records its IndexError, while the others
// still index. When any section failed the returned error is a
// *domain.IndexError; doc is updated either way.
func (ix *ChunkIndexer) IndexDocument(ctx context.Context, doc *domain.Document) error {
	if len(doc.Sections) == 0 {
		return fmt.Errorf("%w: document has no sections", domain.ErrMalformedDocument)
	}

	logger.Debug("Indexing %d sections of %q (concurrency %d)", len(doc.Sections), doc.Name, ix.concurrency)

	outcomes := make([]sectionOutcome, len(doc.Sections))
	var g errgroup.Group
	g.SetLimit(ix.concurrency)
	for i := range doc.Sections {
		g.Go(func() error {
			chunks, err := ix.pipeline.Process(ctx, doc.SectionText(i))
			outcomes[i] = sectionOutcome{chunks: chunks, err: err}
			return nil
		})
	}
	_ = g.Wait()

	dims := 0
	var failed []*domain.SectionError
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		out := outcomes[i]

		if out.err == nil {
			if d := chunkDimensions(out.chunks); d > 0 {
				switch {
				case dims == 0:
					dims = d
				case d != dims:
					out.err = fmt.Errorf("%w: got %d dimensions, document uses %d",
						domain.ErrEmbeddingMismatch, d, dims)
				}
			}
		}

		if out.err != nil {
			logger.Warn("Section %q failed to index: %v", sec.Title, out.err)
			sec.Chunks = nil
			sec.IndexError = out.err.Error()
			failed = append(failed, &domain.SectionError{Index: i, Title: sec.Title, Err: out.err})
			ix.observer.SectionIndexed(statusFailed)
			continue
		}

		sec.Chunks = out.chunks
		sec.IndexError = ""
		ix.observer.SectionIndexed(statusOK)
	}

	doc.EmbeddingModel = ix.embedding.ModelName()
	if dims == 0 {
		dims = ix.embedding.Dimensions()
	}
	doc.Dimensions = dims

	logger.Info("Indexed %q: %d chunks, %d of %d sections failed",
		doc.Name, doc.ChunkCount(), len(failed), len(doc.Sections))

	if len(failed) > 0 {
		return &domain.IndexError{Sections: failed}
	}
	return nil
}

// Seed copies doc's embeddings into the cache so unchanged chunks are not
// embedded again. Trees built with another model are ignored.
func (ix *ChunkIndexer) Seed(doc *domain.Document) int {
	if ix.cache == nil || doc.EmbeddingModel != ix.embedding.ModelName() {
		return 0
	}
	n := 0
	for _, sec := range doc.Sections {
		for _, ch := range sec.Chunks {
			if len(ch.Embedding) == 0 {
				continue
			}
			ix.cache.Put(doc.EmbeddingModel, ch.Text, ch.Embedding)
			n++
		}
	}
	return n
}

func chunkDimensions(chunks []domain.Chunk) int {
	for _, ch := range chunks {
		if len(ch.Embedding) > 0 {
			return len(ch.Embedding)
		}
	}
	return 0
}
