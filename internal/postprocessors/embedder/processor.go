// Package embedder provides the post-processor that attaches embeddings to chunks.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// DefaultBatchSize is the default number of texts per embedding request.
const DefaultBatchSize = 32

// DefaultTimeout bounds a single embedding request.
const DefaultTimeout = 30 * time.Second

// Processor embeds chunk texts through an EmbeddingService.
// Exact duplicate texts are embedded once. It implements the PostProcessor interface.
type Processor struct {
	service   driven.EmbeddingService
	batchSize int
	timeout   time.Duration
	limiter   *rate.Limiter
	cache     *Cache
}

// Option configures the embedder processor.
type Option func(*Processor)

// WithBatchSize sets the number of texts per request.
func WithBatchSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRateLimit caps requests per second. Zero or negative disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(p *Processor) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithCache shares an embedding cache across processors.
func WithCache(c *Cache) Option {
	return func(p *Processor) {
		if c != nil {
			p.cache = c
		}
	}
}

// New creates an embedder for the given service.
func New(service driven.EmbeddingService, opts ...Option) *Processor {
	p := &Processor{
		service:   service,
		batchSize: DefaultBatchSize,
		timeout:   DefaultTimeout,
		cache:     NewCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ driven.PostProcessor = (*Processor)(nil)

// Name returns the processor name.
func (p *Processor) Name() string {
	return "embedder"
}

// Process fills the Embedding field of every chunk.
func (p *Processor) Process(ctx context.Context, _ string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	if p.service == nil {
		return nil, fmt.Errorf("%w: not configured", domain.ErrEmbeddingUnavailable)
	}

	model := p.service.ModelName()
	var pending []string
	queued := make(map[string]bool)
	for _, c := range chunks {
		if _, ok := p.cache.Get(model, c.Text); ok || queued[c.Text] {
			continue
		}
		queued[c.Text] = true
		pending = append(pending, c.Text)
	}

	for start := 0; start < len(pending); start += p.batchSize {
		end := start + p.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := p.embedBatch(ctx, model, pending[start:end]); err != nil {
			return nil, err
		}
	}

	out := make([]domain.Chunk, len(chunks))
	dims := 0
	for i, c := range chunks {
		vec, ok := p.cache.Get(model, c.Text)
		if !ok {
			// Evicted between batches; embed it on its own.
			if err := p.embedBatch(ctx, model, []string{c.Text}); err != nil {
				return nil, err
			}
			vec, _ = p.cache.Get(model, c.Text)
		}
		if dims == 0 {
			dims = len(vec)
		} else if len(vec) != dims {
			return nil, fmt.Errorf("%w: got %d and %d dimensions", domain.ErrEmbeddingMismatch, dims, len(vec))
		}
		c.Embedding = append([]float32(nil), vec...)
		out[i] = c
	}
	return out, nil
}

func (p *Processor) embedBatch(ctx context.Context, model string, texts []string) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vectors, err := p.service.EmbedBatch(callCtx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbeddingUnavailable, len(texts), len(vectors))
	}

	want := p.service.Dimensions()
	for i, v := range vectors {
		if len(v) == 0 || (want > 0 && len(v) != want) {
			return fmt.Errorf("%w: model %s returned %d dimensions, want %d",
				domain.ErrEmbeddingMismatch, model, len(v), want)
		}
		p.cache.Put(model, texts[i], v)
	}
	return nil
}
