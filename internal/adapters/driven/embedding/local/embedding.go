// Package local provides an offline embedding service based on feature hashing.
//
// Each content token, and each pair of adjacent content tokens, is hashed
// into a fixed number of buckets with a hashed sign. The resulting vector
// is L2-normalised, so cosine similarity reflects weighted term overlap.
// The output is a pure function of the input text and dimension count.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/textproc"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions matches the width of common small sentence encoders.
const DefaultDimensions = 384

// bigramWeight scales adjacent-pair features relative to single tokens.
const bigramWeight = 0.5

// Config holds configuration for the local embedding service.
type Config struct {
	// Dimensions is the vector size (default: 384).
	Dimensions int
}

// EmbeddingService generates embeddings without any network access.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a new local embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: cfg.Dimensions}
}

// Embed generates a vector embedding for the given text.
// Text without content tokens yields a zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, s.dimensions)
	tokens := textproc.ContentTokens(text)

	counts := make(map[string]float64, len(tokens))
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok] += bigramWeight
		}
	}
	for feature, tf := range counts {
		idx, sign := s.bucket(feature)
		vec[idx] += sign * float32(1+math.Log(tf+1))
	}

	textproc.Normalize(vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *EmbeddingService) bucket(feature string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(s.dimensions))
	if sum>>63 == 1 {
		return idx, -1
	}
	return idx, 1
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns a name that changes with the dimension count,
// so indexes built at one width are never compared with another.
func (s *EmbeddingService) ModelName() string {
	return fmt.Sprintf("hashing-%d", s.dimensions)
}

// Ping always succeeds; there is nothing to reach.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
