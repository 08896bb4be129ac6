package postprocessors

import (
	"time"

	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/postprocessors/chunker"
	"github.com/custodia-labs/querynest/internal/postprocessors/embedder"
)

// Dependencies are the services built-in processors may need.
type Dependencies struct {
	// Embedding is required by the embedder processor.
	Embedding driven.EmbeddingService

	// Cache is shared by every embedder built from the registry.
	// A private cache is created when nil.
	Cache *embedder.Cache
}

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry, deps Dependencies) {
	cache := deps.Cache
	if cache == nil {
		cache = embedder.NewCache(embedder.DefaultCacheSize)
	}
	r.Register("chunker", buildChunker)
	r.Register("embedder", func(cfg map[string]any) (driven.PostProcessor, error) {
		return buildEmbedder(deps.Embedding, cache, cfg)
	})
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_tokens (int): Tokens per chunk (default: 250)
//   - overlap_fraction (float): Share of a chunk repeated in the next (default: 0.2)
//   - slack_tokens (int): Sentence boundary search window (default: 25)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if n := getIntFromConfig(cfg, "chunk_tokens"); n > 0 {
			opts = append(opts, chunker.WithChunkTokens(n))
		}
		if f, ok := getFloatFromConfig(cfg, "overlap_fraction"); ok {
			opts = append(opts, chunker.WithOverlapFraction(f))
		}
		if _, ok := cfg["slack_tokens"]; ok {
			opts = append(opts, chunker.WithSlackTokens(getIntFromConfig(cfg, "slack_tokens")))
		}
	}

	return chunker.New(opts...), nil
}

// buildEmbedder creates an embedder processor from generic config.
// Supported config keys:
//   - batch_size (int): Texts per request (default: 32)
//   - rate_limit (float): Requests per second, 0 for unlimited
//   - timeout_secs (int): Per-request timeout (default: 30)
func buildEmbedder(svc driven.EmbeddingService, cache *embedder.Cache, cfg map[string]any) (driven.PostProcessor, error) {
	opts := []embedder.Option{embedder.WithCache(cache)}

	if cfg != nil {
		if n := getIntFromConfig(cfg, "batch_size"); n > 0 {
			opts = append(opts, embedder.WithBatchSize(n))
		}
		if f, ok := getFloatFromConfig(cfg, "rate_limit"); ok {
			opts = append(opts, embedder.WithRateLimit(f))
		}
		if secs := getIntFromConfig(cfg, "timeout_secs"); secs > 0 {
			opts = append(opts, embedder.WithTimeout(time.Duration(secs)*time.Second))
		}
	}

	return embedder.New(svc, opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// getFloatFromConfig extracts a float, reporting whether the key held a number.
func getFloatFromConfig(cfg map[string]any, key string) (float64, bool) {
	switch v := cfg[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
