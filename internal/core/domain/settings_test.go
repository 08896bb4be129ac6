package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_IsValid(t *testing.T) {
	for _, p := range AllLLMProviders() {
		assert.True(t, p.IsValid(), p)
	}
	assert.False(t, AIProvider("").IsValid())
	assert.False(t, AIProvider("cohere").IsValid())
}

func TestAIProvider_Traits(t *testing.T) {
	assert.True(t, AIProviderLocal.IsLocal())
	assert.True(t, AIProviderOllama.IsLocal())
	assert.False(t, AIProviderOpenAI.IsLocal())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
	assert.False(t, AIProviderLocal.RequiresAPIKey())
	assert.Equal(t, "Built-in (offline)", AIProviderLocal.Description())
	assert.Equal(t, unknownDescription, AIProvider("x").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name string
		s    EmbeddingSettings
		want bool
	}{
		{"local", EmbeddingSettings{Provider: AIProviderLocal}, true},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}, true},
		{"anthropic has no embeddings", EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}, false},
		{"empty", EmbeddingSettings{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.IsConfigured())
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.True(t, LLMSettings{Provider: AIProviderLocal}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderAnthropic}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
}

func TestChunkSettings_OverlapTokens(t *testing.T) {
	assert.Equal(t, 50, ChunkSettings{ChunkTokens: 250, OverlapFraction: 0.2}.OverlapTokens())
	assert.Equal(t, 2, ChunkSettings{ChunkTokens: 10, OverlapFraction: 0.2}.OverlapTokens())
	assert.Equal(t, 9, ChunkSettings{ChunkTokens: 10, OverlapFraction: 1}.OverlapTokens())
	assert.Equal(t, 0, ChunkSettings{ChunkTokens: 10}.OverlapTokens())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, AIProviderLocal, s.Embedding.Provider)
	assert.Equal(t, "hashing-384", s.Embedding.Model)
	assert.Equal(t, 384, s.Embedding.Dimensions)
	assert.Equal(t, 250, s.Chunker.ChunkTokens)
	assert.InDelta(t, 0.2, s.Chunker.OverlapFraction, 1e-9)
	assert.InDelta(t, 0.6, s.Validation.Threshold, 1e-9)
	assert.InDelta(t, 0.8, s.Validation.HighConfidence, 1e-9)
	assert.Greater(t, s.Validation.FactualWeight, 0.5)
	assert.Equal(t, 4, s.Retrieval.TopK)
	assert.Equal(t, StorageSQLite, s.Storage.Backend)
}

func TestPipelineConfigFor(t *testing.T) {
	cfg := DefaultPipelineConfig()

	assert.Equal(t, []string{"chunker", "embedder"}, cfg.Processors)
	assert.Equal(t, 250, cfg.GetProcessorConfig("chunker")["chunk_tokens"])
	assert.Equal(t, 32, cfg.GetProcessorConfig("embedder")["batch_size"])
	assert.Equal(t, 30, cfg.GetProcessorConfig("embedder")["timeout_secs"])
	assert.Nil(t, cfg.GetProcessorConfig("missing"))

	var empty PipelineConfig
	assert.Nil(t, empty.GetProcessorConfig("chunker"))
}
