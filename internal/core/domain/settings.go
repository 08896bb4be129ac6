package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderLocal is the built-in offline provider
	// (hashing embedder, extractive generator).
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Built-in (offline)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size of the local embedder.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// CapabilitySettings bounds calls to external capabilities.
type CapabilitySettings struct {
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

// SectionSettings tunes heading detection.
type SectionSettings struct {
	MaxHeadingChars int
	MaxHeadingWords int
}

// ChunkSettings tunes chunk splitting.
type ChunkSettings struct {
	// ChunkTokens is the target chunk size in whitespace-separated tokens.
	ChunkTokens int

	// OverlapFraction is the share of ChunkTokens repeated between
	// consecutive chunks.
	OverlapFraction float64

	// SlackTokens is how far back a chunk end may move to land on
	// a sentence boundary.
	SlackTokens int
}

// OverlapTokens returns the overlap in tokens.
func (c ChunkSettings) OverlapTokens() int {
	n := int(float64(c.ChunkTokens)*c.OverlapFraction + 0.5)
	if n >= c.ChunkTokens {
		n = c.ChunkTokens - 1
	}
	if n < 0 {
		n = 0
	}
	return n
}

// IndexSettings tunes the indexing workers.
type IndexSettings struct {
	Concurrency int
	BatchSize   int

	// RateLimit caps embedding requests per second. Zero disables it.
	RateLimit float64
}

// RetrievalSettings tunes the Retriever.
type RetrievalSettings struct {
	TopK      int
	TopicTopK int
}

// SynthesisSettings tunes the Answer Synthesizer.
type SynthesisSettings struct {
	MaxContextChars  int
	MaxInputChars    int
	AnswerMaxTokens  int
	SummaryMaxTokens int
}

// ValidationSettings tunes the Validator.
type ValidationSettings struct {
	Threshold      float64
	HighConfidence float64
	FactualWeight  float64
	ClaimSupport   float64
}

// StorageBackend selects the document session store implementation.
type StorageBackend string

// Available storage backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	return b == StorageSQLite || b == StorageMemory
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// StorageSettings selects where documents are kept.
type StorageSettings struct {
	Backend StorageBackend
	DataDir string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding    EmbeddingSettings
	LLM          LLMSettings
	Capabilities CapabilitySettings
	Sections     SectionSettings
	Chunker      ChunkSettings
	Indexing     IndexSettings
	Retrieval    RetrievalSettings
	Synthesis    SynthesisSettings
	Validation   ValidationSettings
	Storage      StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Both capabilities default to the built-in provider so the
// pipeline works without network access.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderLocal,
			Model:      DefaultEmbeddingModels()[AIProviderLocal],
			Dimensions: 384,
		},
		LLM: LLMSettings{
			Provider: AIProviderLocal,
			Model:    DefaultLLMModels()[AIProviderLocal],
		},
		Capabilities: CapabilitySettings{
			EmbedTimeout:    30 * time.Second,
			GenerateTimeout: 120 * time.Second,
		},
		Sections: SectionSettings{
			MaxHeadingChars: 80,
			MaxHeadingWords: 12,
		},
		Chunker: ChunkSettings{
			ChunkTokens:     250,
			OverlapFraction: 0.2,
			SlackTokens:     25,
		},
		Indexing: IndexSettings{
			Concurrency: 4,
			BatchSize:   32,
		},
		Retrieval: RetrievalSettings{
			TopK:      4,
			TopicTopK: 6,
		},
		Synthesis: SynthesisSettings{
			MaxContextChars:  6000,
			MaxInputChars:    8000,
			AnswerMaxTokens:  256,
			SummaryMaxTokens: 200,
		},
		Validation: ValidationSettings{
			Threshold:      0.6,
			HighConfidence: 0.8,
			FactualWeight:  0.7,
			ClaimSupport:   0.5,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hashing-384",
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:     "extractive",
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"hashing-384": 384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor builds the indexing pipeline configuration from settings.
func PipelineConfigFor(s AppSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "embedder"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_tokens":     s.Chunker.ChunkTokens,
				"overlap_fraction": s.Chunker.OverlapFraction,
				"slack_tokens":     s.Chunker.SlackTokens,
			},
			"embedder": {
				"batch_size":   s.Indexing.BatchSize,
				"rate_limit":   s.Indexing.RateLimit,
				"timeout_secs": int(s.Capabilities.EmbedTimeout / time.Second),
			},
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFor(DefaultAppSettings())
}
