package services

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDimensions  = "embedding.dimensions"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyEmbedTimeout     = "capabilities.embed_timeout_secs"
	keyGenerateTimeout  = "capabilities.generate_timeout_secs"
	keyHeadingChars     = "sections.max_heading_chars"
	keyHeadingWords     = "sections.max_heading_words"
	keyChunkTokens      = "chunker.chunk_tokens"
	keyOverlapFraction  = "chunker.overlap_fraction"
	keySlackTokens      = "chunker.slack_tokens"
	keyConcurrency      = "indexing.concurrency"
	keyBatchSize        = "indexing.batch_size"
	keyRateLimit        = "indexing.rate_limit"
	keyTopK             = "retrieval.top_k"
	keyTopicTopK        = "retrieval.topic_top_k"
	keyMaxContextChars  = "synthesis.max_context_chars"
	keyMaxInputChars    = "synthesis.max_input_chars"
	keyAnswerMaxTokens  = "synthesis.answer_max_tokens"
	keySummaryMaxTokens = "synthesis.summary_max_tokens"
	keyThreshold        = "validation.threshold"
	keyHighConfidence   = "validation.high_confidence"
	keyFactualWeight    = "validation.factual_weight"
	keyClaimSupport     = "validation.claim_support"
	keyStorageBackend   = "storage.backend"
	keyDataDir          = "storage.data_dir"
)

// defaultOllamaURL is used when a local Ollama provider has no base URL.
const defaultOllamaURL = "http://localhost:11434"

// ErrUnknownSetting is returned by Set for keys it does not recognise.
var ErrUnknownSetting = errors.New("unknown setting")

// setter parses a raw value into one field of the settings.
type setter func(settings *domain.AppSettings, value string) error

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	setters     map[string]setter
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		setters:     settingSetters(),
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:      s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDimensions, d.Embedding.Dimensions),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Capabilities: domain.CapabilitySettings{
			EmbedTimeout:    s.getSeconds(keyEmbedTimeout, d.Capabilities.EmbedTimeout),
			GenerateTimeout: s.getSeconds(keyGenerateTimeout, d.Capabilities.GenerateTimeout),
		},
		Sections: domain.SectionSettings{
			MaxHeadingChars: s.getInt(keyHeadingChars, d.Sections.MaxHeadingChars),
			MaxHeadingWords: s.getInt(keyHeadingWords, d.Sections.MaxHeadingWords),
		},
		Chunker: domain.ChunkSettings{
			ChunkTokens:     s.getInt(keyChunkTokens, d.Chunker.ChunkTokens),
			OverlapFraction: s.getFloat(keyOverlapFraction, d.Chunker.OverlapFraction),
			SlackTokens:     s.getInt(keySlackTokens, d.Chunker.SlackTokens),
		},
		Indexing: domain.IndexSettings{
			Concurrency: s.getInt(keyConcurrency, d.Indexing.Concurrency),
			BatchSize:   s.getInt(keyBatchSize, d.Indexing.BatchSize),
			RateLimit:   s.getFloat(keyRateLimit, d.Indexing.RateLimit),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:      s.getInt(keyTopK, d.Retrieval.TopK),
			TopicTopK: s.getInt(keyTopicTopK, d.Retrieval.TopicTopK),
		},
		Synthesis: domain.SynthesisSettings{
			MaxContextChars:  s.getInt(keyMaxContextChars, d.Synthesis.MaxContextChars),
			MaxInputChars:    s.getInt(keyMaxInputChars, d.Synthesis.MaxInputChars),
			AnswerMaxTokens:  s.getInt(keyAnswerMaxTokens, d.Synthesis.AnswerMaxTokens),
			SummaryMaxTokens: s.getInt(keySummaryMaxTokens, d.Synthesis.SummaryMaxTokens),
		},
		Validation: domain.ValidationSettings{
			Threshold:      s.getFloat(keyThreshold, d.Validation.Threshold),
			HighConfidence: s.getFloat(keyHighConfidence, d.Validation.HighConfidence),
			FactualWeight:  s.getFloat(keyFactualWeight, d.Validation.FactualWeight),
			ClaimSupport:   s.getFloat(keyClaimSupport, d.Validation.ClaimSupport),
		},
		Storage: domain.StorageSettings{
			Backend: s.getBackend(d.Storage.Backend),
			DataDir: s.configStore.GetString(keyDataDir),
		},
	}

	return settings, nil
}

// Save persists application settings. Empty API keys are not written so
// a key held in the environment is never overwritten with nothing.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyEmbedTimeout, int(settings.Capabilities.EmbedTimeout / time.Second)},
		{keyGenerateTimeout, int(settings.Capabilities.GenerateTimeout / time.Second)},
		{keyHeadingChars, settings.Sections.MaxHeadingChars},
		{keyHeadingWords, settings.Sections.MaxHeadingWords},
		{keyChunkTokens, settings.Chunker.ChunkTokens},
		{keyOverlapFraction, settings.Chunker.OverlapFraction},
		{keySlackTokens, settings.Chunker.SlackTokens},
		{keyConcurrency, settings.Indexing.Concurrency},
		{keyBatchSize, settings.Indexing.BatchSize},
		{keyRateLimit, settings.Indexing.RateLimit},
		{keyTopK, settings.Retrieval.TopK},
		{keyTopicTopK, settings.Retrieval.TopicTopK},
		{keyMaxContextChars, settings.Synthesis.MaxContextChars},
		{keyMaxInputChars, settings.Synthesis.MaxInputChars},
		{keyAnswerMaxTokens, settings.Synthesis.AnswerMaxTokens},
		{keySummaryMaxTokens, settings.Synthesis.SummaryMaxTokens},
		{keyThreshold, settings.Validation.Threshold},
		{keyHighConfidence, settings.Validation.HighConfidence},
		{keyFactualWeight, settings.Validation.FactualWeight},
		{keyClaimSupport, settings.Validation.ClaimSupport},
		{keyStorageBackend, settings.Storage.Backend.String()},
		{keyDataDir, settings.Storage.DataDir},
	}

	for _, v := range values {
		if (v.key == keyEmbedAPIKey || v.key == keyLLMAPIKey) && v.value == "" {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set updates a single setting by its configuration key. The value is
// parsed for the key's type and the resulting settings must validate.
func (s *SettingsService) Set(key, value string) error {
	set, ok := s.setters[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := set(settings, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if err := checkSettings(settings); err != nil {
		return err
	}
	return s.Save(settings)
}

// Keys returns all recognised setting keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(s.setters))
	for k := range s.setters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if m, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = m
	}

	switch provider {
	case domain.AIProviderOllama:
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	default:
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else if m, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = m
	}

	switch provider {
	case domain.AIProviderOllama:
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	default:
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that current settings are internally consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return checkSettings(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// checkSettings reports the first out-of-range value.
func checkSettings(st *domain.AppSettings) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
	}

	switch {
	case !st.Embedding.Provider.IsValid():
		return invalid("unknown embedding provider %q", st.Embedding.Provider)
	case st.Embedding.Provider == domain.AIProviderAnthropic:
		return invalid("provider %s does not support embeddings", st.Embedding.Provider)
	case !st.LLM.Provider.IsValid():
		return invalid("unknown llm provider %q", st.LLM.Provider)
	case st.Embedding.Dimensions < 1:
		return invalid("%s must be at least 1", keyEmbedDimensions)
	case st.Capabilities.EmbedTimeout <= 0 || st.Capabilities.GenerateTimeout <= 0:
		return invalid("capability timeouts must be positive")
	case st.Sections.MaxHeadingChars < 1 || st.Sections.MaxHeadingWords < 1:
		return invalid("heading limits must be at least 1")
	case st.Chunker.ChunkTokens < 2:
		return invalid("%s must be at least 2", keyChunkTokens)
	case st.Chunker.OverlapFraction < 0 || st.Chunker.OverlapFraction >= 1:
		return invalid("%s must be in [0, 1)", keyOverlapFraction)
	case st.Chunker.SlackTokens < 0 || st.Chunker.SlackTokens >= st.Chunker.ChunkTokens:
		return invalid("%s must be in [0, %s)", keySlackTokens, keyChunkTokens)
	case st.Indexing.Concurrency < 1 || st.Indexing.BatchSize < 1:
		return invalid("indexing concurrency and batch size must be at least 1")
	case st.Indexing.RateLimit < 0:
		return invalid("%s must not be negative", keyRateLimit)
	case st.Retrieval.TopK < 1 || st.Retrieval.TopicTopK < 1:
		return invalid("retrieval limits must be at least 1")
	case st.Synthesis.MaxContextChars < 1 || st.Synthesis.MaxInputChars < 1:
		return invalid("synthesis character limits must be at least 1")
	case st.Synthesis.AnswerMaxTokens < 1 || st.Synthesis.SummaryMaxTokens < 1:
		return invalid("synthesis token limits must be at least 1")
	case st.Validation.Threshold <= 0 || st.Validation.Threshold > 1:
		return invalid("%s must be in (0, 1]", keyThreshold)
	case st.Validation.HighConfidence < st.Validation.Threshold || st.Validation.HighConfidence > 1:
		return invalid("%s must be in [%s, 1]", keyHighConfidence, keyThreshold)
	case st.Validation.FactualWeight <= 0 || st.Validation.FactualWeight > 1:
		return invalid("%s must be in (0, 1]", keyFactualWeight)
	case st.Validation.ClaimSupport <= 0 || st.Validation.ClaimSupport > 1:
		return invalid("%s must be in (0, 1]", keyClaimSupport)
	case !st.Storage.Backend.IsValid():
		return invalid("unknown storage backend %q", st.Storage.Backend)
	}
	return nil
}

func settingSetters() map[string]setter {
	str := func(field func(*domain.AppSettings) *string) setter {
		return func(st *domain.AppSettings, v string) error {
			*field(st) = v
			return nil
		}
	}
	num := func(field func(*domain.AppSettings) *int) setter {
		return func(st *domain.AppSettings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%q is not an integer", v)
			}
			*field(st) = n
			return nil
		}
	}
	frac := func(field func(*domain.AppSettings) *float64) setter {
		return func(st *domain.AppSettings, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%q is not a number", v)
			}
			*field(st) = f
			return nil
		}
	}
	secs := func(field func(*domain.AppSettings) *time.Duration) setter {
		return func(st *domain.AppSettings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%q is not a whole number of seconds", v)
			}
			*field(st) = time.Duration(n) * time.Second
			return nil
		}
	}
	provider := func(field func(*domain.AppSettings) *domain.AIProvider) setter {
		return func(st *domain.AppSettings, v string) error {
			p := domain.AIProvider(strings.ToLower(v))
			if !p.IsValid() {
				return fmt.Errorf("unknown provider %q", v)
			}
			*field(st) = p
			return nil
		}
	}

	return map[string]setter{
		keyEmbedProvider: provider(func(st *domain.AppSettings) *domain.AIProvider { return &st.Embedding.Provider }),
		keyEmbedModel:    str(func(st *domain.AppSettings) *string { return &st.Embedding.Model }),
		keyEmbedBaseURL:  str(func(st *domain.AppSettings) *string { return &st.Embedding.BaseURL }),
		keyEmbedAPIKey:   str(func(st *domain.AppSettings) *string { return &st.Embedding.APIKey }),
		keyEmbedDimensions: func(st *domain.AppSettings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%q is not an integer", v)
			}
			st.Embedding.Dimensions = n
			// The built-in embedder's model name carries its dimension.
			if st.Embedding.Provider == domain.AIProviderLocal {
				st.Embedding.Model = fmt.Sprintf("hashing-%d", n)
			}
			return nil
		},
		keyLLMProvider:      provider(func(st *domain.AppSettings) *domain.AIProvider { return &st.LLM.Provider }),
		keyLLMModel:         str(func(st *domain.AppSettings) *string { return &st.LLM.Model }),
		keyLLMBaseURL:       str(func(st *domain.AppSettings) *string { return &st.LLM.BaseURL }),
		keyLLMAPIKey:        str(func(st *domain.AppSettings) *string { return &st.LLM.APIKey }),
		keyEmbedTimeout:     secs(func(st *domain.AppSettings) *time.Duration { return &st.Capabilities.EmbedTimeout }),
		keyGenerateTimeout:  secs(func(st *domain.AppSettings) *time.Duration { return &st.Capabilities.GenerateTimeout }),
		keyHeadingChars:     num(func(st *domain.AppSettings) *int { return &st.Sections.MaxHeadingChars }),
		keyHeadingWords:     num(func(st *domain.AppSettings) *int { return &st.Sections.MaxHeadingWords }),
		keyChunkTokens:      num(func(st *domain.AppSettings) *int { return &st.Chunker.ChunkTokens }),
		keyOverlapFraction:  frac(func(st *domain.AppSettings) *float64 { return &st.Chunker.OverlapFraction }),
		keySlackTokens:      num(func(st *domain.AppSettings) *int { return &st.Chunker.SlackTokens }),
		keyConcurrency:      num(func(st *domain.AppSettings) *int { return &st.Indexing.Concurrency }),
		keyBatchSize:        num(func(st *domain.AppSettings) *int { return &st.Indexing.BatchSize }),
		keyRateLimit:        frac(func(st *domain.AppSettings) *float64 { return &st.Indexing.RateLimit }),
		keyTopK:             num(func(st *domain.AppSettings) *int { return &st.Retrieval.TopK }),
		keyTopicTopK:        num(func(st *domain.AppSettings) *int { return &st.Retrieval.TopicTopK }),
		keyMaxContextChars:  num(func(st *domain.AppSettings) *int { return &st.Synthesis.MaxContextChars }),
		keyMaxInputChars:    num(func(st *domain.AppSettings) *int { return &st.Synthesis.MaxInputChars }),
		keyAnswerMaxTokens:  num(func(st *domain.AppSettings) *int { return &st.Synthesis.AnswerMaxTokens }),
		keySummaryMaxTokens: num(func(st *domain.AppSettings) *int { return &st.Synthesis.SummaryMaxTokens }),
		keyThreshold:        frac(func(st *domain.AppSettings) *float64 { return &st.Validation.Threshold }),
		keyHighConfidence:   frac(func(st *domain.AppSettings) *float64 { return &st.Validation.HighConfidence }),
		keyFactualWeight:    frac(func(st *domain.AppSettings) *float64 { return &st.Validation.FactualWeight }),
		keyClaimSupport:     frac(func(st *domain.AppSettings) *float64 { return &st.Validation.ClaimSupport }),
		keyStorageBackend: func(st *domain.AppSettings, v string) error {
			st.Storage.Backend = domain.StorageBackend(strings.ToLower(v))
			return nil
		},
		keyDataDir: str(func(st *domain.AppSettings) *string { return &st.Storage.DataDir }),
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return time.Duration(s.configStore.GetInt(key)) * time.Second
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	val := s.configStore.GetString(keyStorageBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.StorageBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
