// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	localembed "github.com/custodia-labs/querynest/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/custodia-labs/querynest/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/querynest/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/querynest/internal/adapters/driven/llm/anthropic"
	localllm "github.com/custodia-labs/querynest/internal/adapters/driven/llm/local"
	ollamallm "github.com/custodia-labs/querynest/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/querynest/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// errNoEmbeddings is returned for providers without an embeddings API.
var errNoEmbeddings = errors.New("anthropic does not support embeddings, use local, ollama or openai")

// Capabilities bundles the embedding and generation services the pipeline runs on.
type Capabilities struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
	Warnings  []string // Non-fatal issues that caused a fallback to the built-in provider.
}

// Close releases all resources held by the capabilities.
func (c *Capabilities) Close() {
	if c.Embedding != nil {
		c.Embedding.Close()
	}
	if c.LLM != nil {
		c.LLM.Close()
	}
}

// NewCapabilities builds both services from settings.
// A provider that is not configured falls back to the built-in one with a warning;
// remote providers are not pinged, so an unreachable service surfaces on first use.
func NewCapabilities(settings *domain.AppSettings) (*Capabilities, error) {
	caps := &Capabilities{}

	embed, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if embed == nil {
		caps.Warnings = append(caps.Warnings,
			fmt.Sprintf("embedding provider %q is not configured, using built-in embedder", settings.Embedding.Provider))
		embed = localembed.NewEmbeddingService(localembed.Config{Dimensions: settings.Embedding.Dimensions})
	}
	caps.Embedding = embed

	llm, err := CreateLLMService(&settings.LLM)
	if err != nil {
		embed.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	if llm == nil {
		caps.Warnings = append(caps.Warnings,
			fmt.Sprintf("LLM provider %q is not configured, using built-in extractive generator", settings.LLM.Provider))
		llm = localllm.NewLLMService()
	}
	caps.LLM = llm

	return caps, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'querynest settings set embedding.provider' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'querynest settings set llm.provider' to fix",
			domain.ErrGenerationUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrGenerationUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(settings)
	if svc != nil {
		svc.Close()
	}
	return err
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateAndValidateLLMService(settings)
	if svc != nil {
		svc.Close()
	}
	return err
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, errNoEmbeddings
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderLocal:
		return localembed.NewEmbeddingService(localembed.Config{Dimensions: settings.Dimensions}), nil

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: domain.EmbeddingDimensions()[settings.Model],
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderLocal:
		return localllm.NewLLMService(), nil

	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
