// Package app wires the document pipeline from settings. It is the single
// composition root shared by the CLI and the MCP server.
package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/querynest/internal/adapters/driven/ai"
	"github.com/custodia-labs/querynest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/querynest/internal/adapters/driven/metrics"
	"github.com/custodia-labs/querynest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/querynest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/core/services"
	"github.com/custodia-labs/querynest/internal/logger"
	"github.com/custodia-labs/querynest/internal/normalisers"
	"github.com/custodia-labs/querynest/internal/postprocessors"
	"github.com/custodia-labs/querynest/internal/postprocessors/embedder"
	"github.com/custodia-labs/querynest/internal/postprocessors/sectioner"
)

// Options control where state lives. Zero values use the defaults under
// ~/.querynest.
type Options struct {
	// ConfigDir holds config.toml and the prompts directory.
	ConfigDir string

	// ConfigStore replaces the TOML config store when set.
	ConfigStore driven.ConfigStore

	// Session names the active document pointer, so separate front ends
	// can keep separate active documents.
	Session string

	// RetryInterval is how often partly indexed documents are retried.
	RetryInterval time.Duration
}

// App holds the wired services.
type App struct {
	Settings  *services.SettingsService
	Documents *services.DocumentService
	Queries   *services.QueryService
	Retry     *services.RetryScheduler
	Metrics   *metrics.Observer
	Prompts   driven.PromptStore
	Formats   *normalisers.Registry

	// Config is the loaded settings snapshot the pipeline was built from.
	Config domain.AppSettings

	// Warnings lists non-fatal setup issues such as provider fallbacks.
	Warnings []string

	closers []func() error
}

// New builds the application from the settings in the config store.
func New(opts Options) (*App, error) {
	configStore := opts.ConfigStore
	if configStore == nil {
		store, err := file.NewConfigStore(opts.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		configStore = store
	}

	settingsSvc := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	a := &App{
		Settings: settingsSvc,
		Config:   *settings,
		Metrics:  metrics.NewObserver(),
	}

	docs, session, err := a.openStorage(settings.Storage, opts.Session)
	if err != nil {
		return nil, err
	}

	caps, err := ai.NewCapabilities(settings)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { caps.Close(); return nil })
	a.Warnings = append(a.Warnings, caps.Warnings...)

	prompts, err := a.openPrompts(opts.ConfigDir)
	if err != nil {
		a.Warnings = append(a.Warnings, err.Error())
	}

	cache := embedder.NewCache(embedder.DefaultCacheSize)
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry, postprocessors.Dependencies{
		Embedding: caps.Embedding,
		Cache:     cache,
	})
	pipeline, err := registry.BuildPipeline(domain.PipelineConfigFor(*settings))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	extractors := normalisers.NewRegistry()
	normalisers.RegisterDefaults(extractors)
	a.Formats = extractors

	library := services.NewLibrary(docs, session)
	indexer := services.NewChunkIndexer(pipeline, caps.Embedding,
		services.WithConcurrency(settings.Indexing.Concurrency),
		services.WithEmbeddingCache(cache),
		services.WithIndexObserver(a.Metrics))
	detector := sectioner.New(
		sectioner.WithMaxHeadingChars(settings.Sections.MaxHeadingChars),
		sectioner.WithMaxHeadingWords(settings.Sections.MaxHeadingWords))

	a.Documents = services.NewDocumentService(library, extractors, detector, indexer)
	a.Documents.SetObserver(a.Metrics)

	synthesizer := services.NewSynthesizer(caps.LLM, settings.Synthesis, settings.Capabilities.GenerateTimeout)
	if prompts != nil {
		synthesizer.SetPromptStore(prompts)
		a.Prompts = prompts
	}
	a.Queries = services.NewQueryService(library,
		services.NewRetriever(caps.Embedding, settings.Capabilities.EmbedTimeout, settings.Retrieval.TopK),
		synthesizer,
		services.NewValidator(caps.Embedding, settings.Validation, settings.Capabilities.EmbedTimeout),
		settings.Retrieval.TopicTopK)
	a.Queries.SetObserver(a.Metrics)

	a.Retry = services.NewRetryScheduler(a.Documents, opts.RetryInterval)

	for _, w := range a.Warnings {
		logger.Warn("%s", w)
	}
	return a, nil
}

// openStorage opens the configured document and session stores.
func (a *App) openStorage(cfg domain.StorageSettings, sessionName string) (driven.DocumentStore, driven.SessionStore, error) {
	switch cfg.Backend {
	case domain.StorageMemory:
		logger.Debug("Using in-memory storage")
		return memory.NewDocumentStore(), memory.NewSessionStore(), nil
	case domain.StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		logger.Debug("Using SQLite storage at %s", store.Path())
		return store.DocumentStore(), store.SessionStore(sessionName), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}

// openPrompts returns the prompt store, or nil with an error when the
// prompts directory cannot be used. Built-in prompts apply in that case.
func (a *App) openPrompts(configDir string) (driven.PromptStore, error) {
	dir := ""
	if configDir != "" {
		dir = filepath.Join(configDir, "prompts")
	}
	store, err := file.NewPromptStore(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt templates unavailable, using built-in prompts: %w", err)
	}
	return store, nil
}

// Close stops the retry scheduler and releases stores and capabilities.
func (a *App) Close() error {
	if a.Retry != nil {
		_ = a.Retry.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
