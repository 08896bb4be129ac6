package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/querynest/internal/adapters/driven/embedding/local"
	locallm "github.com/custodia-labs/querynest/internal/adapters/driven/llm/local"
	"github.com/custodia-labs/querynest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/postprocessors"
	"github.com/custodia-labs/querynest/internal/postprocessors/chunker"
	"github.com/custodia-labs/querynest/internal/postprocessors/embedder"
	"github.com/custodia-labs/querynest/internal/postprocessors/sectioner"
)

const briefText = `# Overview

This hackathon brief lists two problem statements for student teams. Each team picks one problem and presents a working prototype at the end of the weekend.

# Problem Statement 1: Inventory Tracker

Build an inventory tracker for a small grocery store. The tracker records stock levels for every product and warns the owner when an item runs low. Sales data arrives as a nightly CSV export from the till.

# Problem Statement 2: Route Planner

Design a delivery route planner for a neighbourhood bakery. The planner orders delivery stops to minimise driving time and respects customer delivery windows. Drivers use a phone app to mark each stop as complete.
`

var errEmbedDown = errors.New("embedding backend down")

// plainRegistry treats every upload as UTF-8 text.
type plainRegistry struct{}

func (plainRegistry) Normalise(_ context.Context, up *domain.Upload) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Text: string(up.Content), MIMEType: "text/plain"}, nil
}

func (plainRegistry) Register(driven.Normaliser) {}

func (plainRegistry) SupportedMIMETypes() []string { return []string{"text/plain"} }

// flakyEmbedding wraps the hashing embedder and fails on demand.
type flakyEmbedding struct {
	*local.EmbeddingService

	mu     sync.Mutex
	failOn string // texts containing this fail
	down   bool   // every call fails
	model  string
	calls  int
}

func newFlakyEmbedding() *flakyEmbedding {
	return &flakyEmbedding{EmbeddingService: local.NewEmbeddingService(local.Config{Dimensions: 64})}
}

func (f *flakyEmbedding) set(down bool, failOn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
	f.failOn = failOn
}

func (f *flakyEmbedding) check(texts ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return errEmbedDown
	}
	if f.failOn == "" {
		return nil
	}
	for _, t := range texts {
		if strings.Contains(t, f.failOn) {
			return errEmbedDown
		}
	}
	return nil
}

func (f *flakyEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := f.check(text); err != nil {
		return nil, err
	}
	return f.EmbeddingService.Embed(ctx, text)
}

func (f *flakyEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := f.check(texts...); err != nil {
		return nil, err
	}
	return f.EmbeddingService.EmbedBatch(ctx, texts)
}

func (f *flakyEmbedding) ModelName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model != "" {
		return f.model
	}
	return f.EmbeddingService.ModelName()
}

func (f *flakyEmbedding) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// stubLLM returns a fixed output and records prompts.
type stubLLM struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (s *stubLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

func (s *stubLLM) ModelName() string          { return "stub" }
func (s *stubLLM) Ping(context.Context) error { return s.err }
func (s *stubLLM) Close() error               { return nil }

func (s *stubLLM) promptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[len(s.prompts)-1]
}

// countingObserver tallies pipeline events.
type countingObserver struct {
	mu     sync.Mutex
	events map[string]int
	scores []float64
}

func newCountingObserver() *countingObserver {
	return &countingObserver{events: make(map[string]int)}
}

func (o *countingObserver) inc(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[key]++
}

func (o *countingObserver) DocumentProcessed(status string) { o.inc("document." + status) }
func (o *countingObserver) SectionIndexed(status string)    { o.inc("section." + status) }
func (o *countingObserver) QueryServed(mode string)         { o.inc("query." + mode) }
func (o *countingObserver) CapabilityFailed(c string)       { o.inc("capability." + c) }
func (o *countingObserver) ValidationScored(score float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scores = append(o.scores, score)
}

func (o *countingObserver) count(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[key]
}

// testStack is a complete pipeline over memory stores and offline capabilities.
type testStack struct {
	embedding *flakyEmbedding
	library   *Library
	indexer   *ChunkIndexer
	retriever *Retriever
	documents *DocumentService
	queries   *QueryService
	observer  *countingObserver
}

func newTestStack(t *testing.T) *testStack {
	return newTestStackWithLLM(t, locallm.NewLLMService())
}

func newTestStackWithLLM(t *testing.T, llm driven.LLMService) *testStack {
	t.Helper()

	emb := newFlakyEmbedding()
	cache := embedder.NewCache(embedder.DefaultCacheSize)
	pipeline := postprocessors.NewPipeline(
		chunker.New(chunker.WithChunkTokens(20), chunker.WithSlackTokens(4)),
		embedder.New(emb, embedder.WithCache(cache)),
	)
	observer := newCountingObserver()

	library := NewLibrary(memory.NewDocumentStore(), memory.NewSessionStore())
	indexer := NewChunkIndexer(pipeline, emb,
		WithConcurrency(2), WithEmbeddingCache(cache), WithIndexObserver(observer))
	retriever := NewRetriever(emb, 0, 3)

	documents := NewDocumentService(library, plainRegistry{}, sectioner.New(), indexer)
	documents.SetObserver(observer)

	queries := NewQueryService(library, retriever,
		NewSynthesizer(llm, domain.SynthesisSettings{}, 0),
		NewValidator(emb, domain.ValidationSettings{}, 0),
		4)
	queries.SetObserver(observer)

	return &testStack{
		embedding: emb,
		library:   library,
		indexer:   indexer,
		retriever: retriever,
		documents: documents,
		queries:   queries,
		observer:  observer,
	}
}

func (s *testStack) upload(t *testing.T, name, text string) *domain.Document {
	t.Helper()
	doc, err := s.documents.ProcessUpload(context.Background(), []byte(text), name)
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return doc
}
