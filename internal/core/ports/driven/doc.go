// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Normaliser / NormaliserRegistry: Text extraction from uploaded files
//   - SectionDetector: Splits extracted text into titled sections
//   - PostProcessor / PostProcessorPipeline: Chunking and embedding of a section
//   - EmbeddingService: Generates vector embeddings
//   - LLMService: Generates answers and summaries
//   - DocumentStore: Document tree persistence
//   - SessionStore: Active document pointer
//   - ConfigStore / PromptStore: Configuration and prompt templates
//
// # Optional Interfaces
//
//   - PipelineObserver: Metrics. A no-op observer is used when nil.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
