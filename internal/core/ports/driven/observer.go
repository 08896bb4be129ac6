package driven

// PipelineObserver receives pipeline events for metrics.
// Implementations must be safe for concurrent use.
type PipelineObserver interface {
	// DocumentProcessed records an upload or reindex outcome
	// ("ok", "partial" or "failed").
	DocumentProcessed(status string)

	// SectionIndexed records a per-section indexing outcome ("ok" or "failed").
	SectionIndexed(status string)

	// QueryServed records a completed answer or summary request by mode.
	QueryServed(mode string)

	// ValidationScored records a validation score.
	ValidationScored(score float64)

	// CapabilityFailed records an embedding or generation failure
	// ("embedding" or "generation").
	CapabilityFailed(capability string)
}
