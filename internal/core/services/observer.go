package services

import "github.com/custodia-labs/querynest/internal/core/ports/driven"

// Observer status and capability labels.
const (
	statusOK      = "ok"
	statusPartial = "partial"
	statusFailed  = "failed"

	capabilityEmbedding  = "embedding"
	capabilityGeneration = "generation"
)

// noopObserver discards pipeline events.
type noopObserver struct{}

func (noopObserver) DocumentProcessed(string) {}
func (noopObserver) SectionIndexed(string)    {}
func (noopObserver) QueryServed(string)       {}
func (noopObserver) ValidationScored(float64) {}
func (noopObserver) CapabilityFailed(string)  {}

var _ driven.PipelineObserver = noopObserver{}

func observerOrNoop(o driven.PipelineObserver) driven.PipelineObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
