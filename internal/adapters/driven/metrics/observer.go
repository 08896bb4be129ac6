// Package metrics exports pipeline events as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// Ensure Observer implements the interface.
var _ driven.PipelineObserver = (*Observer)(nil)

const namespace = "querynest"

// Observer records pipeline events in its own Prometheus registry.
type Observer struct {
	registry *prometheus.Registry

	documents    *prometheus.CounterVec
	sections     *prometheus.CounterVec
	queries      *prometheus.CounterVec
	capabilities *prometheus.CounterVec
	validation   prometheus.Histogram
}

// NewObserver creates an observer with a fresh registry that also carries
// the Go runtime and process collectors.
func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Uploads and reindexes by outcome.",
		}, []string{"status"}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_indexed_total",
			Help:      "Sections indexed by outcome.",
		}, []string{"status"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answers and summaries served by mode.",
		}, []string{"mode"}),
		capabilities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_errors_total",
			Help:      "Embedding and generation failures.",
		}, []string{"capability"}),
		validation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_score",
			Help:      "Validation scores of answers and summaries.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
	}

	o.registry.MustRegister(
		o.documents,
		o.sections,
		o.queries,
		o.capabilities,
		o.validation,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

// DocumentProcessed implements driven.PipelineObserver.
func (o *Observer) DocumentProcessed(status string) {
	o.documents.WithLabelValues(status).Inc()
}

// SectionIndexed implements driven.PipelineObserver.
func (o *Observer) SectionIndexed(status string) {
	o.sections.WithLabelValues(status).Inc()
}

// QueryServed implements driven.PipelineObserver.
func (o *Observer) QueryServed(mode string) {
	o.queries.WithLabelValues(mode).Inc()
}

// ValidationScored implements driven.PipelineObserver.
func (o *Observer) ValidationScored(score float64) {
	o.validation.Observe(score)
}

// CapabilityFailed implements driven.PipelineObserver.
func (o *Observer) CapabilityFailed(capability string) {
	o.capabilities.WithLabelValues(capability).Inc()
}

// Registry returns the registry holding the pipeline metrics.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}
