package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Conversion outcomes used as the label value on the counter.
const (
	OutcomeOK               = "ok"
	OutcomeCacheHit         = "cache_hit"
	OutcomeBadRequest       = "bad_request"
	OutcomeUnsupportedMedia = "unsupported_media"
	OutcomeFailed           = "failed"
	OutcomeTimeout          = "timeout"
	OutcomeMissingOutput    = "missing_output"
	OutcomeInternal         = "internal"
	OutcomeBusy             = "busy"
)

// Conversions tracks conversion outcomes, durations and produced sizes.
type Conversions struct {
	registry *prometheus.Registry

	total    *prometheus.CounterVec
	duration prometheus.Histogram
	docBytes prometheus.Histogram
}

// NewConversions creates the conversion metrics and registers them with a
// private registry.
func NewConversions(namespace string) *Conversions {
	m := &Conversions{
		registry: prometheus.NewRegistry(),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of conversion requests by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Wall-clock duration of conversion requests",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
		),
		docBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_bytes",
				Help:      "Size of produced documents in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to 4MB
			},
		),
	}

	m.registry.MustRegister(m.total, m.duration, m.docBytes)
	return m
}

// Observe records one finished request.
func (m *Conversions) Observe(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveDocumentBytes records the size of a produced document.
func (m *Conversions) ObserveDocumentBytes(n int) {
	if m == nil {
		return
	}
	m.docBytes.Observe(float64(n))
}

// Handler exposes the registry in the prometheus text format.
func (m *Conversions) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
