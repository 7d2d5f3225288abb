// Package metrics records what a lookup run did. The CLI has no server to
// scrape, so the registry is written to a file in the Prometheus text format,
// ready for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

const namespace = "techlookup"

// Metrics groups the collectors of one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  prometheus.Histogram
	domainsProcessed prometheus.Counter
	creditsRemaining prometheus.Gauge
	keyReplacements  prometheus.Counter
	filesWritten     prometheus.Counter
}

// New creates a Metrics value backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_requests_total",
			Help:      "Lookup requests by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_request_duration_seconds",
			Help:      "Latency of lookup requests.",
			Buckets:   DefaultBuckets,
		}),
		domainsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domains_processed_total",
			Help:      "Domains for which the service returned results.",
		}),
		creditsRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credits_remaining",
			Help:      "Credits left on the active API key.",
		}),
		keyReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_replacements_total",
			Help:      "API keys supplied after credits ran out.",
		}),
		filesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_files_written_total",
			Help:      "Output files created or appended to.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.domainsProcessed,
		m.creditsRemaining,
		m.keyReplacements,
		m.filesWritten,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one lookup request and how it ended, e.g. "ok" or
// "rate_limited".
func (m *Metrics) ObserveRequest(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(took.Seconds())
}

// AddDomains counts n processed domains.
func (m *Metrics) AddDomains(n int) {
	if m == nil {
		return
	}
	m.domainsProcessed.Add(float64(n))
}

// SetCredits records the latest known credit balance.
func (m *Metrics) SetCredits(n int) {
	if m == nil {
		return
	}
	m.creditsRemaining.Set(float64(n))
}

// KeyReplaced counts a key swapped in mid-run.
func (m *Metrics) KeyReplaced() {
	if m == nil {
		return
	}
	m.keyReplacements.Inc()
}

// FileWritten counts one output file.
func (m *Metrics) FileWritten() {
	if m == nil {
		return
	}
	m.filesWritten.Inc()
}

// WriteFile writes all metrics to path atomically.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("could not write metrics file: %w", err)
	}

	return nil
}
