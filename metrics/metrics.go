// Package metrics exposes Prometheus collectors for ontology generation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "goontology"

// OutcomeOK labels successful generations. Failures are labelled with their
// error kind.
const OutcomeOK = "ok"

// Metrics holds every collector.
type Metrics struct {
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	Relationships      prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	EnrichmentWarnings prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	TokensIssued       prometheus.Counter
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Ontology generations by provider and outcome (ok or error kind)",
			},
			[]string{"provider", "outcome"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Wall time of ontology generation, including enrichment",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),
		Relationships: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "relationships",
				Help:      "Relationships per successful ontology",
				Buckets:   prometheus.LinearBuckets(0, 5, 10),
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		EnrichmentWarnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "enrichment",
				Name:      "warnings_total",
				Help:      "Enrichment batches that failed and were skipped",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		TokensIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "tokens_issued_total",
				Help:      "Request tokens handed out by /token",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Generations, m.GenerationDuration, m.Relationships, m.CacheLookups,
		m.EnrichmentWarnings, m.HTTPRequests, m.TokensIssued,
	}
}

// Registry owns a private Prometheus registry with the generation
// collectors and the Go runtime collectors.
type Registry struct {
	reg     *prometheus.Registry
	Metrics *Metrics
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	reg.MustRegister(m.collectors()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{reg: reg, Metrics: m}
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// Handler serves the exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveGeneration records one generation. outcome is OutcomeOK or an
// error kind; relationships is ignored on failure.
func (r *Registry) ObserveGeneration(provider, outcome string, elapsed time.Duration, relationships, warnings int) {
	if r == nil {
		return
	}
	r.Metrics.Generations.WithLabelValues(provider, outcome).Inc()
	r.Metrics.GenerationDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		r.Metrics.Relationships.Observe(float64(relationships))
	}
	if warnings > 0 {
		r.Metrics.EnrichmentWarnings.Add(float64(warnings))
	}
}

// ObserveCache records a cache lookup result ("hit", "miss" or "error").
func (r *Registry) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.Metrics.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveRequest records an HTTP response.
func (r *Registry) ObserveRequest(route string, status int) {
	if r == nil {
		return
	}
	r.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveToken records an issued request token.
func (r *Registry) ObserveToken() {
	if r == nil {
		return
	}
	r.Metrics.TokensIssued.Inc()
}
