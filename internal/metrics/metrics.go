// Package metrics exposes Prometheus collectors for the shop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopkeeper"

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	SearchDuration     prometheus.Histogram
	SearchCandidates   prometheus.Histogram
	SessionsOpened     *prometheus.CounterVec
	SessionsClosed     *prometheus.CounterVec
	EditsRejected      *prometheus.CounterVec
	Commits            *prometheus.CounterVec
	CommitAmount       prometheus.Counter
	BackendFallbacks   *prometheus.CounterVec
	PersistenceResults *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Combination search latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		SearchCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Candidate sets returned per search.",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		}),
		SessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Reconciliation sessions opened, by source method.",
		}, []string{"method"}),
		SessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Reconciliation sessions closed, by final state.",
		}, []string{"state"}),
		EditsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_edits_rejected_total",
			Help:      "Session edits refused because they would exceed the target amount.",
		}, []string{"operation"}),
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_committed_total",
			Help:      "Committed transactions, by payment type.",
		}, []string{"type"}),
		CommitAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_amount_total",
			Help:      "Sum of committed transaction amounts.",
		}),
		BackendFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_fallbacks_total",
			Help:      "Times a collaborator was unavailable and a local fallback was used.",
		}, []string{"backend"}),
		PersistenceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_jobs_total",
			Help:      "Background persistence jobs by key and result.",
		}, []string{"key", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SearchDuration,
		m.SearchCandidates,
		m.SessionsOpened,
		m.SessionsClosed,
		m.EditsRejected,
		m.Commits,
		m.CommitAmount,
		m.BackendFallbacks,
		m.PersistenceResults,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(d time.Duration, candidates int) {
	m.SearchDuration.Observe(d.Seconds())
	m.SearchCandidates.Observe(float64(candidates))
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
}
