package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	CreditsCharged     *prometheus.CounterVec

	// Provider metrics
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	PollAttempts         *prometheus.HistogramVec

	// Aggregate cache metrics
	CacheLookupsTotal *prometheus.CounterVec

	// Websocket metrics
	StreamConnections prometheus.Gauge
}

// New creates a new Metrics instance registered with reg. A nil reg uses
// the default Prometheus registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "elevare"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Generation metrics
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Total number of generations by feature and outcome",
			},
			[]string{"feature", "status"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Generation duration in seconds, provider polling included",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 900},
			},
			[]string{"feature"},
		),
		CreditsCharged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credits",
				Name:      "charged_total",
				Help:      "Total credits charged by feature",
			},
			[]string{"feature"},
		),

		// Provider metrics
		ProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Total number of AI provider calls by operation and outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		ProviderCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "call_duration_seconds",
				Help:      "AI provider call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "op"},
		),
		PollAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "poll_attempts",
				Help:      "Operation polls per long-running generation",
				Buckets:   []float64{1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"provider"},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Usage aggregate cache lookups by result",
			},
			[]string{"result"},
		),

		StreamConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "connections",
				Help:      "Open generation state websocket connections",
			},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration records a finished generation.
func (m *Metrics) RecordGeneration(feature, status string, d time.Duration) {
	m.GenerationsTotal.WithLabelValues(feature, status).Inc()
	m.GenerationDuration.WithLabelValues(feature).Observe(d.Seconds())
}

// RecordCreditsCharged records credits charged for a feature.
func (m *Metrics) RecordCreditsCharged(feature string, credits int64) {
	if credits <= 0 {
		return
	}
	m.CreditsCharged.WithLabelValues(feature).Add(float64(credits))
}

// RecordProviderCall records one provider HTTP call.
func (m *Metrics) RecordProviderCall(provider, op, outcome string, d time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(provider, op, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(provider, op).Observe(d.Seconds())
}

// RecordPollAttempts records how many polls a long-running operation took.
func (m *Metrics) RecordPollAttempts(provider string, attempts int) {
	if attempts <= 0 {
		return
	}
	m.PollAttempts.WithLabelValues(provider).Observe(float64(attempts))
}

// RecordCacheLookup records an aggregate cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
