package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph query metrics
	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryAttempts *prometheus.HistogramVec
	QueryRetries  *prometheus.CounterVec

	// Telemetry pipeline
	TelemetryDropped prometheus.CounterFunc
}

// NewCollector creates a metrics collector with its own registry.
// dropped reports the telemetry records lost to a full sink queue; it may
// be nil.
func NewCollector(namespace string, dropped func() int64) *Collector {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_queries_total",
			Help:      "Total number of graph queries by final outcome",
		},
		[]string{"query", "outcome", "mode"},
	)

	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_query_duration_seconds",
			Help:      "Graph query duration in seconds, retries included",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"query"},
	)

	queryAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_query_attempts",
			Help:      "Attempts needed per graph query",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"query"},
	)

	queryRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_query_retries_total",
			Help:      "Total number of graph query retries by failure kind",
		},
		[]string{"query", "kind"},
	)

	if dropped == nil {
		dropped = func() int64 { return 0 }
	}
	telemetryDropped := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_records_dropped_total",
			Help:      "Slow query records not written because the sink queue was full",
		},
		func() float64 { return float64(dropped()) },
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		queries,
		queryDuration,
		queryAttempts,
		queryRetries,
		telemetryDropped,
	)

	return &Collector{
		registry:         registry,
		HTTPRequests:     httpRequests,
		HTTPDuration:     httpDuration,
		Queries:          queries,
		QueryDuration:    queryDuration,
		QueryAttempts:    queryAttempts,
		QueryRetries:     queryRetries,
		TelemetryDropped: telemetryDropped,
	}
}

// ObserveQuery records the final outcome of one graph query.
func (c *Collector) ObserveQuery(name, outcome string, readOnly bool, elapsed time.Duration, attempts int) {
	mode := "write"
	if readOnly {
		mode = "read"
	}
	c.Queries.WithLabelValues(name, outcome, mode).Inc()
	c.QueryDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	c.QueryAttempts.WithLabelValues(name).Observe(float64(attempts))
}

// ObserveRetry counts one retry of a graph query.
func (c *Collector) ObserveRetry(name, kind string) {
	c.QueryRetries.WithLabelValues(name, kind).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
