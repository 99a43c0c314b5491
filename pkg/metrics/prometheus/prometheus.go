package prometheus

import (
	"strconv"
	"time"

	"fund-transfer/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector for Prometheus.
// It is itself a prometheus.Collector, so it can be passed to MustRegister.
type PrometheusCollector struct {
	namespace string

	// Transfers
	transfers        *prometheus.CounterVec
	transferFailures *prometheus.CounterVec
	transferLatency  *prometheus.HistogramVec
	retries          *prometheus.CounterVec

	// Cache layers
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheSets    *prometheus.CounterVec
	cacheDeletes *prometheus.CounterVec
	cacheErrors  *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec

	// Circuit breaker
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Events
	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	eventLatency    *prometheus.HistogramVec
	queueDepth      *prometheus.GaugeVec

	// HTTP
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	latencyBuckets := prometheus.ExponentialBuckets(0.0001, 2, 15) // 0.1ms to ~3s

	return &PrometheusCollector{
		namespace: namespace,
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Total number of transfers by outcome",
			},
			[]string{"outcome"},
		),
		transferFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_failures_total",
				Help:      "Total number of failed or rejected transfers by reason",
			},
			[]string{"reason"},
		),
		transferLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "End-to-end transfer latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retried attempts per operation",
			},
			[]string{"operation"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses per layer",
			},
			[]string{"layer"},
		),
		cacheSets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_sets_total",
				Help:      "Total number of cache set operations per layer",
			},
			[]string{"layer"},
		),
		cacheDeletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_deletes_total",
				Help:      "Total number of cache delete operations per layer",
			},
			[]string{"layer"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Total number of cache errors per layer and operation",
			},
			[]string{"layer", "operation"},
		),
		cacheLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_operation_duration_seconds",
				Help:      "Cache operation latency",
				Buckets:   latencyBuckets,
			},
			[]string{"layer", "operation"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per service",
			},
			[]string{"service"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per service (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of published events per sink and status",
			},
			[]string{"sink", "status"},
		),
		eventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Total number of events dropped because the queue was full",
			},
			[]string{"sink"},
		),
		eventLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_publish_duration_seconds",
				Help:      "Event publish latency",
				Buckets:   latencyBuckets,
			},
			[]string{"sink"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_queue_depth",
				Help:      "Current async publisher queue depth per sink",
			},
			[]string{"sink"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (pc *PrometheusCollector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pc.transfers,
		pc.transferFailures,
		pc.transferLatency,
		pc.retries,
		pc.cacheHits,
		pc.cacheMisses,
		pc.cacheSets,
		pc.cacheDeletes,
		pc.cacheErrors,
		pc.cacheLatency,
		pc.circuitOpens,
		pc.circuitState,
		pc.eventsPublished,
		pc.eventsDropped,
		pc.eventLatency,
		pc.queueDepth,
		pc.httpRequests,
		pc.httpLatency,
	}
}

// Describe implements prometheus.Collector.
func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range pc.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, c := range pc.collectors() {
		c.Collect(ch)
	}
}

func (pc *PrometheusCollector) RecordTransfer(outcome string, reason string, duration time.Duration) {
	pc.transfers.WithLabelValues(outcome).Inc()
	if reason != "" {
		pc.transferFailures.WithLabelValues(reason).Inc()
	}
	pc.transferLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordRetry(operation string, attempt int) {
	pc.retries.WithLabelValues(operation).Inc()
}

func (pc *PrometheusCollector) RecordGet(layer string, hit bool, duration time.Duration) {
	if hit {
		pc.cacheHits.WithLabelValues(layer).Inc()
	} else {
		pc.cacheMisses.WithLabelValues(layer).Inc()
	}
	pc.cacheLatency.WithLabelValues(layer, "get").Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordSet(layer string, success bool, duration time.Duration) {
	pc.cacheSets.WithLabelValues(layer).Inc()
	if !success {
		pc.cacheErrors.WithLabelValues(layer, "set").Inc()
	}
	pc.cacheLatency.WithLabelValues(layer, "set").Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordDelete(layer string, success bool, duration time.Duration) {
	pc.cacheDeletes.WithLabelValues(layer).Inc()
	if !success {
		pc.cacheErrors.WithLabelValues(layer, "delete").Inc()
	}
	pc.cacheLatency.WithLabelValues(layer, "delete").Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordCircuitState(service string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(service).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(service).Inc()
	}
}

func (pc *PrometheusCollector) RecordEventPublished(sink string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.eventsPublished.WithLabelValues(sink, status).Inc()
	pc.eventLatency.WithLabelValues(sink).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordQueueDepth(sink string, depth int) {
	pc.queueDepth.WithLabelValues(sink).Set(float64(depth))
}

func (pc *PrometheusCollector) RecordEventDropped(sink string) {
	pc.eventsDropped.WithLabelValues(sink).Inc()
}

func (pc *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	pc.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pc.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}
