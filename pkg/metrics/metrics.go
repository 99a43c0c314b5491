package metrics

import (
	"time"
)

// Transfer outcomes used as metric labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// MetricsCollector defines the interface for collecting service metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory for tests).
type MetricsCollector interface {
	// Transfers
	RecordTransfer(outcome string, reason string, duration time.Duration)
	RecordRetry(operation string, attempt int)

	// Cache layers
	RecordGet(layer string, hit bool, duration time.Duration)
	RecordSet(layer string, success bool, duration time.Duration)
	RecordDelete(layer string, success bool, duration time.Duration)

	// Circuit breaker
	RecordCircuitState(service string, state CircuitState)

	// Event publishing
	RecordEventPublished(sink string, success bool, duration time.Duration)
	RecordQueueDepth(sink string, depth int)
	RecordEventDropped(sink string)

	// HTTP
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the service has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of MetricsCollector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordTransfer(outcome string, reason string, duration time.Duration)       {}
func (NoOpCollector) RecordRetry(operation string, attempt int)                                  {}
func (NoOpCollector) RecordGet(layer string, hit bool, duration time.Duration)                   {}
func (NoOpCollector) RecordSet(layer string, success bool, duration time.Duration)               {}
func (NoOpCollector) RecordDelete(layer string, success bool, duration time.Duration)            {}
func (NoOpCollector) RecordCircuitState(service string, state CircuitState)                      {}
func (NoOpCollector) RecordEventPublished(sink string, success bool, duration time.Duration)     {}
func (NoOpCollector) RecordQueueDepth(sink string, depth int)                                    {}
func (NoOpCollector) RecordEventDropped(sink string)                                             {}
func (NoOpCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {}
