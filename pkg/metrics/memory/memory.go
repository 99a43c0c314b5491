package memory

import (
	"strconv"
	"sync"
	"time"

	"fund-transfer/pkg/metrics"
)

// MemoryCollector implements MetricsCollector for in-memory testing.
type MemoryCollector struct {
	mu sync.RWMutex

	transfers      map[string]int64 // by outcome
	failureReasons map[string]int64
	retries        map[string]int64
	layers         map[string]*LayerMetrics
	circuits       map[string]metrics.CircuitState
	circuitOpens   map[string]int64
	events         map[string]*SinkMetrics
	httpRequests   map[string]int64 // "METHOD route status"
}

// LayerMetrics holds metrics for a single cache layer.
type LayerMetrics struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Errors  int64
}

// SinkMetrics holds metrics for one event sink.
type SinkMetrics struct {
	Published  int64
	Failed     int64
	Dropped    int64
	QueueDepth int
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	mc := &MemoryCollector{}
	mc.Reset()
	return mc
}

func (mc *MemoryCollector) layer(name string) *LayerMetrics {
	lm, ok := mc.layers[name]
	if !ok {
		lm = &LayerMetrics{}
		mc.layers[name] = lm
	}
	return lm
}

func (mc *MemoryCollector) sink(name string) *SinkMetrics {
	sm, ok := mc.events[name]
	if !ok {
		sm = &SinkMetrics{}
		mc.events[name] = sm
	}
	return sm
}

func (mc *MemoryCollector) RecordTransfer(outcome string, reason string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.transfers[outcome]++
	if reason != "" {
		mc.failureReasons[reason]++
	}
}

func (mc *MemoryCollector) RecordRetry(operation string, attempt int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.retries[operation]++
}

func (mc *MemoryCollector) RecordGet(layer string, hit bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	if hit {
		lm.Hits++
	} else {
		lm.Misses++
	}
}

func (mc *MemoryCollector) RecordSet(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.Sets++
	if !success {
		lm.Errors++
	}
}

func (mc *MemoryCollector) RecordDelete(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.Deletes++
	if !success {
		lm.Errors++
	}
}

func (mc *MemoryCollector) RecordCircuitState(service string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	old := mc.circuits[service]
	mc.circuits[service] = state
	if old != metrics.CircuitOpen && state == metrics.CircuitOpen {
		mc.circuitOpens[service]++
	}
}

func (mc *MemoryCollector) RecordEventPublished(sink string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.sink(sink)
	if success {
		sm.Published++
	} else {
		sm.Failed++
	}
}

func (mc *MemoryCollector) RecordQueueDepth(sink string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.sink(sink).QueueDepth = depth
}

func (mc *MemoryCollector) RecordEventDropped(sink string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.sink(sink).Dropped++
}

func (mc *MemoryCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.httpRequests[httpKey(method, route, status)]++
}

func httpKey(method, route string, status int) string {
	return method + " " + route + " " + strconv.Itoa(status)
}

// Transfers returns the number of transfers recorded with the given outcome.
func (mc *MemoryCollector) Transfers(outcome string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.transfers[outcome]
}

// FailureReasons returns the count for a failure reason label.
func (mc *MemoryCollector) FailureReasons(reason string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.failureReasons[reason]
}

// Retries returns the number of retries recorded for an operation.
func (mc *MemoryCollector) Retries(operation string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.retries[operation]
}

// Layer returns a copy of the metrics for a cache layer, or nil.
func (mc *MemoryCollector) Layer(name string) *LayerMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if lm, ok := mc.layers[name]; ok {
		c := *lm
		return &c
	}
	return nil
}

// CircuitState returns the last recorded state for a service.
func (mc *MemoryCollector) CircuitState(service string) metrics.CircuitState {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.circuits[service]
}

// CircuitOpens returns how many times a service's circuit opened.
func (mc *MemoryCollector) CircuitOpens(service string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.circuitOpens[service]
}

// Sink returns a copy of the metrics for an event sink, or nil.
func (mc *MemoryCollector) Sink(name string) *SinkMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if sm, ok := mc.events[name]; ok {
		c := *sm
		return &c
	}
	return nil
}

// HTTPRequests returns the count for a method, route and status.
func (mc *MemoryCollector) HTTPRequests(method, route string, status int) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.httpRequests[httpKey(method, route, status)]
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.transfers = make(map[string]int64)
	mc.failureReasons = make(map[string]int64)
	mc.retries = make(map[string]int64)
	mc.layers = make(map[string]*LayerMetrics)
	mc.circuits = make(map[string]metrics.CircuitState)
	mc.circuitOpens = make(map[string]int64)
	mc.events = make(map[string]*SinkMetrics)
	mc.httpRequests = make(map[string]int64)
}
