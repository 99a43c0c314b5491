package resilience

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is matched by errors returned while a circuit rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit breaker open")

// OpenError reports which service's circuit rejected the call.
type OpenError struct {
	Service string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("Circuit breaker is open for service: %s", e.Service)
}

func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// IsCircuitOpen checks if the given error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// Breakers holds one circuit breaker per service name. Breakers are created
// lazily on first use and are independent of each other.
type Breakers struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	config   BreakerConfig
	metrics  metrics.MetricsCollector
	logger   *logging.Logger
}

// NewBreakers creates an empty registry.
func NewBreakers(config BreakerConfig, collector metrics.MetricsCollector) *Breakers {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Breakers{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   config.withDefaults(),
		metrics:  collector,
		logger:   logging.Global().Named("resilience"),
	}
}

// Execute runs op through the breaker for service. While the circuit is open
// op is not invoked and an *OpenError is returned.
func (b *Breakers) Execute(ctx context.Context, service string, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cb := b.breaker(service)
	result, err := cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("circuit breaker open - request rejected",
			zap.String("service", service),
			zap.String("state", cb.State().String()),
		)
		return nil, &OpenError{Service: service}
	}
	return result, err
}

// Do is Execute for operations without a result.
func (b *Breakers) Do(ctx context.Context, service string, op func(ctx context.Context) error) error {
	_, err := b.Execute(ctx, service, func(ctx context.Context) (interface{}, error) {
		return nil, op(ctx)
	})
	return err
}

// State returns the current state for service. Unknown services are closed.
func (b *Breakers) State(service string) metrics.CircuitState {
	b.mu.RLock()
	cb, ok := b.breakers[service]
	b.mu.RUnlock()
	if !ok {
		return metrics.CircuitClosed
	}
	return toCircuitState(cb.State())
}

// Counts returns the request counters for service.
func (b *Breakers) Counts(service string) Counts {
	b.mu.RLock()
	cb, ok := b.breakers[service]
	b.mu.RUnlock()
	if !ok {
		return Counts{}
	}
	c := cb.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Reset discards the breaker for service so the next call starts closed.
func (b *Breakers) Reset(service string) {
	b.mu.Lock()
	_, existed := b.breakers[service]
	delete(b.breakers, service)
	b.mu.Unlock()

	if existed {
		b.metrics.RecordCircuitState(service, metrics.CircuitClosed)
		b.logger.Info("circuit breaker reset", zap.String("service", service))
	}
}

// Services returns the names of all known services, sorted.
func (b *Breakers) Services() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.breakers))
	for name := range b.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Breakers) breaker(service string) *gobreaker.CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.breakers[service]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[service]; ok {
		return cb
	}

	threshold := b.config.FailureThreshold
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: b.config.MaxRequests,
		Interval:    0,
		Timeout:     b.config.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a dependency failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			b.metrics.RecordCircuitState(name, toCircuitState(to))
		},
	})
	b.breakers[service] = cb

	b.logger.Debug("circuit breaker created",
		zap.String("service", service),
		zap.Uint32("failure_threshold", threshold),
		zap.Duration("cool_down", b.config.CoolDown),
	)
	return cb
}

func toCircuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}
