package resilience

import (
	"context"
	"errors"
	"time"

	"fund-transfer/pkg/cache"
	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/metrics"

	"go.uber.org/zap"
)

// ResilientLayer wraps a CacheLayer with a per-call timeout and routes every
// call through the circuit breaker named after the layer.
type ResilientLayer struct {
	layer    cache.CacheLayer
	breakers *Breakers
	timeout  time.Duration
	metrics  metrics.MetricsCollector
	logger   *logging.Logger
}

// NewResilientLayer wraps layer. The breaker is shared through breakers so the
// same service name always maps to the same circuit.
func NewResilientLayer(layer cache.CacheLayer, breakers *Breakers, config ResilientConfig, collector metrics.MetricsCollector) *ResilientLayer {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &ResilientLayer{
		layer:    layer,
		breakers: breakers,
		timeout:  config.Timeout,
		metrics:  collector,
		logger:   logging.Global().Named("resilience").Named(layer.Name()),
	}
}

func (rl *ResilientLayer) Name() string {
	return rl.layer.Name()
}

// Unwrap returns the wrapped layer.
func (rl *ResilientLayer) Unwrap() cache.CacheLayer {
	return rl.layer
}

// Get returns cache.ErrKeyNotFound on a miss. Misses do not count against the
// circuit.
func (rl *ResilientLayer) Get(ctx context.Context, key string) (interface{}, error) {
	start := time.Now()
	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	miss := false
	value, err := rl.breakers.Execute(ctx, rl.layer.Name(), func(ctx context.Context) (interface{}, error) {
		v, err := rl.layer.Get(ctx, key)
		if cache.IsNotFound(err) {
			miss = true
			return nil, nil
		}
		return v, err
	})

	rl.metrics.RecordGet(rl.layer.Name(), err == nil && !miss, time.Since(start))

	if err != nil {
		return nil, rl.translate(ctx, "get", key, err)
	}
	if miss {
		return nil, cache.ErrKeyNotFound
	}
	return value, nil
}

func (rl *ResilientLayer) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	err := rl.breakers.Do(ctx, rl.layer.Name(), func(ctx context.Context) error {
		return rl.layer.Set(ctx, key, value, ttl)
	})

	rl.metrics.RecordSet(rl.layer.Name(), err == nil, time.Since(start))

	if err != nil {
		return rl.translate(ctx, "set", key, err)
	}
	return nil
}

func (rl *ResilientLayer) Delete(ctx context.Context, key string) error {
	start := time.Now()
	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	err := rl.breakers.Do(ctx, rl.layer.Name(), func(ctx context.Context) error {
		return rl.layer.Delete(ctx, key)
	})

	rl.metrics.RecordDelete(rl.layer.Name(), err == nil, time.Since(start))

	if err != nil {
		return rl.translate(ctx, "delete", key, err)
	}
	return nil
}

func (rl *ResilientLayer) Close() error {
	return rl.layer.Close()
}

// State returns the circuit state for this layer.
func (rl *ResilientLayer) State() metrics.CircuitState {
	return rl.breakers.State(rl.layer.Name())
}

func (rl *ResilientLayer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if rl.timeout > 0 {
		return context.WithTimeout(ctx, rl.timeout)
	}
	return ctx, func() {}
}

func (rl *ResilientLayer) translate(ctx context.Context, op, key string, err error) error {
	if IsCircuitOpen(err) {
		return err
	}
	if cache.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		rl.logger.Warn("operation timeout",
			zap.String("operation", op),
			zap.String("key", key),
			zap.Duration("timeout", rl.timeout),
		)
		return cache.WrapError(cache.ErrTimeout, rl.layer.Name(), op)
	}
	// A closed layer is expected during shutdown.
	if cache.IsUnavailable(err) {
		rl.logger.Warn("layer unavailable",
			zap.String("operation", op),
			zap.String("key", key),
		)
		return cache.WrapError(err, rl.layer.Name(), op)
	}
	rl.logger.Error("cache operation failed",
		zap.String("operation", op),
		zap.String("key", key),
		zap.String("error_type", cache.ClassifyError(err)),
		zap.Error(err),
	)
	return cache.WrapError(err, rl.layer.Name(), op)
}
