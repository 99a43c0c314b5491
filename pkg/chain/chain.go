package chain

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"

	"fund-transfer/pkg/cache"
	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/metrics"
	"fund-transfer/pkg/resilience"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LoadFunc produces a value on a full miss.
type LoadFunc func(ctx context.Context) (interface{}, error)

// generationStripes is the number of invalidation counters keys hash onto.
// Two keys sharing a stripe only cost an occasional skipped fill.
const generationStripes = 256

// Chain reads through ordered cache layers, fastest first. Every layer is
// wrapped in a resilience.ResilientLayer sharing one breaker registry.
type Chain struct {
	layers []cache.CacheLayer
	ttl    TTLStrategy
	sf     singleflight.Group
	logger *logging.Logger

	// generations advance on every Delete. A fill or warm-up that started
	// under an older generation must not leave its value behind.
	generations [generationStripes]atomic.Uint64
}

// Config configures a Chain.
type Config struct {
	Breakers *resilience.Breakers
	Metrics  metrics.MetricsCollector
	// Timeout applies to each layer call. Default: 1s
	Timeout time.Duration
	// TTL defaults to UniformTTLStrategy.
	TTL TTLStrategy
}

// New creates a chain. At least one layer is required.
func New(config Config, layers ...cache.CacheLayer) (*Chain, error) {
	if len(layers) == 0 {
		return nil, errors.New("chain: at least one layer required")
	}
	if config.Breakers == nil {
		config.Breakers = resilience.NewBreakers(resilience.DefaultBreakerConfig(), config.Metrics)
	}
	if config.TTL == nil {
		config.TTL = UniformTTLStrategy{}
	}
	rc := resilience.DefaultResilientConfig()
	if config.Timeout > 0 {
		rc.Timeout = config.Timeout
	}

	wrapped := make([]cache.CacheLayer, len(layers))
	for i, layer := range layers {
		wrapped[i] = resilience.NewResilientLayer(layer, config.Breakers, rc, config.Metrics)
	}

	return &Chain{
		layers: wrapped,
		ttl:    config.TTL,
		logger: logging.Global().Named("chain"),
	}, nil
}

// Get returns the value from the first layer that has it and copies it into
// the layers above. Layer errors are treated as misses. On a full miss the
// last error is returned, cache.ErrKeyNotFound if every layer simply missed.
func (c *Chain) Get(ctx context.Context, key string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.lookup(ctx, key, 0, c.generation(key))
}

// GetOrLoad is Get followed by load on a full miss. The loaded value is
// written to every layer with ttl. Concurrent callers for the same key share
// one lookup and one load. A Delete of key while the load runs wins: the
// loaded value is still returned to the waiting callers but is not cached,
// and callers arriving after the Delete start a new load.
func (c *Chain) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load LoadFunc) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		gen := c.generation(key)
		value, err := c.lookup(ctx, key, ttl, gen)
		if err == nil {
			return value, nil
		}

		value, err = load(ctx)
		if err != nil {
			return nil, err
		}
		c.fill(ctx, key, value, ttl, gen)
		return value, nil
	})
	return v, err
}

// fill caches a loaded value unless key was deleted since gen was read. The
// generation is checked again after the write: Delete advances it before
// touching any layer, so either the second check sees the change or the
// Delete runs after the write and removes it.
func (c *Chain) fill(ctx context.Context, key string, value interface{}, ttl time.Duration, gen uint64) {
	if c.generation(key) != gen {
		c.logger.Debug("skipping fill of invalidated key", zap.String("key", key))
		return
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
	}
	if c.generation(key) != gen {
		c.undo(ctx, key, len(c.layers))
	}
}

func (c *Chain) stripe(key string) *atomic.Uint64 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.generations[h.Sum32()%generationStripes]
}

func (c *Chain) generation(key string) uint64 {
	return c.stripe(key).Load()
}

// undo removes key from the first n layers after a racing Delete.
func (c *Chain) undo(ctx context.Context, key string, n int) {
	for i := 0; i < n; i++ {
		if err := c.layers[i].Delete(ctx, key); err != nil {
			c.logger.Warn("cache undo failed",
				zap.String("layer", c.layers[i].Name()),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

func (c *Chain) lookup(ctx context.Context, key string, ttl time.Duration, gen uint64) (interface{}, error) {
	lastErr := cache.ErrKeyNotFound

	for i, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := layer.Get(ctx, key)
		if err != nil {
			if !cache.IsNotFound(err) {
				c.logger.Debug("layer get failed, falling through",
					zap.String("layer", layer.Name()),
					zap.String("key", key),
					zap.Error(err),
				)
			}
			lastErr = err
			continue
		}

		if i > 0 {
			c.warmUpperLayers(ctx, key, value, ttl, i)
			if c.generation(key) != gen {
				c.undo(ctx, key, i)
			}
		}
		return value, nil
	}

	return nil, lastErr
}

// warmUpperLayers writes value into every layer above hitIndex.
func (c *Chain) warmUpperLayers(ctx context.Context, key string, value interface{}, ttl time.Duration, hitIndex int) {
	for i := hitIndex - 1; i >= 0; i-- {
		layerTTL := c.ttl.TTL(i, len(c.layers), ttl)
		if err := c.layers[i].Set(ctx, key, value, layerTTL); err != nil {
			c.logger.Debug("warm-up failed",
				zap.String("layer", c.layers[i].Name()),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

// Set writes to every layer, attempting all of them and joining the errors.
func (c *Chain) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var errs []error
	for i, layer := range c.layers {
		if err := layer.Set(ctx, key, value, c.ttl.TTL(i, len(c.layers), ttl)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from every layer, attempting all of them and joining the
// errors. Loads of key already in flight will not cache their result.
func (c *Chain) Delete(ctx context.Context, key string) error {
	c.stripe(key).Add(1)
	c.sf.Forget(key)

	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping checks every layer that supports it.
func (c *Chain) Ping(ctx context.Context) error {
	var errs []error
	for _, layer := range c.layers {
		if rl, ok := layer.(*resilience.ResilientLayer); ok {
			layer = rl.Unwrap()
		}
		if p, ok := layer.(cache.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", layer.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Chain) Close() error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Layers returns a copy of the wrapped layers.
func (c *Chain) Layers() []cache.CacheLayer {
	layers := make([]cache.CacheLayer, len(c.layers))
	copy(layers, c.layers)
	return layers
}

func (c *Chain) Len() int {
	return len(c.layers)
}

func (c *Chain) String() string {
	names := make([]string, len(c.layers))
	for i, layer := range c.layers {
		names[i] = layer.Name()
	}
	return fmt.Sprintf("chain(%d layers): %s", len(c.layers), strings.Join(names, " -> "))
}
