// Package memory is the in-process cache tier.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"fund-transfer/pkg/cache"
)

// MemoryCacheConfig holds configuration for the memory cache
type MemoryCacheConfig struct {
	// Name is the layer identifier. Default: "memory"
	Name string

	// MaxSize bounds the number of entries. 0 means unbounded.
	MaxSize int

	// DefaultTTL applies when Set is called with ttl 0. Default: 5m
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept. Default: 1m
	CleanupInterval time.Duration
}

// MemoryCache keeps entries in a map plus a recency list. The front of the
// list is the most recently used entry; eviction takes from the back.
type MemoryCache struct {
	config MemoryCacheConfig
	now    func() time.Time

	mu      sync.Mutex
	items   map[string]*list.Element
	recency *list.List
	closed  bool

	stop chan struct{}
	done chan struct{}
}

type item struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

func NewMemoryCache(config MemoryCacheConfig) *MemoryCache {
	if config.Name == "" {
		config.Name = "memory"
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	c := &MemoryCache{
		config:  config,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		recency: list.New(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, cache.ErrLayerUnavailable
	}

	el, ok := c.items[key]
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	it := el.Value.(*item)
	if !c.now().Before(it.expiresAt) {
		c.remove(el)
		return nil, cache.ErrKeyNotFound
	}
	c.recency.MoveToFront(el)
	return it.value, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cache.ErrLayerUnavailable
	}

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		it := el.Value.(*item)
		it.value, it.expiresAt = value, expiresAt
		c.recency.MoveToFront(el)
		return nil
	}

	if c.config.MaxSize > 0 {
		for c.recency.Len() >= c.config.MaxSize {
			c.remove(c.recency.Back())
		}
	}
	c.items[key] = c.recency.PushFront(&item{key: key, value: value, expiresAt: expiresAt})
	return nil
}

// Delete removes key. Missing keys are ignored.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cache.ErrLayerUnavailable
	}
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	return nil
}

func (c *MemoryCache) Name() string {
	return c.config.Name
}

// Close stops the sweeper and drops all entries. Later calls fail with
// cache.ErrLayerUnavailable.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.items = nil
	c.recency.Init()
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

// remove must be called with c.mu held.
func (c *MemoryCache) remove(el *list.Element) {
	c.recency.Remove(el)
	delete(c.items, el.Value.(*item).key)
}

func (c *MemoryCache) sweepLoop() {
	defer close(c.done)
	t := time.NewTicker(c.config.CleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.recency.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*item).expiresAt) {
			c.remove(el)
		}
		el = prev
	}
}
