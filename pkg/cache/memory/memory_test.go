package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fund-transfer/pkg/cache"
)

func newTestCache(maxSize int) *MemoryCache {
	return NewMemoryCache(MemoryCacheConfig{
		Name:            "test",
		MaxSize:         maxSize,
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	})
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	ctx := context.Background()

	if _, err := c.Get(ctx, "account:ACC001"); !cache.IsNotFound(err) {
		t.Fatalf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := c.Set(ctx, "account:ACC001", `{"balance":"1000.00"}`, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := c.Get(ctx, "account:ACC001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != `{"balance":"1000.00"}` {
		t.Errorf("Unexpected value %v", value)
	}

	if err := c.Delete(ctx, "account:ACC001"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "account:ACC001"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss after delete, got %v", err)
	}

	if err := c.Delete(ctx, "account:missing"); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Expected hit before expiry, got %v", err)
	}

	now = now.Add(time.Second)
	if _, err := c.Get(ctx, "k"); !cache.IsNotFound(err) {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expired entry should be dropped on read, have %d", c.Len())
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_ = c.Set(ctx, "short", 1, time.Second)
	_ = c.Set(ctx, "long", 2, time.Hour)

	now = now.Add(time.Minute)
	c.sweep()

	if c.Len() != 1 {
		t.Fatalf("Expected only the long-lived entry, have %d", c.Len())
	}
	if _, err := c.Get(ctx, "long"); err != nil {
		t.Errorf("Expected long-lived entry to survive, got %v", err)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := newTestCache(2)
	defer c.Close()

	ctx := context.Background()
	_ = c.Set(ctx, "a", 1, 0)
	_ = c.Set(ctx, "b", 2, 0)
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	_ = c.Set(ctx, "c", 3, 0)

	if _, err := c.Get(ctx, "b"); !cache.IsNotFound(err) {
		t.Errorf("Expected b to be evicted, got %v", err)
	}
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Errorf("Expected a to survive, got %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}

	// Overwriting refreshes recency without evicting.
	_ = c.Set(ctx, "c", 4, 0)
	if v, _ := c.Get(ctx, "c"); v != 4 {
		t.Errorf("Expected overwritten value 4, got %v", v)
	}
	if c.Len() != 2 {
		t.Errorf("Overwrite must not grow the cache, got %d", c.Len())
	}
}

func TestMemoryCache_InvalidKey(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	if err := c.Set(context.Background(), "", "v", 0); err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	c := newTestCache(0)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	if _, err := c.Get(context.Background(), "k"); !cache.IsUnavailable(err) {
		t.Errorf("Expected ErrLayerUnavailable after close, got %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("account:ACC%03d", j%10)
				_ = c.Set(ctx, key, id, 0)
				_, _ = c.Get(ctx, key)
				if j%7 == 0 {
					_ = c.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}
