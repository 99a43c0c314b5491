package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"fund-transfer/pkg/cache"
	"fund-transfer/pkg/cache/mock"
	"fund-transfer/pkg/metrics"
	metricsmem "fund-transfer/pkg/metrics/memory"
)

func TestResilientLayer_CacheMissDoesNotTripCircuit(t *testing.T) {
	layer := mock.NewMockLayer("memory")
	collector := metricsmem.NewMemoryCollector()
	b := NewBreakers(BreakerConfig{FailureThreshold: 3, CoolDown: time.Minute}, collector)
	rl := NewResilientLayer(layer, b, DefaultResilientConfig(), collector)

	for i := 0; i < 10; i++ {
		if _, err := rl.Get(context.Background(), "account:ACC001"); !cache.IsNotFound(err) {
			t.Fatalf("Expected ErrKeyNotFound, got %v", err)
		}
	}

	if rl.State() != metrics.CircuitClosed {
		t.Errorf("Cache misses must not open the circuit, state %s", rl.State())
	}
	if layer.GetCalls() != 10 {
		t.Errorf("Expected 10 calls to reach the layer, got %d", layer.GetCalls())
	}
	if lm := collector.Layer("memory"); lm == nil || lm.Misses != 10 {
		t.Errorf("Expected 10 misses recorded, got %+v", lm)
	}
}

func TestResilientLayer_RealErrorsStillTripCircuit(t *testing.T) {
	layer := mock.NewMockLayer("redis")
	layer.GetFunc = func(ctx context.Context, key string) (interface{}, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	b := NewBreakers(BreakerConfig{FailureThreshold: 3, CoolDown: time.Minute}, nil)
	rl := NewResilientLayer(layer, b, DefaultResilientConfig(), nil)

	for i := 0; i < 3; i++ {
		if _, err := rl.Get(context.Background(), "k"); err == nil || IsCircuitOpen(err) {
			t.Fatalf("call %d: expected layer error, got %v", i+1, err)
		}
	}

	_, err := rl.Get(context.Background(), "k")
	if !IsCircuitOpen(err) {
		t.Fatalf("Expected circuit open, got %v", err)
	}
	if layer.GetCalls() != 3 {
		t.Errorf("Open circuit should short-circuit calls, layer saw %d", layer.GetCalls())
	}
}

func TestResilientLayer_Timeout(t *testing.T) {
	layer := mock.NewMockLayer("redis")
	layer.SetFunc = func(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}
	rl := NewResilientLayer(layer, NewBreakers(DefaultBreakerConfig(), nil), ResilientConfig{Timeout: 20 * time.Millisecond}, nil)

	err := rl.Set(context.Background(), "k", "v", time.Minute)
	if !cache.IsTimeout(err) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestResilientLayer_SetDeletePassThrough(t *testing.T) {
	layer := mock.NewMockLayer("memory")
	collector := metricsmem.NewMemoryCollector()
	rl := NewResilientLayer(layer, NewBreakers(DefaultBreakerConfig(), nil), DefaultResilientConfig(), collector)

	ctx := context.Background()
	if err := rl.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := rl.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if layer.SetCalls() != 1 || layer.DeleteCalls() != 1 {
		t.Errorf("Expected one Set and one Delete, got %d and %d", layer.SetCalls(), layer.DeleteCalls())
	}
	if lm := collector.Layer("memory"); lm.Sets != 1 || lm.Deletes != 1 {
		t.Errorf("Unexpected layer metrics %+v", lm)
	}
	if rl.Name() != "memory" || rl.Unwrap() != layer {
		t.Error("ResilientLayer should expose the wrapped layer")
	}
}

func TestResilientLayer_TranslatesLayerErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"layer timeout", cache.ErrTimeout, cache.IsTimeout},
		{"closed layer", cache.ErrLayerUnavailable, cache.IsUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer := mock.NewMockLayer("redis")
			layer.DeleteFunc = func(ctx context.Context, key string) error {
				return tt.err
			}
			rl := NewResilientLayer(layer, NewBreakers(DefaultBreakerConfig(), nil), DefaultResilientConfig(), nil)

			err := rl.Delete(context.Background(), "k")
			if !tt.check(err) {
				t.Errorf("Expected %v to survive translation, got %v", tt.err, err)
			}
			var le *cache.LayerError
			if !errors.As(err, &le) || le.Layer != "redis" || le.Op != "delete" {
				t.Errorf("Expected *cache.LayerError for redis delete, got %#v", err)
			}
		})
	}
}
