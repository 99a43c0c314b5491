// Package mock provides a scriptable cache layer for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"fund-transfer/pkg/cache"
)

// Operation names recorded by MockLayer.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpClose  = "close"
)

// Call is one recorded invocation.
type Call struct {
	Op  string
	Key string
}

// MockLayer is a CacheLayer whose behavior is set per test through the Func
// hooks. Without hooks, Get misses and Set/Delete succeed.
type MockLayer struct {
	GetFunc    func(ctx context.Context, key string) (interface{}, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	CloseFunc  func() error

	name string

	mu    sync.Mutex
	calls []Call
}

func NewMockLayer(name string) *MockLayer {
	return &MockLayer{name: name}
}

func (m *MockLayer) record(op, key string) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Op: op, Key: key})
	m.mu.Unlock()
}

func (m *MockLayer) Get(ctx context.Context, key string) (interface{}, error) {
	m.record(OpGet, key)
	if m.GetFunc == nil {
		return nil, cache.ErrKeyNotFound
	}
	return m.GetFunc(ctx, key)
}

func (m *MockLayer) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.record(OpSet, key)
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, ttl)
}

func (m *MockLayer) Delete(ctx context.Context, key string) error {
	m.record(OpDelete, key)
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, key)
}

func (m *MockLayer) Name() string { return m.name }

func (m *MockLayer) Close() error {
	m.record(OpClose, "")
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

// Keys returns the keys passed to op, in call order.
func (m *MockLayer) Keys(op string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, c := range m.calls {
		if c.Op == op {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

func (m *MockLayer) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (m *MockLayer) GetCalls() int    { return m.count(OpGet) }
func (m *MockLayer) SetCalls() int    { return m.count(OpSet) }
func (m *MockLayer) DeleteCalls() int { return m.count(OpDelete) }
func (m *MockLayer) CloseCalls() int  { return m.count(OpClose) }
