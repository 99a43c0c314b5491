package cache

import (
	"context"
	"time"
)

// CacheLayer is one tier of the account cache. Implementations must report a
// miss with an error matching ErrKeyNotFound.
type CacheLayer interface {
	// Get retrieves a value by key.
	Get(ctx context.Context, key string) (interface{}, error)

	// Set stores a value with the given time-to-live.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the layer in logs, metrics and breaker names.
	Name() string

	Close() error
}

// Pinger is implemented by layers backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}
