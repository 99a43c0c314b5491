package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fund-transfer/pkg/cache"

	"github.com/redis/rueidis"
)

// RedisCache is the shared account cache tier. String values are stored as
// is; anything else is JSON encoded. Get always returns a string.
type RedisCache struct {
	client rueidis.Client
	name   string
	prefix string
}

type RedisCacheConfig struct {
	Name string
	// Addr is the server address for single node mode, e.g. "localhost:6379".
	Addr string
	// ClusterAddrs enables cluster mode when set.
	ClusterAddrs []string
	// SentinelAddrs enables sentinel mode when set.
	SentinelAddrs     []string
	SentinelMasterSet string
	Username          string
	Password          string
	// DB is ignored in cluster mode.
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultRedisCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		Name:         "redis",
		Addr:         "localhost:6379",
		KeyPrefix:    "fund-transfer:",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func (c RedisCacheConfig) initAddress() ([]string, error) {
	switch {
	case len(c.ClusterAddrs) > 0:
		return c.ClusterAddrs, nil
	case len(c.SentinelAddrs) > 0:
		return c.SentinelAddrs, nil
	case c.Addr != "":
		return []string{c.Addr}, nil
	default:
		return nil, fmt.Errorf("redis: no addresses configured (set Addr, ClusterAddrs, or SentinelAddrs)")
	}
}

// NewRedisCache connects and pings the server.
func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}

	addrs, err := config.initAddress()
	if err != nil {
		return nil, err
	}

	opts := rueidis.ClientOption{
		InitAddress:      addrs,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
		DisableCache:     true,
	}
	if len(config.SentinelAddrs) > 0 {
		opts.Sentinel = rueidis.SentinelOption{MasterSet: config.SentinelMasterSet}
	}

	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	r := &RedisCache{client: client, name: config.Name, prefix: config.KeyPrefix}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return r, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(r.prefix+key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, cache.ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	s, err := resp.ToString()
	if err != nil {
		return nil, fmt.Errorf("redis get: failed to read response: %w", err)
	}
	return s, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	set := r.client.B().Set().Key(r.prefix + key).Value(data)
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Px(ttl).Build()
	} else {
		cmd = set.Build()
	}

	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.prefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (r *RedisCache) Name() string {
	return r.name
}

func (r *RedisCache) Close() error {
	r.client.Close()
	return nil
}

// Ping implements cache.Pinger.
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func encode(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cache.ErrInvalidValue, err)
	}
	return string(data), nil
}
