package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	c := FromEnv(lookupFrom(nil))

	if c.Store != StorePostgres {
		t.Errorf("Expected postgres store, got %s", c.Store)
	}
	if c.HTTP.Addr() != ":8080" {
		t.Errorf("Expected :8080, got %s", c.HTTP.Addr())
	}
	if c.Cache.TTL != 300*time.Second {
		t.Errorf("Expected 300s cache TTL, got %v", c.Cache.TTL)
	}
	if !c.Transfer.MaxAmount.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("Expected 1000000 ceiling, got %s", c.Transfer.MaxAmount)
	}
	if c.Transfer.MaxAttempts != 3 || c.Transfer.BaseDelay != 100*time.Millisecond {
		t.Errorf("Unexpected retry defaults: %+v", c.Transfer)
	}
	if c.Breaker.FailureThreshold != 5 || c.Breaker.CoolDown != time.Minute {
		t.Errorf("Unexpected breaker defaults: %+v", c.Breaker)
	}
	if c.Seed || c.Redis.Enabled || c.RabbitMQ.Enabled {
		t.Error("Optional backends must default to disabled")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	c := FromEnv(lookupFrom(map[string]string{
		"STORE":                     "Memory",
		"PORT":                      "9090",
		"POSTGRES_HOST":             "db",
		"POSTGRES_PORT":             "6543",
		"POSTGRES_LOCK_TIMEOUT":     "2s",
		"REDIS_ENABLED":             "true",
		"REDIS_ADDR":                "cache:6379",
		"RABBITMQ_ENABLED":          "1",
		"EVENT_WORKERS":             "4",
		"TRANSFER_MAX_AMOUNT":       "5000.50",
		"TRANSFER_MAX_ATTEMPTS":     "5",
		"TRANSFER_RETRY_BASE_DELAY": "50ms",
		"BREAKER_COOL_DOWN":         "30",
		"CACHE_TTL":                 "120",
	}))

	if c.Store != StoreMemory || !c.Seed {
		t.Errorf("Expected seeded memory store, got %s seed=%v", c.Store, c.Seed)
	}
	if c.HTTP.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", c.HTTP.Port)
	}
	pg := c.Postgres.Store()
	if pg.Host != "db" || pg.Port != 6543 || pg.LockTimeout != 2*time.Second {
		t.Errorf("Unexpected postgres config: %+v", pg)
	}
	if !c.Redis.Enabled || c.Redis.Layer().Addr != "cache:6379" {
		t.Errorf("Unexpected redis config: %+v", c.Redis)
	}
	if !c.RabbitMQ.Enabled || c.RabbitMQ.Async().Workers != 4 {
		t.Errorf("Unexpected rabbitmq config: %+v", c.RabbitMQ)
	}
	if c.Transfer.MaxAmount.String() != "5000.5" {
		t.Errorf("Expected 5000.5 ceiling, got %s", c.Transfer.MaxAmount)
	}
	p := c.Transfer.Retry()
	if p.MaxAttempts != 5 || p.BaseDelay != 50*time.Millisecond {
		t.Errorf("Unexpected retry policy: %+v", p)
	}
	if c.Breaker.Breakers().CoolDown != 30*time.Second {
		t.Errorf("Expected 30s cool-down, got %v", c.Breaker.CoolDown)
	}
	if c.Cache.Memory().DefaultTTL != 2*time.Minute {
		t.Errorf("Expected 2m TTL, got %v", c.Cache.TTL)
	}
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	c := FromEnv(lookupFrom(map[string]string{
		"STORE":                     "sqlite",
		"POSTGRES_PORT":             "not-a-port",
		"REDIS_ENABLED":             "maybe",
		"REDIS_DB":                  "-1",
		"TRANSFER_MAX_AMOUNT":       "-10",
		"TRANSFER_MAX_ATTEMPTS":     "0",
		"TRANSFER_RETRY_BASE_DELAY": "soon",
		"CACHE_TTL":                 "-5",
		"LOG_FORMAT":                "xml",
		"PORT":                      "   ",
	}))
	d := Default()

	if c.Store != d.Store {
		t.Errorf("Expected default store, got %s", c.Store)
	}
	if c.Postgres.Port != d.Postgres.Port {
		t.Errorf("Expected default port, got %d", c.Postgres.Port)
	}
	if c.Redis.Enabled || c.Redis.DB != 0 {
		t.Errorf("Expected default redis settings, got %+v", c.Redis)
	}
	if !c.Transfer.MaxAmount.Equal(d.Transfer.MaxAmount) {
		t.Errorf("Expected default ceiling, got %s", c.Transfer.MaxAmount)
	}
	if c.Transfer.MaxAttempts != 3 || c.Transfer.BaseDelay != 100*time.Millisecond {
		t.Errorf("Expected default retry settings, got %+v", c.Transfer)
	}
	if c.Cache.TTL != d.Cache.TTL {
		t.Errorf("Expected default TTL, got %v", c.Cache.TTL)
	}
	if c.Logging.Format != "json" {
		t.Errorf("Expected json log format, got %s", c.Logging.Format)
	}
	if c.HTTP.Port != "8080" {
		t.Errorf("Blank values must fall back, got %q", c.HTTP.Port)
	}
}

func TestFromEnv_DevelopmentLogging(t *testing.T) {
	c := FromEnv(lookupFrom(map[string]string{"LOG_DEV": "true"}))
	if !c.Logging.Development || c.Logging.Level != "debug" {
		t.Errorf("Expected development logging, got %+v", c.Logging)
	}

	c = FromEnv(lookupFrom(map[string]string{"LOG_DEV": "true", "LOG_LEVEL": "warn"}))
	if !c.Logging.Development || c.Logging.Level != "warn" {
		t.Errorf("Expected LOG_LEVEL to override dev level, got %+v", c.Logging)
	}
}
