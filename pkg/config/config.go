// Package config loads service settings from the environment.
//
// A .env file in the working directory is read first if present. Variables
// already set in the process environment take precedence over the file.
// Unparseable or out-of-range values fall back to their defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"fund-transfer/pkg/cache/memory"
	"fund-transfer/pkg/cache/redis"
	"fund-transfer/pkg/events"
	"fund-transfer/pkg/events/rabbitmq"
	"fund-transfer/pkg/ledger/postgres"
	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/resilience"
	"fund-transfer/pkg/retry"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Store string
	// Seed loads demo accounts at startup. Always on for the memory store.
	Seed     bool
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Transfer TransferConfig
	Breaker  BreakerConfig
	Cache    CacheConfig
	Logging  logging.Config
}

type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return ":" + c.Port
}

type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LockTimeout     time.Duration
}

func (c PostgresConfig) Store() postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LockTimeout:     c.LockTimeout,
	}
}

type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func (c RedisConfig) Layer() redis.RedisCacheConfig {
	rc := redis.DefaultRedisCacheConfig()
	rc.Addr = c.Addr
	rc.Password = c.Password
	rc.DB = c.DB
	rc.KeyPrefix = c.KeyPrefix
	return rc
}

type RabbitMQConfig struct {
	Enabled        bool
	URL            string
	Exchange       string
	RoutingKey     string
	ConfirmTimeout time.Duration
	QueueSize      int
	Workers        int
}

func (c RabbitMQConfig) Publisher() rabbitmq.Config {
	rc := rabbitmq.DefaultConfig()
	rc.URL = c.URL
	rc.Exchange = c.Exchange
	rc.RoutingKey = c.RoutingKey
	rc.ConfirmTimeout = c.ConfirmTimeout
	return rc
}

func (c RabbitMQConfig) Async() events.AsyncConfig {
	return events.AsyncConfig{
		QueueSize: c.QueueSize,
		Workers:   c.Workers,
	}
}

type TransferConfig struct {
	MaxAmount   decimal.Decimal
	MaxAttempts int
	BaseDelay   time.Duration
}

func (c TransferConfig) Retry() retry.Policy {
	p := retry.DefaultPolicy(nil)
	p.MaxAttempts = c.MaxAttempts
	p.BaseDelay = c.BaseDelay
	return p
}

type BreakerConfig struct {
	FailureThreshold int
	CoolDown         time.Duration
	// OperationTimeout bounds each cache layer call.
	OperationTimeout time.Duration
}

func (c BreakerConfig) Breakers() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold: uint32(c.FailureThreshold),
		CoolDown:         c.CoolDown,
		MaxRequests:      1,
	}
}

type CacheConfig struct {
	TTL           time.Duration
	MemoryMaxSize int
}

func (c CacheConfig) Memory() memory.MemoryCacheConfig {
	return memory.MemoryCacheConfig{
		Name:            "memory",
		MaxSize:         c.MemoryMaxSize,
		DefaultTTL:      c.TTL,
		CleanupInterval: time.Minute,
	}
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	pg := postgres.DefaultConfig()
	mq := rabbitmq.DefaultConfig()
	return Config{
		Store: StorePostgres,
		HTTP: HTTPConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            pg.Host,
			Port:            pg.Port,
			User:            pg.User,
			Password:        pg.Password,
			Database:        pg.Database,
			SSLMode:         pg.SSLMode,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: pg.ConnMaxLifetime,
			LockTimeout:     pg.LockTimeout,
		},
		Redis: RedisConfig{
			Enabled:   false,
			Addr:      "localhost:6379",
			KeyPrefix: "fund-transfer:",
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:        false,
			URL:            mq.URL,
			Exchange:       mq.Exchange,
			RoutingKey:     mq.RoutingKey,
			ConfirmTimeout: mq.ConfirmTimeout,
			QueueSize:      1000,
			Workers:        2,
		},
		Transfer: TransferConfig{
			MaxAmount:   decimal.NewFromInt(1000000),
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CoolDown:         60 * time.Second,
			OperationTimeout: time.Second,
		},
		Cache: CacheConfig{
			TTL:           300 * time.Second,
			MemoryMaxSize: 10000,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the optional .env file and then the environment.
func Load() Config {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) Config {
	e := env{lookup: lookup}
	c := Default()

	c.Store = e.oneOf("STORE", c.Store, StorePostgres, StoreMemory)
	c.Seed = e.bool("SEED_ACCOUNTS", c.Seed) || c.Store == StoreMemory

	c.HTTP.Port = e.string("PORT", c.HTTP.Port)
	c.HTTP.ReadTimeout = e.duration("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = e.duration("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.IdleTimeout = e.duration("HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout)
	c.HTTP.ShutdownTimeout = e.duration("HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout)

	c.Postgres.Host = e.string("POSTGRES_HOST", c.Postgres.Host)
	c.Postgres.Port = e.positiveInt("POSTGRES_PORT", c.Postgres.Port)
	c.Postgres.User = e.string("POSTGRES_USER", c.Postgres.User)
	c.Postgres.Password = e.string("POSTGRES_PASSWORD", c.Postgres.Password)
	c.Postgres.Database = e.string("POSTGRES_DB", c.Postgres.Database)
	c.Postgres.SSLMode = e.string("POSTGRES_SSLMODE", c.Postgres.SSLMode)
	c.Postgres.MaxOpenConns = e.positiveInt("POSTGRES_MAX_OPEN_CONNS", c.Postgres.MaxOpenConns)
	c.Postgres.MaxIdleConns = e.positiveInt("POSTGRES_MAX_IDLE_CONNS", c.Postgres.MaxIdleConns)
	c.Postgres.ConnMaxLifetime = e.duration("POSTGRES_CONN_MAX_LIFETIME", c.Postgres.ConnMaxLifetime)
	c.Postgres.LockTimeout = e.duration("POSTGRES_LOCK_TIMEOUT", c.Postgres.LockTimeout)

	c.Redis.Enabled = e.bool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = e.string("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = e.string("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = e.nonNegativeInt("REDIS_DB", c.Redis.DB)
	c.Redis.KeyPrefix = e.string("REDIS_KEY_PREFIX", c.Redis.KeyPrefix)

	c.RabbitMQ.Enabled = e.bool("RABBITMQ_ENABLED", c.RabbitMQ.Enabled)
	c.RabbitMQ.URL = e.string("RABBITMQ_URL", c.RabbitMQ.URL)
	c.RabbitMQ.Exchange = e.string("RABBITMQ_EXCHANGE", c.RabbitMQ.Exchange)
	c.RabbitMQ.RoutingKey = e.string("RABBITMQ_ROUTING_KEY", c.RabbitMQ.RoutingKey)
	c.RabbitMQ.ConfirmTimeout = e.duration("RABBITMQ_CONFIRM_TIMEOUT", c.RabbitMQ.ConfirmTimeout)
	c.RabbitMQ.QueueSize = e.positiveInt("EVENT_QUEUE_SIZE", c.RabbitMQ.QueueSize)
	c.RabbitMQ.Workers = e.positiveInt("EVENT_WORKERS", c.RabbitMQ.Workers)

	c.Transfer.MaxAmount = e.amount("TRANSFER_MAX_AMOUNT", c.Transfer.MaxAmount)
	c.Transfer.MaxAttempts = e.positiveInt("TRANSFER_MAX_ATTEMPTS", c.Transfer.MaxAttempts)
	c.Transfer.BaseDelay = e.duration("TRANSFER_RETRY_BASE_DELAY", c.Transfer.BaseDelay)

	c.Breaker.FailureThreshold = e.positiveInt("BREAKER_FAILURE_THRESHOLD", c.Breaker.FailureThreshold)
	c.Breaker.CoolDown = e.duration("BREAKER_COOL_DOWN", c.Breaker.CoolDown)
	c.Breaker.OperationTimeout = e.duration("BREAKER_OPERATION_TIMEOUT", c.Breaker.OperationTimeout)

	c.Cache.TTL = e.duration("CACHE_TTL", c.Cache.TTL)
	c.Cache.MemoryMaxSize = e.positiveInt("CACHE_MEMORY_MAX_SIZE", c.Cache.MemoryMaxSize)

	c.Logging.Level = e.string("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = e.oneOf("LOG_FORMAT", c.Logging.Format, "json", "console")
	if e.bool("LOG_DEV", false) {
		level := c.Logging.Level
		c.Logging = logging.DevelopmentConfig()
		if _, ok := lookup("LOG_LEVEL"); ok {
			c.Logging.Level = level
		}
	}

	return c
}

type env struct {
	lookup func(string) (string, bool)
}

func (e env) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e env) string(key, def string) string {
	if v, ok := e.get(key); ok {
		return v
	}
	return def
}

func (e env) oneOf(key, def string, allowed ...string) string {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

func (e env) bool(key string, def bool) bool {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (e env) positiveInt(key string, def int) int {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (e env) nonNegativeInt(key string, def int) int {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// duration accepts Go duration strings ("250ms") or whole seconds ("300").
func (e env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return def
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (e env) amount(key string, def decimal.Decimal) decimal.Decimal {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || !d.IsPositive() {
		return def
	}
	return d
}
