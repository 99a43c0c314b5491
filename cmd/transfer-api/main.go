package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"fund-transfer/pkg/accounts"
	"fund-transfer/pkg/api"
	"fund-transfer/pkg/cache"
	"fund-transfer/pkg/cache/memory"
	"fund-transfer/pkg/cache/redis"
	"fund-transfer/pkg/chain"
	"fund-transfer/pkg/config"
	"fund-transfer/pkg/events"
	"fund-transfer/pkg/events/rabbitmq"
	"fund-transfer/pkg/ledger"
	ledgermem "fund-transfer/pkg/ledger/memory"
	"fund-transfer/pkg/ledger/postgres"
	"fund-transfer/pkg/logging"
	promMetrics "fund-transfer/pkg/metrics/prometheus"
	"fund-transfer/pkg/resilience"
	"fund-transfer/pkg/transfer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// closer is run in reverse order on shutdown.
type closer struct {
	name string
	fn   func() error
}

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(); err != nil {
				logger.Warn("close failed", zap.String("component", closers[i].name), zap.Error(err))
			}
		}
	}()

	registry := prometheus.NewRegistry()
	collector := promMetrics.NewPrometheusCollector("fund_transfer")
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	breakers := resilience.NewBreakers(cfg.Breaker.Breakers(), collector)

	store, pinger, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"store", closeStore})

	layers := []cache.CacheLayer{memory.NewMemoryCache(cfg.Cache.Memory())}
	checks := []api.HealthCheck{{Name: "database", Ping: pinger}}
	if cfg.Redis.Enabled {
		rc, err := redis.NewRedisCache(cfg.Redis.Layer())
		if err != nil {
			return err
		}
		layers = append(layers, rc)
		logger.Info("redis cache layer enabled", zap.String("addr", cfg.Redis.Addr))
	}

	cacheChain, err := chain.New(chain.Config{
		Breakers: breakers,
		Metrics:  collector,
		Timeout:  cfg.Breaker.OperationTimeout,
		TTL:      chain.DecayingTTLStrategy{Factor: 0.5},
	}, layers...)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"cache", cacheChain.Close})
	logger.Info("cache chain ready", zap.String("chain", cacheChain.String()))

	accountCache := accounts.NewCache(cacheChain, store, cfg.Cache.TTL)
	checks = append(checks, api.HealthCheck{Name: "cache", Ping: accountCache.Ping})

	dispatcher := events.NewDispatcher()
	dispatcher.Subscribe(events.TransferCompletedName, 0, events.AuditLogger(logger.Named("audit")))
	if cfg.RabbitMQ.Enabled {
		pub, err := rabbitmq.Dial(cfg.RabbitMQ.Publisher(), breakers)
		if err != nil {
			return err
		}
		async := events.NewAsyncPublisher(pub, cfg.RabbitMQ.Async(), collector)
		dispatcher.Subscribe(events.TransferCompletedName, 5, async.Handle)
		// Drains queued events, then closes the broker channel.
		closers = append(closers, closer{"events", async.Close})
		logger.Info("broker publishing enabled", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	service := transfer.NewService(store, transfer.Config{
		MaxAmount: cfg.Transfer.MaxAmount,
		Retry:     cfg.Transfer.Retry(),
		Breakers:  breakers,
		Publisher: dispatcher,
		Cache:     accountCache,
		Metrics:   collector,
	})

	server := api.NewServer(api.Deps{
		Transfers: service,
		Accounts:  accountCache,
		Checks:    checks,
		Breakers:  breakers,
		Metrics:   collector,
		Gatherer:  registry,
		Logger:    logger,
	}, api.ServerConfig{
		Address:      cfg.HTTP.Addr(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	})

	errc := server.Start()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// openStore returns the configured store, its health probe and its closer.
func openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (ledger.Store, func(context.Context) error, func() error, error) {
	if cfg.Store == config.StoreMemory {
		s := ledgermem.New(ledgermem.Config{LockTimeout: cfg.Postgres.LockTimeout})
		for _, a := range demoAccounts() {
			s.AddAccount(a)
		}
		logger.Info("using in-memory store", zap.Int("accounts", len(demoAccounts())))
		return s, s.Ping, func() error { return nil }, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	s, err := postgres.Open(openCtx, cfg.Postgres.Store())
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Seed {
		if err := seedPostgres(openCtx, s, logger); err != nil {
			s.Close()
			return nil, nil, nil, err
		}
	}
	return s, s.Ping, s.Close, nil
}
