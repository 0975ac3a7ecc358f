// Package app assembles the stock ledger components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"stockledger/internal/cache"
	"stockledger/internal/config"
	"stockledger/internal/domain"
	"stockledger/internal/event"
	"stockledger/internal/event/gcppubsub"
	"stockledger/internal/ledger"
	"stockledger/internal/lock"
	"stockledger/internal/ordersource"
	"stockledger/internal/port"
	"stockledger/internal/reconcile"
	"stockledger/internal/repository/memory"
	"stockledger/internal/repository/postgres"
	"stockledger/internal/retry"
	"stockledger/internal/service"
)

// Stores groups the record store repositories.
type Stores struct {
	Purchases    port.PurchaseRepository
	Sales        port.SaleRepository
	Consumptions port.ConsumptionRepository
	Balances     port.BalanceStockRepository
	SyncRuns     port.SyncRunRepository
	Pinger       port.Pinger
}

// App holds the wired services and the resources they own.
type App struct {
	Config  *config.Config
	Logger  logrus.FieldLogger
	Stores  Stores
	Bus     *event.Bus
	Ledger  service.LedgerService
	Sync    service.SyncService
	Engine  *reconcile.Engine
	closers []func() error
}

// New connects the configured backends and wires every service.
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Bus: event.NewBus(logger)}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	db, err := a.openStores(cfg)
	if err != nil {
		return nil, err
	}
	source, err := a.orderSource(cfg, db)
	if err != nil {
		return nil, err
	}

	var locker port.Locker = lock.NewLocal()
	var balanceCache port.BalanceCache = cache.NewMemory()
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		locker = lock.NewRedis(client, "stockledger:lock:", cfg.Redis.LockTTL, logger)
		balanceCache = cache.NewRedisBalanceCache(client, cfg.Redis.CacheTTL)
		logger.WithField("addr", cfg.Redis.Addr).Info("using redis for locks and balance cache")
	}
	a.Bus.Subscribe(cache.InvalidateOn(balanceCache, logger),
		domain.EventLedgerChanged, domain.EventBalanceStockUpdated)

	if err := a.forwardEvents(ctx, cfg); err != nil {
		return nil, err
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BaseDelay:   cfg.Sync.BaseDelay,
		MaxDelay:    cfg.Sync.MaxDelay,
		Jitter:      true,
	}
	gateway := ledger.NewGateway(a.Stores.Purchases, a.Stores.Sales, a.Stores.Consumptions, ledger.Options{
		ChunkSize:   cfg.Sync.ChunkSize,
		Parallelism: cfg.Sync.Parallelism,
		CallTimeout: cfg.Sync.CallTimeout,
		Retry:       policy,
	}, logger)

	a.Engine = reconcile.NewEngine(a.Stores.Purchases, a.Stores.Sales, a.Stores.Consumptions, a.Stores.Balances,
		locker, a.Bus, logger)
	a.Ledger = service.NewLedgerService(a.Stores.Purchases, a.Stores.Sales, a.Stores.Consumptions, a.Stores.Balances,
		gateway, a.Engine, balanceCache, a.Bus, logger)
	a.Sync = service.NewSyncService(source, a.Stores.Purchases, gateway, a.Engine, a.Stores.SyncRuns, locker, a.Bus,
		service.SyncOptions{
			WindowDays:        cfg.Sync.WindowDays,
			Location:          cfg.Sync.Location(),
			LockWait:          cfg.Sync.LockWait,
			FetchRetry:        policy,
			CallTimeout:       cfg.Sync.CallTimeout,
			DefaultGST:        cfg.Sync.DefaultGST,
			FallbackCostRatio: cfg.Sync.FallbackCostRatio,
		}, logger)

	ok = true
	return a, nil
}

func (a *App) openStores(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Store.Provider {
	case "memory":
		s := memory.New()
		a.Stores = Stores{
			Purchases:    s.Purchases(),
			Sales:        s.Sales(),
			Consumptions: s.Consumptions(),
			Balances:     s.BalanceStock(),
			SyncRuns:     s.SyncRuns(),
			Pinger:       s,
		}
		a.Logger.Warn("using in-memory record store; data is lost on exit")
		return nil, nil
	case "postgres", "":
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Stores = Stores{
			Purchases:    postgres.NewPurchaseRepo(db),
			Sales:        postgres.NewSaleRepo(db),
			Consumptions: postgres.NewConsumptionRepo(db),
			Balances:     postgres.NewBalanceStockRepo(db),
			SyncRuns:     postgres.NewSyncRunRepo(db),
			Pinger:       db,
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

func (a *App) orderSource(cfg *config.Config, db *sqlx.DB) (port.OrderSource, error) {
	switch cfg.OrderSource.Provider {
	case "postgres":
		if db == nil {
			return nil, errors.New("order_source.provider=postgres requires store.provider=postgres")
		}
		return postgres.NewPOSOrderRepo(db, cfg.Sync.Location()), nil
	case "http", "":
		return ordersource.NewHTTPClient(cfg.OrderSource, a.Logger)
	default:
		return nil, fmt.Errorf("unknown order source provider %q", cfg.OrderSource.Provider)
	}
}

func (a *App) forwardEvents(ctx context.Context, cfg *config.Config) error {
	switch cfg.Events.Provider {
	case "gcp_pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return fmt.Errorf("creating pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		topic, err := gcppubsub.OpenTopic(ctx, client, cfg.Events.Topic)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { topic.Stop(); return nil })
		a.Bus.Subscribe(gcppubsub.NewForwarder(topic, a.Logger).Handle)
		a.Logger.WithField("topic", cfg.Events.Topic).Info("forwarding ledger events to pubsub")
		return nil
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unknown events provider %q", cfg.Events.Provider)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
