package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	appcashier "github.com/erp/ledger/internal/application/cashier"
	appinv "github.com/erp/ledger/internal/application/inventory"
	appsale "github.com/erp/ledger/internal/application/sale"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the wired ledger services for one ledgerctl invocation
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	moneyCtx valueobject.MoneyContext

	db        *persistence.Database
	telemetry *telemetry.Telemetry
	closers   []func(context.Context) error
	stock    *appinv.StockLedgerService
	checkout *appsale.CheckoutService
	accounts *appcashier.CashAccountService
	closure  *appcashier.ShiftClosureService
}

// newApp connects to the database and wires repositories, scopes and
// services the same way for every subcommand
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	policy, err := cfg.Ledger.Policy()
	if err != nil {
		return nil, err
	}
	moneyCtx := cfg.Ledger.MoneyContext()
	a := &app{cfg: cfg, log: log, moneyCtx: moneyCtx}

	a.telemetry, err = telemetry.Setup(ctx, telemetrySettings(cfg), log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.telemetry.Shutdown)
	log = a.telemetry.Logger(log)
	a.log = log
	metrics := a.telemetry.LedgerMetrics()

	a.db, err = persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: cfg.Log.Level,
		Tracing: telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		},
	})
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.db.Close() })
	if cfg.Database.Driver == "sqlite" {
		if err := a.db.AutoMigrate(); err != nil {
			_ = a.close(ctx)
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	db := a.db.DB
	levelRepo := persistence.NewGormStockLevelRepository(db)
	movementRepo := persistence.NewGormMovementRepository(db)

	a.stock = appinv.NewStockLedgerService(levelRepo, movementRepo,
		persistence.NewGormTransactionScope(db, moneyCtx), policy, log)
	a.stock.SetLedgerMetrics(metrics)

	a.checkout = appsale.NewCheckoutService(persistence.NewGormSaleRepository(db, moneyCtx),
		persistence.NewGormCheckoutScope(db, moneyCtx), policy, moneyCtx, log)
	a.checkout.SetLedgerMetrics(metrics)
	if cfg.Idempotency.Enabled {
		store, err := cache.NewIdempotencyStore(ctx, cache.StoreOptions{
			Backend: cfg.Idempotency.Backend,
			Redis: cache.RedisConfig{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			KeyPrefix:           cfg.App.Name + ":checkout:",
			AllowMemoryFallback: cfg.Idempotency.AllowFallback,
		}, log)
		if err != nil {
			_ = a.close(ctx)
			return nil, err
		}
		if c, ok := store.(io.Closer); ok {
			a.closers = append(a.closers, func(context.Context) error { return c.Close() })
		}
		a.checkout.SetIdempotencyStore(store, cfg.Idempotency.TTL)
	}

	a.accounts = appcashier.NewCashAccountService(
		persistence.NewGormCashAccountRepository(db, moneyCtx),
		persistence.NewGormIncomeRepository(db, moneyCtx),
		persistence.NewGormExpenseRepository(db, moneyCtx),
		persistence.NewGormShiftRepository(db),
		moneyCtx, log)

	a.closure = appcashier.NewShiftClosureService(persistence.NewGormSnapshotScope(db, moneyCtx), moneyCtx, log)
	a.closure.SetLedgerMetrics(metrics)

	return a, nil
}

func telemetrySettings(cfg *config.Config) telemetry.Settings {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	return telemetry.Settings{
		ServiceName:       cfg.Telemetry.ServiceName,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		Traces:            cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Metrics:           cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		Logs:              cfg.Telemetry.LogsEnabled,
		LogLevel:          level,
	}
}

// close releases resources in reverse order of acquisition
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
