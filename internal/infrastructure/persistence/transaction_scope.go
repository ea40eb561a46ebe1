package persistence

import (
	"context"
	"database/sql"

	appcashier "github.com/erp/ledger/internal/application/cashier"
	appinv "github.com/erp/ledger/internal/application/inventory"
	appsale "github.com/erp/ledger/internal/application/sale"
	"github.com/erp/ledger/internal/domain/cashier"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// GormTransactionScope implements the stock ledger TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormTransactionScope {
	return &GormTransactionScope{db: db, moneyCtx: moneyCtx}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, moneyCtx: s.moneyCtx})
	})
}

// GormCheckoutScope implements the checkout TransactionScope: stock movements
// and the sale record commit together.
type GormCheckoutScope struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormCheckoutScope creates a new GormCheckoutScope.
func NewGormCheckoutScope(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormCheckoutScope {
	return &GormCheckoutScope{db: db, moneyCtx: moneyCtx}
}

// Execute runs the given function within a database transaction.
func (s *GormCheckoutScope) Execute(ctx context.Context, fn func(repos appsale.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, moneyCtx: s.moneyCtx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

func (r *gormTransactionalRepositories) StockLevelRepo() inventory.StockLevelRepository {
	return NewGormStockLevelRepository(r.tx)
}

func (r *gormTransactionalRepositories) MovementRepo() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) SaleRepo() sale.SaleRepository {
	return NewGormSaleRepository(r.tx, r.moneyCtx)
}

// GormSnapshotScope runs closure reads in one read-only transaction. On
// PostgreSQL it is REPEATABLE READ, so every query sees the same snapshot.
// SQLite serializes transactions and takes no options.
type GormSnapshotScope struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormSnapshotScope creates a new GormSnapshotScope.
func NewGormSnapshotScope(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormSnapshotScope {
	return &GormSnapshotScope{db: db, moneyCtx: moneyCtx}
}

// Execute runs fn in the snapshot transaction. It is always rolled back
// when fn returns without error as well, since nothing is written.
func (s *GormSnapshotScope) Execute(ctx context.Context, fn func(repos appcashier.ClosureRepositories) error) error {
	var opts *sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx := s.db.WithContext(ctx).Begin(opts)
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()
	return fn(&gormClosureRepositories{tx: tx, moneyCtx: s.moneyCtx})
}

type gormClosureRepositories struct {
	tx       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

func (r *gormClosureRepositories) AccountRepo() cashier.CashAccountRepository {
	return NewGormCashAccountRepository(r.tx, r.moneyCtx)
}

func (r *gormClosureRepositories) IncomeRepo() cashier.IncomeRepository {
	return NewGormIncomeRepository(r.tx, r.moneyCtx)
}

func (r *gormClosureRepositories) ExpenseRepo() cashier.ExpenseRepository {
	return NewGormExpenseRepository(r.tx, r.moneyCtx)
}

func (r *gormClosureRepositories) CashSaleReader() cashier.CashSaleReader {
	return NewGormCashSaleReader(r.tx, r.moneyCtx)
}

func (r *gormClosureRepositories) ShiftRepo() cashier.ShiftRepository {
	return NewGormShiftRepository(r.tx)
}

var (
	_ appinv.TransactionScope           = (*GormTransactionScope)(nil)
	_ appsale.TransactionScope          = (*GormCheckoutScope)(nil)
	_ appcashier.SnapshotScope          = (*GormSnapshotScope)(nil)
	_ appinv.TransactionalRepositories  = (*gormTransactionalRepositories)(nil)
	_ appsale.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
	_ appcashier.ClosureRepositories    = (*gormClosureRepositories)(nil)
)
