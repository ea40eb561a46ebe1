package cashier

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashAccountRepository defines the interface for cash account persistence
type CashAccountRepository interface {
	// Create persists a new cash account
	Create(ctx context.Context, account *CashAccount) error

	// FindByIDForTenant finds a cash account by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*CashAccount, error)
}

// IncomeRepository defines the interface for manual income persistence
type IncomeRepository interface {
	Create(ctx context.Context, income *ManualIncome) error

	// ListInWindow returns the account's incomes received in [start, end)
	ListInWindow(ctx context.Context, tenantID, accountID uuid.UUID, window shared.Window) ([]ManualIncome, error)

	// SumBefore sums the account's incomes received before t
	SumBefore(ctx context.Context, tenantID, accountID uuid.UUID, t time.Time) (decimal.Decimal, error)
}

// ExpenseRepository defines the interface for expense persistence
type ExpenseRepository interface {
	Create(ctx context.Context, expense *Expense) error

	// ListInWindow returns the expenses paid from the account in [start, end)
	ListInWindow(ctx context.Context, tenantID, accountID uuid.UUID, window shared.Window) ([]Expense, error)

	// SumBefore sums the expenses paid from the account before t
	SumBefore(ctx context.Context, tenantID, accountID uuid.UUID, t time.Time) (decimal.Decimal, error)
}

// CashSaleReader reads the signed CASH portion of sales completed at a location
type CashSaleReader interface {
	// ListCashSales returns the cash portion of each sale completed in [start, end)
	ListCashSales(ctx context.Context, tenantID, locationID uuid.UUID, window shared.Window) ([]CashSale, error)

	// SumCashSalesBefore sums the cash portion of sales completed before t
	SumCashSalesBefore(ctx context.Context, tenantID, locationID uuid.UUID, t time.Time) (decimal.Decimal, error)
}

// ShiftRepository defines the interface for shift persistence
type ShiftRepository interface {
	Create(ctx context.Context, shift *Shift) error

	// Save updates an existing shift
	Save(ctx context.Context, shift *Shift) error

	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Shift, error)

	// FindOpenByAccount returns the open shift of an account, or shared.ErrNotFound
	FindOpenByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*Shift, error)
}
