package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/cashier"
	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCashAccountRepository implements CashAccountRepository using GORM
type GormCashAccountRepository struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormCashAccountRepository creates a new GormCashAccountRepository
func NewGormCashAccountRepository(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormCashAccountRepository {
	return &GormCashAccountRepository{db: db, moneyCtx: moneyCtx}
}

// Create persists a new cash account
func (r *GormCashAccountRepository) Create(ctx context.Context, account *cashier.CashAccount) error {
	return r.db.WithContext(ctx).Create(models.CashAccountModelFromDomain(account)).Error
}

// FindByIDForTenant finds a cash account by ID within a tenant
func (r *GormCashAccountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*cashier.CashAccount, error) {
	var model models.CashAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(r.moneyCtx), nil
}

// GormIncomeRepository implements IncomeRepository using GORM
type GormIncomeRepository struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormIncomeRepository creates a new GormIncomeRepository
func NewGormIncomeRepository(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormIncomeRepository {
	return &GormIncomeRepository{db: db, moneyCtx: moneyCtx}
}

// Create persists a manual income
func (r *GormIncomeRepository) Create(ctx context.Context, income *cashier.ManualIncome) error {
	return r.db.WithContext(ctx).Create(models.CashIncomeModelFromDomain(income)).Error
}

// ListInWindow returns the account's incomes received in [start, end)
func (r *GormIncomeRepository) ListInWindow(ctx context.Context, tenantID, accountID uuid.UUID, window shared.Window) ([]cashier.ManualIncome, error) {
	var rows []models.CashIncomeModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND received_at >= ? AND received_at < ?", tenantID, accountID, models.UTC(window.Start), models.UTC(window.End)).
		Order("received_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]cashier.ManualIncome, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain(r.moneyCtx))
	}
	return out, nil
}

// SumBefore sums the account's incomes received before t
func (r *GormIncomeRepository) SumBefore(ctx context.Context, tenantID, accountID uuid.UUID, t time.Time) (decimal.Decimal, error) {
	return sumColumn(r.db.WithContext(ctx).Model(&models.CashIncomeModel{}).
		Where("tenant_id = ? AND account_id = ? AND received_at < ?", tenantID, accountID, models.UTC(t)), "amount")
}

// GormExpenseRepository implements ExpenseRepository using GORM
type GormExpenseRepository struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormExpenseRepository creates a new GormExpenseRepository
func NewGormExpenseRepository(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormExpenseRepository {
	return &GormExpenseRepository{db: db, moneyCtx: moneyCtx}
}

// Create persists an expense
func (r *GormExpenseRepository) Create(ctx context.Context, expense *cashier.Expense) error {
	return r.db.WithContext(ctx).Create(models.CashExpenseModelFromDomain(expense)).Error
}

// ListInWindow returns the expenses paid from the account in [start, end)
func (r *GormExpenseRepository) ListInWindow(ctx context.Context, tenantID, accountID uuid.UUID, window shared.Window) ([]cashier.Expense, error) {
	var rows []models.CashExpenseModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND paid_at >= ? AND paid_at < ?", tenantID, accountID, models.UTC(window.Start), models.UTC(window.End)).
		Order("paid_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]cashier.Expense, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain(r.moneyCtx))
	}
	return out, nil
}

// SumBefore sums the expenses paid from the account before t
func (r *GormExpenseRepository) SumBefore(ctx context.Context, tenantID, accountID uuid.UUID, t time.Time) (decimal.Decimal, error) {
	return sumColumn(r.db.WithContext(ctx).Model(&models.CashExpenseModel{}).
		Where("tenant_id = ? AND account_id = ? AND paid_at < ?", tenantID, accountID, models.UTC(t)), "amount")
}

// sumColumn totals column over query. SQLite stores NUMERIC values as REAL, so
// there the rows are fetched and added as decimals instead of by SUM.
func sumColumn(query *gorm.DB, column string) (decimal.Decimal, error) {
	if query.Name() == "sqlite" {
		var rows []struct{ Value decimal.Decimal }
		if err := query.Select(column + " AS value").Scan(&rows).Error; err != nil {
			return decimal.Zero, err
		}
		total := decimal.Zero
		for _, row := range rows {
			total = total.Add(row.Value)
		}
		return total, nil
	}

	var row struct{ Total decimal.Decimal }
	if err := query.Select("COALESCE(SUM(" + column + "), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

// signedCash is the cash portion of a payment row, negated on credit notes
const signedCash = "CASE WHEN s.total < 0 THEN -p.amount ELSE p.amount END"

// GormCashSaleReader implements CashSaleReader over the sales tables
type GormCashSaleReader struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormCashSaleReader creates a new GormCashSaleReader
func NewGormCashSaleReader(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormCashSaleReader {
	return &GormCashSaleReader{db: db, moneyCtx: moneyCtx}
}

func (r *GormCashSaleReader) cashPayments(ctx context.Context, tenantID, locationID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("sales AS s").
		Joins("JOIN sale_payments AS p ON p.sale_id = s.id").
		Where("s.tenant_id = ? AND s.location_id = ? AND p.method = ?", tenantID, locationID, string(sale.PaymentMethodCash))
}

// ListCashSales returns the signed cash portion of each sale completed in [start, end).
// Payment rows are folded per sale here so amounts are added as decimals on every driver.
func (r *GormCashSaleReader) ListCashSales(ctx context.Context, tenantID, locationID uuid.UUID, window shared.Window) ([]cashier.CashSale, error) {
	var rows []struct {
		SaleID      uuid.UUID
		Kind        string
		CompletedAt time.Time
		Amount      decimal.Decimal
	}
	if err := r.cashPayments(ctx, tenantID, locationID).
		Select("s.id AS sale_id, s.kind AS kind, s.completed_at AS completed_at, "+signedCash+" AS amount").
		Where("s.completed_at >= ? AND s.completed_at < ?", models.UTC(window.Start), models.UTC(window.End)).
		Order("s.completed_at ASC, s.id ASC, p.position ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]cashier.CashSale, 0, len(rows))
	for _, row := range rows {
		amount := r.moneyCtx.FromDecimal(row.Amount)
		if n := len(out); n > 0 && out[n-1].SaleID == row.SaleID {
			out[n-1].Amount = out[n-1].Amount.Add(amount)
			continue
		}
		out = append(out, cashier.CashSale{
			SaleID:      row.SaleID,
			Amount:      amount,
			CompletedAt: row.CompletedAt,
			Detail:      row.Kind,
		})
	}
	return out, nil
}

// SumCashSalesBefore sums the signed cash portion of sales completed before t
func (r *GormCashSaleReader) SumCashSalesBefore(ctx context.Context, tenantID, locationID uuid.UUID, t time.Time) (decimal.Decimal, error) {
	return sumColumn(r.cashPayments(ctx, tenantID, locationID).Where("s.completed_at < ?", models.UTC(t)), signedCash)
}

// GormShiftRepository implements ShiftRepository using GORM
type GormShiftRepository struct {
	db *gorm.DB
}

// NewGormShiftRepository creates a new GormShiftRepository
func NewGormShiftRepository(db *gorm.DB) *GormShiftRepository {
	return &GormShiftRepository{db: db}
}

// Create persists a new shift
func (r *GormShiftRepository) Create(ctx context.Context, shift *cashier.Shift) error {
	return r.db.WithContext(ctx).Create(models.ShiftModelFromDomain(shift)).Error
}

// Save updates the end time of a shift
func (r *GormShiftRepository) Save(ctx context.Context, shift *cashier.Shift) error {
	result := r.db.WithContext(ctx).
		Model(&models.ShiftModel{}).
		Where("tenant_id = ? AND id = ?", shift.TenantID, shift.ID).
		Updates(map[string]any{
			"end_time":   models.UTCPtr(shift.EndTime),
			"updated_at": models.UTC(shift.UpdatedAt),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByIDForTenant finds a shift by ID within a tenant
func (r *GormShiftRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*cashier.Shift, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindOpenByAccount returns the open shift of an account
func (r *GormShiftRepository) FindOpenByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*cashier.Shift, error) {
	return r.first(r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND end_time IS NULL", tenantID, accountID).
		Order("start_time DESC"))
}

func (r *GormShiftRepository) first(query *gorm.DB) (*cashier.Shift, error) {
	var model models.ShiftModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var (
	_ cashier.CashAccountRepository = (*GormCashAccountRepository)(nil)
	_ cashier.IncomeRepository      = (*GormIncomeRepository)(nil)
	_ cashier.ExpenseRepository     = (*GormExpenseRepository)(nil)
	_ cashier.CashSaleReader        = (*GormCashSaleReader)(nil)
	_ cashier.ShiftRepository       = (*GormShiftRepository)(nil)
)
