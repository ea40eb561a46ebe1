package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/cashier"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashAccountModel is the persistence model for a cash account.
type CashAccountModel struct {
	TenantModel
	LocationID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name           string          `gorm:"type:varchar(100);not null"`
	InitialBalance decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
}

// TableName returns the table name for GORM
func (CashAccountModel) TableName() string {
	return "cash_accounts"
}

// ToDomain converts the persistence model to a domain CashAccount.
func (m *CashAccountModel) ToDomain(ctx valueobject.MoneyContext) *cashier.CashAccount {
	return &cashier.CashAccount{
		TenantEntity:   m.ToTenantEntity(),
		LocationID:     m.LocationID,
		Name:           m.Name,
		InitialBalance: ctx.FromDecimal(m.InitialBalance),
	}
}

// CashAccountModelFromDomain creates a new persistence model from a domain CashAccount.
func CashAccountModelFromDomain(a *cashier.CashAccount) *CashAccountModel {
	m := &CashAccountModel{
		LocationID:     a.LocationID,
		Name:           a.Name,
		InitialBalance: a.InitialBalance.Amount(),
	}
	m.FromDomainTenantEntity(a.TenantEntity)
	return m
}

// CashIncomeModel is the persistence model for a manual income.
type CashIncomeModel struct {
	TenantModel
	AccountID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_cash_incomes_account,priority:1"`
	Amount      decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Description string          `gorm:"type:varchar(255)"`
	ReceivedAt  time.Time       `gorm:"not null;index:idx_cash_incomes_account,priority:2"`
	UserID      uuid.UUID       `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (CashIncomeModel) TableName() string {
	return "cash_incomes"
}

// ToDomain converts the persistence model to a domain ManualIncome.
func (m *CashIncomeModel) ToDomain(ctx valueobject.MoneyContext) *cashier.ManualIncome {
	return &cashier.ManualIncome{
		TenantEntity: m.ToTenantEntity(),
		AccountID:    m.AccountID,
		Amount:       ctx.FromDecimal(m.Amount),
		Description:  m.Description,
		ReceivedAt:   m.ReceivedAt,
		UserID:       m.UserID,
	}
}

// CashIncomeModelFromDomain creates a new persistence model from a domain ManualIncome.
func CashIncomeModelFromDomain(in *cashier.ManualIncome) *CashIncomeModel {
	m := &CashIncomeModel{
		AccountID:   in.AccountID,
		Amount:      in.Amount.Amount(),
		Description: in.Description,
		ReceivedAt:  UTC(in.ReceivedAt),
		UserID:      in.UserID,
	}
	m.FromDomainTenantEntity(in.TenantEntity)
	return m
}

// CashExpenseModel is the persistence model for an expense paid from an account.
type CashExpenseModel struct {
	TenantModel
	AccountID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_cash_expenses_account,priority:1"`
	Amount      decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Category    string          `gorm:"type:varchar(50);not null"`
	Description string          `gorm:"type:varchar(255)"`
	PaidAt      time.Time       `gorm:"not null;index:idx_cash_expenses_account,priority:2"`
	UserID      uuid.UUID       `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (CashExpenseModel) TableName() string {
	return "cash_expenses"
}

// ToDomain converts the persistence model to a domain Expense.
func (m *CashExpenseModel) ToDomain(ctx valueobject.MoneyContext) *cashier.Expense {
	return &cashier.Expense{
		TenantEntity: m.ToTenantEntity(),
		AccountID:    m.AccountID,
		Amount:       ctx.FromDecimal(m.Amount),
		Category:     m.Category,
		Description:  m.Description,
		PaidAt:       m.PaidAt,
		UserID:       m.UserID,
	}
}

// CashExpenseModelFromDomain creates a new persistence model from a domain Expense.
func CashExpenseModelFromDomain(ex *cashier.Expense) *CashExpenseModel {
	m := &CashExpenseModel{
		AccountID:   ex.AccountID,
		Amount:      ex.Amount.Amount(),
		Category:    ex.Category,
		Description: ex.Description,
		PaidAt:      UTC(ex.PaidAt),
		UserID:      ex.UserID,
	}
	m.FromDomainTenantEntity(ex.TenantEntity)
	return m
}

// ShiftModel is the persistence model for a shift.
type ShiftModel struct {
	TenantModel
	AccountID uuid.UUID  `gorm:"type:uuid;not null;index"`
	OpenedBy  uuid.UUID  `gorm:"type:uuid"`
	StartTime time.Time  `gorm:"not null"`
	EndTime   *time.Time
}

// TableName returns the table name for GORM
func (ShiftModel) TableName() string {
	return "shifts"
}

// ToDomain converts the persistence model to a domain Shift.
func (m *ShiftModel) ToDomain() *cashier.Shift {
	return &cashier.Shift{
		TenantEntity: m.ToTenantEntity(),
		AccountID:    m.AccountID,
		OpenedBy:     m.OpenedBy,
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
	}
}

// ShiftModelFromDomain creates a new persistence model from a domain Shift.
func ShiftModelFromDomain(s *cashier.Shift) *ShiftModel {
	m := &ShiftModel{
		AccountID: s.AccountID,
		OpenedBy:  s.OpenedBy,
		StartTime: UTC(s.StartTime),
		EndTime:   UTCPtr(s.EndTime),
	}
	m.FromDomainTenantEntity(s.TenantEntity)
	return m
}
