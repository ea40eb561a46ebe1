package cashier

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CashAccount is a cash drawer or till at a location. Its balance is never
// stored as a running total; it is derived per window from the underlying
// sales, incomes and expenses.
type CashAccount struct {
	shared.TenantEntity
	LocationID     uuid.UUID
	Name           string
	InitialBalance valueobject.Money
}

// NewCashAccount creates a cash account with its initial float
func NewCashAccount(tenantID, locationID uuid.UUID, name string, initialBalance valueobject.Money) (*CashAccount, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Cash account name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewDomainError("INVALID_NAME", "Cash account name cannot exceed 100 characters")
	}
	if initialBalance.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Initial balance cannot be negative")
	}
	return &CashAccount{
		TenantEntity:   shared.NewTenantEntity(tenantID),
		LocationID:     locationID,
		Name:           name,
		InitialBalance: initialBalance,
	}, nil
}

// ManualIncome is cash put into an account outside of a sale
type ManualIncome struct {
	shared.TenantEntity
	AccountID   uuid.UUID
	Amount      valueobject.Money
	Description string
	ReceivedAt  time.Time
	UserID      uuid.UUID
}

// NewManualIncome records a positive cash income for an account
func NewManualIncome(tenantID, accountID uuid.UUID, amount valueobject.Money, description string, receivedAt time.Time, userID uuid.UUID) (*ManualIncome, error) {
	if err := validateEntry(tenantID, accountID, amount); err != nil {
		return nil, err
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &ManualIncome{
		TenantEntity: shared.NewTenantEntity(tenantID),
		AccountID:    accountID,
		Amount:       amount,
		Description:  strings.TrimSpace(description),
		ReceivedAt:   receivedAt,
		UserID:       userID,
	}, nil
}

// Expense is cash paid out of an account
type Expense struct {
	shared.TenantEntity
	AccountID   uuid.UUID
	Amount      valueobject.Money
	Category    string
	Description string
	PaidAt      time.Time
	UserID      uuid.UUID
}

// NewExpense records a positive cash expense paid from an account
func NewExpense(tenantID, accountID uuid.UUID, amount valueobject.Money, category, description string, paidAt time.Time, userID uuid.UUID) (*Expense, error) {
	if err := validateEntry(tenantID, accountID, amount); err != nil {
		return nil, err
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	return &Expense{
		TenantEntity: shared.NewTenantEntity(tenantID),
		AccountID:    accountID,
		Amount:       amount,
		Category:     strings.TrimSpace(category),
		Description:  strings.TrimSpace(description),
		PaidAt:       paidAt,
		UserID:       userID,
	}, nil
}

func validateEntry(tenantID, accountID uuid.UUID, amount valueobject.Money) error {
	if tenantID == uuid.Nil {
		return shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if accountID == uuid.Nil {
		return shared.NewDomainError("INVALID_ACCOUNT", "Cash account ID cannot be empty")
	}
	if !amount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidAmount, "Amount must be positive")
	}
	return nil
}
