package cashier

import (
	"time"

	"github.com/erp/ledger/internal/domain/cashier"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CreateAccountRequest opens a cash account with its initial float
type CreateAccountRequest struct {
	LocationID     uuid.UUID `json:"location_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=100"`
	InitialBalance string    `json:"initial_balance"`
}

// RecordIncomeRequest puts cash into an account outside of a sale
type RecordIncomeRequest struct {
	AccountID   uuid.UUID  `json:"account_id" validate:"required"`
	Amount      string     `json:"amount" validate:"required"`
	Description string     `json:"description" validate:"max=255"`
	ReceivedAt  *time.Time `json:"received_at"`
	UserID      uuid.UUID  `json:"user_id"`
}

// RecordExpenseRequest pays cash out of an account
type RecordExpenseRequest struct {
	AccountID   uuid.UUID  `json:"account_id" validate:"required"`
	Amount      string     `json:"amount" validate:"required"`
	Category    string     `json:"category" validate:"required,max=50"`
	Description string     `json:"description" validate:"max=255"`
	PaidAt      *time.Time `json:"paid_at"`
	UserID      uuid.UUID  `json:"user_id"`
}

// OpenShiftRequest starts a shift on an account
type OpenShiftRequest struct {
	AccountID uuid.UUID  `json:"account_id" validate:"required"`
	UserID    uuid.UUID  `json:"user_id" validate:"required"`
	StartTime *time.Time `json:"start_time"`
}

// AccountResponse represents a cash account
type AccountResponse struct {
	ID             uuid.UUID         `json:"id"`
	TenantID       uuid.UUID         `json:"tenant_id"`
	LocationID     uuid.UUID         `json:"location_id"`
	Name           string            `json:"name"`
	InitialBalance valueobject.Money `json:"initial_balance"`
	CreatedAt      time.Time         `json:"created_at"`
}

// EntryResponse represents a recorded income or expense
type EntryResponse struct {
	ID         uuid.UUID         `json:"id"`
	AccountID  uuid.UUID         `json:"account_id"`
	Category   string            `json:"category"`
	Amount     valueobject.Money `json:"amount"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ShiftResponse represents a shift
type ShiftResponse struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	OpenedBy  uuid.UUID  `json:"opened_by"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Open      bool       `json:"open"`
}

// ToAccountResponse converts a domain cash account
func ToAccountResponse(a *cashier.CashAccount) *AccountResponse {
	return &AccountResponse{
		ID:             a.ID,
		TenantID:       a.TenantID,
		LocationID:     a.LocationID,
		Name:           a.Name,
		InitialBalance: a.InitialBalance,
		CreatedAt:      a.CreatedAt,
	}
}

// ToShiftResponse converts a domain shift
func ToShiftResponse(s *cashier.Shift) *ShiftResponse {
	return &ShiftResponse{
		ID:        s.ID,
		AccountID: s.AccountID,
		OpenedBy:  s.OpenedBy,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Open:      s.IsOpen(),
	}
}
