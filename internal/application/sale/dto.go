package sale

import (
	"time"

	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CheckoutRequest completes a POS sale or work order.
// Money fields are decimal strings ("12.50"); a negative quantity marks a returned line.
type CheckoutRequest struct {
	LocationID     uuid.UUID        `json:"location_id" validate:"required"`
	UserID         uuid.UUID        `json:"user_id" validate:"required"`
	Kind           string           `json:"kind" validate:"omitempty,oneof=POS_SALE WORK_ORDER"`
	TaxRatePercent string           `json:"tax_rate_percent"`
	Lines          []LineRequest    `json:"lines" validate:"min=1,dive"`
	Payments       []PaymentRequest `json:"payments" validate:"dive"`
	IdempotencyKey string           `json:"idempotency_key" validate:"max=128"`
	CompletedAt    *time.Time       `json:"completed_at"`
}

// LineRequest is one sale line. ProductID is nil for service or labour lines.
type LineRequest struct {
	ProductID   *uuid.UUID `json:"product_id"`
	Description string     `json:"description" validate:"max=255"`
	Quantity    int64      `json:"quantity"`
	UnitPrice   string     `json:"unit_price" validate:"required"`
}

// PaymentRequest is one payment entry, in the order the cashier took it
type PaymentRequest struct {
	Method    string  `json:"method" validate:"required"`
	Amount    string  `json:"amount" validate:"required"`
	Reference *string `json:"reference,omitempty" validate:"omitempty,max=100"`
}

// SaleResponse represents a completed sale
type SaleResponse struct {
	ID             uuid.UUID                    `json:"id"`
	TenantID       uuid.UUID                    `json:"tenant_id"`
	LocationID     uuid.UUID                    `json:"location_id"`
	Kind           string                       `json:"kind"`
	Lines          []LineResponse               `json:"lines"`
	Subtotal       valueobject.Money            `json:"subtotal"`
	TaxRatePercent valueobject.Money            `json:"tax_rate_percent"`
	Tax            valueobject.Money            `json:"tax"`
	Total          valueobject.Money            `json:"total"`
	Payments       []sale.PaymentEntry          `json:"payments"`
	ByMethod       map[string]valueobject.Money `json:"by_method"`
	CashAmount     valueobject.Money            `json:"cash_amount"`
	CreditNote     bool                         `json:"credit_note"`
	UserID         uuid.UUID                    `json:"user_id"`
	CompletedAt    time.Time                    `json:"completed_at"`
	StockMovements []StockMovementResponse      `json:"stock_movements,omitempty"`
}

// LineResponse is one priced sale line
type LineResponse struct {
	ID          uuid.UUID         `json:"id"`
	ProductID   *uuid.UUID        `json:"product_id,omitempty"`
	Description string            `json:"description,omitempty"`
	Quantity    int64             `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
	Amount      valueobject.Money `json:"amount"`
}

// StockMovementResponse is the stock effect of one product line
type StockMovementResponse struct {
	MovementID     uuid.UUID `json:"movement_id"`
	ProductID      uuid.UUID `json:"product_id"`
	MovementType   string    `json:"movement_type"`
	QuantityChange int64     `json:"quantity_change"`
	BalanceAfter   int64     `json:"balance_after"`
}

// ToSaleResponse converts a domain sale
func ToSaleResponse(s *sale.Sale) *SaleResponse {
	resp := &SaleResponse{
		ID:             s.ID,
		TenantID:       s.TenantID,
		LocationID:     s.LocationID,
		Kind:           string(s.Kind),
		Lines:          make([]LineResponse, 0, len(s.Lines)),
		Subtotal:       s.Amounts.Subtotal,
		TaxRatePercent: s.Amounts.RatePercent,
		Tax:            s.Amounts.Tax,
		Total:          s.Amounts.Total,
		Payments:       s.Payments,
		ByMethod:       map[string]valueobject.Money{},
		CashAmount:     s.CashAmount(),
		CreditNote:     s.IsCreditNote(),
		UserID:         s.UserID,
		CompletedAt:    s.CompletedAt,
	}
	for _, l := range s.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Amount:      l.Amount,
		})
	}
	if reconciled, err := s.Reconciled(); err == nil {
		for method, amount := range reconciled.ByMethod {
			resp.ByMethod[string(method)] = amount
		}
	}
	return resp
}
