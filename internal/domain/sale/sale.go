package sale

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Kind distinguishes counter sales from completed repair work orders
type Kind string

const (
	KindPOSSale   Kind = "POS_SALE"
	KindWorkOrder Kind = "WORK_ORDER"
)

// IsValid returns true if the kind is known
func (k Kind) IsValid() bool {
	return k == KindPOSSale || k == KindWorkOrder
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// Line is one charged line of a sale. Service and labour lines carry no product
// and never touch stock. Negative quantities describe returned goods on a credit note.
type Line struct {
	ID          uuid.UUID
	ProductID   *uuid.UUID
	Description string
	Quantity    int64
	UnitPrice   valueobject.Money
	Amount      valueobject.Money
}

// LineInput is the caller-supplied data for a sale line
type LineInput struct {
	ProductID   *uuid.UUID
	Description string
	Quantity    int64
	UnitPrice   valueobject.Money
}

// HasProduct reports whether the line moves stock
func (l Line) HasProduct() bool {
	return l.ProductID != nil && *l.ProductID != uuid.Nil
}

// Sale is a completed POS sale or work order with its taxed totals and
// reconciled payment breakdown
type Sale struct {
	shared.TenantEntity
	LocationID     uuid.UUID
	Kind           Kind
	Lines          []Line
	Amounts        TaxedAmount
	Payments       []PaymentEntry
	UserID         uuid.UUID
	IdempotencyKey string
	CompletedAt    time.Time
}

// NewSale builds a sale: line amounts are quantized individually, the subtotal is
// taxed, and the payments are reconciled against the total.
//
// A credit note (negative total) is refunded with positive payment entries that
// must sum to the absolute total.
func NewSale(
	tenantID, locationID, userID uuid.UUID,
	kind Kind,
	lines []LineInput,
	ratePercent valueobject.Money,
	payments []PaymentEntry,
	completedAt time.Time,
) (*Sale, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_SALE_KIND", fmt.Sprintf("Unknown sale kind %q", kind))
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("EMPTY_SALE", "Sale must have at least one line")
	}
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	ctx := ratePercent.Context()
	subtotal := ctx.Zero()
	saleLines := make([]Line, 0, len(lines))
	for i, in := range lines {
		if in.Quantity == 0 {
			return nil, shared.NewDomainError(shared.CodeInvalidQuantity, fmt.Sprintf("Line %d has zero quantity", i))
		}
		if in.UnitPrice.IsNegative() {
			return nil, shared.NewDomainError("INVALID_PRICE", fmt.Sprintf("Line %d has negative unit price", i))
		}
		amount := in.UnitPrice.MulInt(in.Quantity)
		subtotal = subtotal.Add(amount)
		saleLines = append(saleLines, Line{
			ID:          uuid.New(),
			ProductID:   in.ProductID,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      amount,
		})
	}

	amounts, err := NewTaxedAmount(subtotal, ratePercent)
	if err != nil {
		return nil, err
	}

	reconciled, err := Reconcile(payments, amounts.Total.Abs())
	if err != nil {
		return nil, err
	}

	return &Sale{
		TenantEntity: shared.NewTenantEntity(tenantID),
		LocationID:   locationID,
		Kind:         kind,
		Lines:        saleLines,
		Amounts:      amounts,
		Payments:     reconciled.Entries,
		UserID:       userID,
		CompletedAt:  completedAt,
	}, nil
}

// IsCreditNote reports whether the sale refunds money
func (s *Sale) IsCreditNote() bool {
	return s.Amounts.Total.IsNegative()
}

// Reconciled re-runs payment reconciliation over the stored entries
func (s *Sale) Reconciled() (*ReconciledPayments, error) {
	return Reconcile(s.Payments, s.Amounts.Total.Abs())
}

// CashAmount returns the signed cash portion of the sale: positive for cash
// taken in, negative for cash refunded on a credit note
func (s *Sale) CashAmount() valueobject.Money {
	cash := s.Amounts.Total.Context().Zero()
	for _, p := range s.Payments {
		if p.Method == PaymentMethodCash {
			cash = cash.Add(p.Amount)
		}
	}
	if s.IsCreditNote() {
		return cash.Neg()
	}
	return cash
}

// ProductLines returns the lines that move stock
func (s *Sale) ProductLines() []Line {
	out := make([]Line, 0, len(s.Lines))
	for _, l := range s.Lines {
		if l.HasProduct() {
			out = append(out, l)
		}
	}
	return out
}
