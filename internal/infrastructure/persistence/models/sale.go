package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for a completed sale.
type SaleModel struct {
	TenantModel
	LocationID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_sales_location_completed,priority:1"`
	Kind           string          `gorm:"type:varchar(20);not null"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Tax            decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	TaxRatePercent decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Total          decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	UserID         uuid.UUID       `gorm:"type:uuid"`
	IdempotencyKey string          `gorm:"type:varchar(128);index"`
	CompletedAt    time.Time       `gorm:"not null;index:idx_sales_location_completed,priority:2"`
	// Associations
	Lines    []SaleLineModel    `gorm:"foreignKey:SaleID;references:ID"`
	Payments []SalePaymentModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// SaleLineModel is the persistence model for a sale line.
type SaleLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	ProductID   *uuid.UUID      `gorm:"type:uuid"`
	Description string          `gorm:"type:varchar(255)"`
	Quantity    int64           `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(24,8);not null"`
}

// TableName returns the table name for GORM
func (SaleLineModel) TableName() string {
	return "sale_lines"
}

// SalePaymentModel is the persistence model for one payment entry.
// Position keeps the order the entries were tendered in.
type SalePaymentModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_sale_payments_method,priority:1"`
	Position  int             `gorm:"not null"`
	Method    string          `gorm:"type:varchar(20);not null;index:idx_sale_payments_method,priority:2"`
	Amount    decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Reference *string         `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (SalePaymentModel) TableName() string {
	return "sale_payments"
}

// ToDomain converts the persistence model to a domain Sale. Amounts are
// restored with ctx.
func (m *SaleModel) ToDomain(ctx valueobject.MoneyContext) *sale.Sale {
	s := &sale.Sale{
		TenantEntity: m.ToTenantEntity(),
		LocationID:   m.LocationID,
		Kind:         sale.Kind(m.Kind),
		Amounts: sale.TaxedAmount{
			Subtotal:    ctx.FromDecimal(m.Subtotal),
			Tax:         ctx.FromDecimal(m.Tax),
			RatePercent: ctx.FromDecimal(m.TaxRatePercent),
			Total:       ctx.FromDecimal(m.Total),
		},
		UserID:         m.UserID,
		IdempotencyKey: m.IdempotencyKey,
		CompletedAt:    m.CompletedAt,
		Lines:          make([]sale.Line, len(m.Lines)),
		Payments:       make([]sale.PaymentEntry, len(m.Payments)),
	}
	for i, l := range m.Lines {
		s.Lines[i] = sale.Line{
			ID:          l.ID,
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   ctx.FromDecimal(l.UnitPrice),
			Amount:      ctx.FromDecimal(l.Amount),
		}
	}
	for i, p := range m.Payments {
		s.Payments[i] = sale.PaymentEntry{
			Method:    sale.PaymentMethod(p.Method),
			Amount:    ctx.FromDecimal(p.Amount),
			Reference: p.Reference,
		}
	}
	return s
}

// SaleModelFromDomain creates a new persistence model from a domain Sale,
// numbering lines and payments in their given order.
func SaleModelFromDomain(s *sale.Sale) *SaleModel {
	m := &SaleModel{
		LocationID:     s.LocationID,
		Kind:           string(s.Kind),
		Subtotal:       s.Amounts.Subtotal.Amount(),
		Tax:            s.Amounts.Tax.Amount(),
		TaxRatePercent: s.Amounts.RatePercent.Amount(),
		Total:          s.Amounts.Total.Amount(),
		UserID:         s.UserID,
		IdempotencyKey: s.IdempotencyKey,
		CompletedAt:    UTC(s.CompletedAt),
		Lines:          make([]SaleLineModel, len(s.Lines)),
		Payments:       make([]SalePaymentModel, len(s.Payments)),
	}
	m.FromDomainTenantEntity(s.TenantEntity)
	for i, l := range s.Lines {
		m.Lines[i] = SaleLineModel{
			ID:          l.ID,
			SaleID:      s.ID,
			Position:    i,
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.Amount(),
			Amount:      l.Amount.Amount(),
		}
	}
	for i, p := range s.Payments {
		m.Payments[i] = SalePaymentModel{
			ID:        uuid.New(),
			SaleID:    s.ID,
			Position:  i,
			Method:    string(p.Method),
			Amount:    p.Amount.Amount(),
			Reference: p.Reference,
		}
	}
	return m
}
