package sale

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productLine(qty int64, price string) LineInput {
	id := uuid.New()
	return LineInput{ProductID: &id, Description: "Part", Quantity: qty, UnitPrice: money(price)}
}

func TestKind_IsValid(t *testing.T) {
	assert.True(t, KindPOSSale.IsValid())
	assert.True(t, KindWorkOrder.IsValid())
	assert.False(t, Kind("INVOICE").IsValid())
}

func TestNewSale_EndToEnd(t *testing.T) {
	tenantID, locationID, userID := uuid.New(), uuid.New(), uuid.New()
	completedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	lines := []LineInput{
		productLine(2, "30.00"),
		{Description: "Labour", Quantity: 1, UnitPrice: money("40.00")},
	}
	payments := []PaymentEntry{
		{Method: PaymentMethodCash, Amount: money("50.00")},
		{Method: PaymentMethodTransfer, Amount: money("62.00")},
	}

	s, err := NewSale(tenantID, locationID, userID, KindWorkOrder, lines, money(12), payments, completedAt)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, tenantID, s.TenantID)
	assert.Equal(t, "100.00", s.Amounts.Subtotal.String())
	assert.Equal(t, "12.00", s.Amounts.Tax.String())
	assert.Equal(t, "112.00", s.Amounts.Total.String())
	assert.Equal(t, payments, s.Payments)
	assert.Equal(t, completedAt, s.CompletedAt)
	assert.Equal(t, "60.00", s.Lines[0].Amount.String())
	assert.Len(t, s.ProductLines(), 1)
	assert.Equal(t, "50.00", s.CashAmount().String())
	assert.False(t, s.IsCreditNote())

	reconciled, err := s.Reconciled()
	require.NoError(t, err)
	assert.Equal(t, "62.00", reconciled.AmountFor(PaymentMethodTransfer).String())
}

func TestNewSale_LineAmountsQuantizedBeforeSubtotal(t *testing.T) {
	s, err := NewSale(uuid.New(), uuid.New(), uuid.New(), KindPOSSale,
		[]LineInput{productLine(3, "0.335")},
		money(0),
		[]PaymentEntry{{Method: PaymentMethodCard, Amount: money("1.02")}},
		time.Time{})
	require.NoError(t, err)

	// unit price is quantized to 0.34 on parse, so 3 x 0.34
	assert.Equal(t, "1.02", s.Amounts.Total.String())
	assert.False(t, s.CompletedAt.IsZero())
}

func TestNewSale_CreditNote(t *testing.T) {
	s, err := NewSale(uuid.New(), uuid.New(), uuid.New(), KindPOSSale,
		[]LineInput{productLine(-1, "100.00")},
		money(12),
		[]PaymentEntry{{Method: PaymentMethodCash, Amount: money("112.00")}},
		time.Now())
	require.NoError(t, err)

	assert.True(t, s.IsCreditNote())
	assert.Equal(t, "-12.00", s.Amounts.Tax.String())
	assert.Equal(t, "-112.00", s.Amounts.Total.String())
	assert.Equal(t, "-112.00", s.CashAmount().String())
}

func TestNewSale_PaymentMismatch(t *testing.T) {
	_, err := NewSale(uuid.New(), uuid.New(), uuid.New(), KindPOSSale,
		[]LineInput{productLine(1, "50.00")},
		money(0),
		[]PaymentEntry{
			{Method: PaymentMethodCash, Amount: money("30.00")},
			{Method: PaymentMethodCard, Amount: money("20.01")},
		},
		time.Now())
	assert.True(t, errors.Is(err, shared.ErrAmountMismatch))
}

func TestNewSale_Validation(t *testing.T) {
	valid := []LineInput{productLine(1, "1.00")}
	pay := []PaymentEntry{{Method: PaymentMethodCash, Amount: money("1.00")}}

	tests := []struct {
		name     string
		tenantID uuid.UUID
		location uuid.UUID
		kind     Kind
		lines    []LineInput
		code     string
	}{
		{"missing tenant", uuid.Nil, uuid.New(), KindPOSSale, valid, "INVALID_TENANT"},
		{"missing location", uuid.New(), uuid.Nil, KindPOSSale, valid, "INVALID_LOCATION"},
		{"unknown kind", uuid.New(), uuid.New(), Kind("X"), valid, "INVALID_SALE_KIND"},
		{"no lines", uuid.New(), uuid.New(), KindPOSSale, nil, "EMPTY_SALE"},
		{"zero quantity", uuid.New(), uuid.New(), KindPOSSale, []LineInput{productLine(0, "1.00")}, shared.CodeInvalidQuantity},
		{"negative price", uuid.New(), uuid.New(), KindPOSSale, []LineInput{productLine(1, "-1.00")}, "INVALID_PRICE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSale(tt.tenantID, tt.location, uuid.New(), tt.kind, tt.lines, money(0), pay, time.Now())
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.ErrorCode(err))
		})
	}
}
