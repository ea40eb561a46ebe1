package sale

import (
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(v any) valueobject.Money {
	return valueobject.MustNewMoney(v)
}

func TestCalcTax(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		rate     string
		want     string
	}{
		{"receipt example", "100.00", "12", "12.00"},
		{"zero rate", "59.99", "0", "0.00"},
		{"rounds half up", "0.25", "10", "0.03"},
		{"fractional rate", "19.99", "7.5", "1.50"},
		{"credit note yields negative tax", "-100.00", "12", "-12.00"},
		{"negative half rounds away from zero", "-0.25", "10", "-0.03"},
		{"zero subtotal", "0", "21", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalcTax(money(tt.subtotal), money(tt.rate)).String())
		})
	}
}

func TestCalcTotal_NoResidualDrift(t *testing.T) {
	subtotals := []string{"0.01", "0.05", "1.99", "33.33", "100.00", "12345.67", "-45.55", "0.15"}
	rates := []string{"0", "5", "7.25", "10", "12", "16", "21", "33.33"}

	for _, s := range subtotals {
		for _, r := range rates {
			subtotal := money(s)
			tax := CalcTax(subtotal, money(r))
			total := CalcTotal(subtotal, tax)

			expected := subtotal.Amount().Add(tax.Amount())
			assert.True(t, total.Amount().Equal(expected), "subtotal=%s rate=%s total=%s", s, r, total)
			assert.Equal(t, int32(-2), total.Amount().Exponent())
		}
	}
}

func TestNewTaxedAmount(t *testing.T) {
	amounts, err := NewTaxedAmount(money("100.00"), money(12))
	require.NoError(t, err)

	assert.Equal(t, "100.00", amounts.Subtotal.String())
	assert.Equal(t, "12.00", amounts.Tax.String())
	assert.Equal(t, "12.00", amounts.RatePercent.String())
	assert.Equal(t, "112.00", amounts.Total.String())
	assert.NoError(t, amounts.Validate())
}

func TestNewTaxedAmount_NegativeRate(t *testing.T) {
	_, err := NewTaxedAmount(money("10"), money("-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidTaxRate))
}

func TestTaxedAmount_ValidateDetectsTampering(t *testing.T) {
	amounts, err := NewTaxedAmount(money("50.00"), money(10))
	require.NoError(t, err)

	badTax := amounts
	badTax.Tax = money("5.01")
	assert.True(t, errors.Is(badTax.Validate(), shared.ErrAmountMismatch))

	badTotal := amounts
	badTotal.Total = money("55.01")
	assert.True(t, errors.Is(badTotal.Validate(), shared.ErrAmountMismatch))
}

func TestCalcTax_UsesSubtotalContext(t *testing.T) {
	bank := valueobject.MoneyContext{Scale: 2, Rounding: valueobject.RoundHalfEven}
	// 0.25 * 10% = 0.025, which banker's rounding takes to 0.02
	tax := CalcTax(bank.MustParse("0.25"), bank.MustParse(10))
	assert.Equal(t, "0.02", tax.String())
}
