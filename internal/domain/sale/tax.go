package sale

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalcTax returns subtotal * ratePercent / 100, quantized once in the subtotal's context.
// A zero rate yields zero tax. A negative subtotal (credit note) yields a negative tax.
func CalcTax(subtotal, ratePercent valueobject.Money) valueobject.Money {
	raw := subtotal.Amount().Mul(ratePercent.Amount()).Div(hundred)
	return subtotal.Context().FromDecimal(raw)
}

// CalcTotal returns subtotal + tax. Both inputs are already quantized, so the
// total never differs from the sum of the printed lines.
func CalcTotal(subtotal, tax valueobject.Money) valueobject.Money {
	return subtotal.Add(tax)
}

// TaxedAmount is a subtotal with its tax line and total
type TaxedAmount struct {
	Subtotal    valueobject.Money `json:"subtotal"`
	Tax         valueobject.Money `json:"tax"`
	RatePercent valueobject.Money `json:"rate_percent"`
	Total       valueobject.Money `json:"total"`
}

// NewTaxedAmount computes tax and total for a subtotal at the given percentage rate
func NewTaxedAmount(subtotal, ratePercent valueobject.Money) (TaxedAmount, error) {
	if ratePercent.IsNegative() {
		return TaxedAmount{}, shared.NewDomainError(shared.CodeInvalidTaxRate,
			fmt.Sprintf("Tax rate cannot be negative, got %s", ratePercent))
	}
	tax := CalcTax(subtotal, ratePercent)
	return TaxedAmount{
		Subtotal:    subtotal,
		Tax:         tax,
		RatePercent: ratePercent,
		Total:       CalcTotal(subtotal, tax),
	}, nil
}

// Validate rechecks the tax and total invariants, e.g. for amounts loaded from storage
func (t TaxedAmount) Validate() error {
	if t.RatePercent.IsNegative() {
		return shared.ErrInvalidTaxRate
	}
	if expected := CalcTax(t.Subtotal, t.RatePercent); !t.Tax.Equal(expected) {
		return shared.NewDomainError(shared.CodeAmountMismatch,
			fmt.Sprintf("Tax %s does not match %s%% of %s (expected %s)", t.Tax, t.RatePercent, t.Subtotal, expected))
	}
	if expected := CalcTotal(t.Subtotal, t.Tax); !t.Total.Equal(expected) {
		return shared.NewDomainError(shared.CodeAmountMismatch,
			fmt.Sprintf("Total %s does not equal subtotal %s plus tax %s", t.Total, t.Subtotal, t.Tax))
	}
	return nil
}
