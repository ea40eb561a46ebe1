package sale

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// PaymentMethod represents how a payment entry was tendered
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "CASH"
	PaymentMethodTransfer    PaymentMethod = "TRANSFER"
	PaymentMethodCard        PaymentMethod = "CARD"
	PaymentMethodStoreCredit PaymentMethod = "STORE_CREDIT"
	PaymentMethodOther       PaymentMethod = "OTHER"
)

// IsValid returns true if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard, PaymentMethodStoreCredit, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentEntry is one tendered amount of a sale
type PaymentEntry struct {
	Method    PaymentMethod     `json:"method"`
	Amount    valueobject.Money `json:"amount"`
	Reference *string           `json:"reference,omitempty"`
}

// AmountMismatchError reports that payment entries do not add up to the charged total
type AmountMismatchError struct {
	Expected valueobject.Money
	Actual   valueobject.Money
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment entries sum to %s, expected %s", e.Actual, e.Expected)
}

// Unwrap exposes the AMOUNT_MISMATCH domain error
func (e *AmountMismatchError) Unwrap() error {
	return shared.NewDomainError(shared.CodeAmountMismatch, e.Error())
}

// ReconciledPayments is the validated, order-preserving payment list of a sale
// together with its per-method totals
type ReconciledPayments struct {
	Entries  []PaymentEntry
	ByMethod map[PaymentMethod]valueobject.Money
	methods  []PaymentMethod
}

// Methods returns the methods used, in the order they first appear in Entries
func (r *ReconciledPayments) Methods() []PaymentMethod {
	out := make([]PaymentMethod, len(r.methods))
	copy(out, r.methods)
	return out
}

// AmountFor returns the total tendered with method, zero if unused
func (r *ReconciledPayments) AmountFor(method PaymentMethod) valueobject.Money {
	if amount, ok := r.ByMethod[method]; ok {
		return amount
	}
	return valueobject.Zero()
}

// Total returns the sum of all entries
func (r *ReconciledPayments) Total() valueobject.Money {
	total := valueobject.Zero()
	for _, e := range r.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Reconcile validates that entries sum exactly to expectedTotal and aggregates them by method.
// It has no side effects. Entries are returned in their original order.
func Reconcile(entries []PaymentEntry, expectedTotal valueobject.Money) (*ReconciledPayments, error) {
	if len(entries) == 0 && !expectedTotal.IsZero() {
		return nil, shared.NewDomainError(shared.CodeEmptyPayment,
			fmt.Sprintf("No payment entries for a total of %s", expectedTotal))
	}

	ctx := expectedTotal.Context()
	result := &ReconciledPayments{
		Entries:  make([]PaymentEntry, len(entries)),
		ByMethod: make(map[PaymentMethod]valueobject.Money, len(entries)),
	}
	sum := ctx.Zero()

	for i, entry := range entries {
		if !entry.Method.IsValid() {
			return nil, shared.NewDomainError(shared.CodeInvalidPaymentMethod,
				fmt.Sprintf("Payment entry %d has unknown method %q", i, entry.Method))
		}
		if entry.Amount.IsNegative() {
			return nil, shared.NewDomainError(shared.CodeNegativeEntry,
				fmt.Sprintf("Payment entry %d (%s) has negative amount %s", i, entry.Method, entry.Amount))
		}

		result.Entries[i] = entry
		sum = sum.Add(entry.Amount)
		if current, seen := result.ByMethod[entry.Method]; seen {
			result.ByMethod[entry.Method] = current.Add(entry.Amount)
		} else {
			result.ByMethod[entry.Method] = ctx.FromDecimal(entry.Amount.Amount())
			result.methods = append(result.methods, entry.Method)
		}
	}

	if !sum.Equal(expectedTotal) {
		return nil, &AmountMismatchError{Expected: expectedTotal, Actual: sum}
	}
	return result, nil
}
