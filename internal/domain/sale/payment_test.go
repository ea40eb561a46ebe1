package sale

import (
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMethod_IsValid(t *testing.T) {
	tests := []struct {
		method  PaymentMethod
		isValid bool
	}{
		{PaymentMethodCash, true},
		{PaymentMethodTransfer, true},
		{PaymentMethodCard, true},
		{PaymentMethodStoreCredit, true},
		{PaymentMethodOther, true},
		{PaymentMethod("CHEQUE"), false},
		{PaymentMethod(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.method.IsValid())
		})
	}
}

func TestReconcile_SplitPayment(t *testing.T) {
	entries := []PaymentEntry{
		{Method: PaymentMethodCash, Amount: money("50.00")},
		{Method: PaymentMethodTransfer, Amount: money("62.00")},
	}

	result, err := Reconcile(entries, money("112.00"))
	require.NoError(t, err)

	assert.Equal(t, entries, result.Entries)
	assert.Len(t, result.ByMethod, 2)
	assert.Equal(t, "50.00", result.ByMethod[PaymentMethodCash].String())
	assert.Equal(t, "62.00", result.ByMethod[PaymentMethodTransfer].String())
	assert.Equal(t, []PaymentMethod{PaymentMethodCash, PaymentMethodTransfer}, result.Methods())
	assert.Equal(t, "112.00", result.Total().String())
}

func TestReconcile_SingleEntry(t *testing.T) {
	total := money("42.42")
	result, err := Reconcile([]PaymentEntry{{Method: PaymentMethodCash, Amount: total}}, total)
	require.NoError(t, err)

	assert.Equal(t, map[PaymentMethod]valueobject.Money{PaymentMethodCash: total}, result.ByMethod)
}

func TestReconcile_AggregatesRepeatedMethodsInOrder(t *testing.T) {
	ref := "VOUCHER-7"
	entries := []PaymentEntry{
		{Method: PaymentMethodCard, Amount: money("10.00")},
		{Method: PaymentMethodCash, Amount: money("5.50")},
		{Method: PaymentMethodCard, Amount: money("4.50")},
		{Method: PaymentMethodStoreCredit, Amount: money("0.00"), Reference: &ref},
	}

	result, err := Reconcile(entries, money("20.00"))
	require.NoError(t, err)

	assert.Equal(t, "14.50", result.AmountFor(PaymentMethodCard).String())
	assert.Equal(t, "5.50", result.AmountFor(PaymentMethodCash).String())
	assert.Equal(t, "0.00", result.AmountFor(PaymentMethodTransfer).String())
	assert.Equal(t, []PaymentMethod{PaymentMethodCard, PaymentMethodCash, PaymentMethodStoreCredit}, result.Methods())
	require.Len(t, result.Entries, 4)
	assert.Equal(t, &ref, result.Entries[3].Reference)
}

func TestReconcile_Empty(t *testing.T) {
	t.Run("non-zero total fails", func(t *testing.T) {
		_, err := Reconcile(nil, money("1.00"))
		assert.True(t, errors.Is(err, shared.ErrEmptyPayment))
	})

	t.Run("zero total succeeds", func(t *testing.T) {
		result, err := Reconcile([]PaymentEntry{}, valueobject.Zero())
		require.NoError(t, err)
		assert.Empty(t, result.Entries)
		assert.Empty(t, result.ByMethod)
	})
}

func TestReconcile_NegativeEntry(t *testing.T) {
	entries := []PaymentEntry{
		{Method: PaymentMethodCash, Amount: money("60.00")},
		{Method: PaymentMethodCash, Amount: money("-10.00")},
	}
	_, err := Reconcile(entries, money("50.00"))
	assert.True(t, errors.Is(err, shared.ErrNegativeEntry))
	assert.Equal(t, shared.CodeNegativeEntry, shared.ErrorCode(err))
}

func TestReconcile_UnknownMethod(t *testing.T) {
	_, err := Reconcile([]PaymentEntry{{Method: "BARTER", Amount: money(1)}}, money(1))
	assert.True(t, errors.Is(err, shared.ErrInvalidPaymentMethod))
}

func TestReconcile_AmountMismatch(t *testing.T) {
	entries := []PaymentEntry{
		{Method: PaymentMethodCash, Amount: money("30.00")},
		{Method: PaymentMethodCard, Amount: money("20.01")},
	}

	_, err := Reconcile(entries, money("50.00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAmountMismatch))
	assert.Equal(t, shared.CodeAmountMismatch, shared.ErrorCode(err))

	var mismatch *AmountMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "50.01", mismatch.Actual.String())
	assert.Equal(t, "50.00", mismatch.Expected.String())
}

func TestReconcile_DoesNotAliasInput(t *testing.T) {
	entries := []PaymentEntry{{Method: PaymentMethodCash, Amount: money("5.00")}}
	result, err := Reconcile(entries, money("5.00"))
	require.NoError(t, err)

	entries[0].Method = PaymentMethodCard
	assert.Equal(t, PaymentMethodCash, result.Entries[0].Method)
}
