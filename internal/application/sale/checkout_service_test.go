package sale

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// rollbackScope serializes checkouts and undoes stock and sale writes when fn fails
type rollbackScope struct {
	mu     sync.Mutex
	stock  *testutil.StockStore
	sales  *testutil.SaleStore
	failOn error
}

func (s *rollbackScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	levels, movements := s.stock.Snapshot()
	salesBefore := s.sales.Len()

	err := fn(NewNoOpTransactionScope(s.stock, s.stock, s.sales))
	if err == nil && s.failOn != nil {
		err = s.failOn
	}
	if err != nil {
		s.stock.Restore(levels, movements)
		s.sales.Truncate(salesBefore)
		return err
	}
	return nil
}

type checkoutFixture struct {
	service    *CheckoutService
	stock      *testutil.StockStore
	sales      *testutil.SaleStore
	scope      *rollbackScope
	idem       *cache.InMemoryIdempotencyStore
	logs       *observer.ObservedLogs
	tenantID   uuid.UUID
	locationID uuid.UUID
	productA   uuid.UUID
	productB   uuid.UUID
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	stock := testutil.NewStockStore()
	sales := testutil.NewSaleStore()
	scope := &rollbackScope{stock: stock, sales: sales}
	core, logs := observer.New(zapcore.DebugLevel)

	svc := NewCheckoutService(sales, scope, inventory.StockPolicyStrict, valueobject.DefaultMoneyContext(), zap.New(core))
	idem := cache.NewInMemoryIdempotencyStore(0)
	t.Cleanup(func() { _ = idem.Close() })
	svc.SetIdempotencyStore(idem, time.Hour)

	f := &checkoutFixture{
		service:    svc,
		stock:      stock,
		sales:      sales,
		scope:      scope,
		idem:       idem,
		logs:       logs,
		tenantID:   testutil.TestTenantID(),
		locationID: testutil.NewTestUUID("store-1"),
		productA:   testutil.NewTestUUID("product-a"),
		productB:   testutil.NewTestUUID("product-b"),
	}
	f.stock.SetQuantity(f.key(f.productA), 10)
	f.stock.SetQuantity(f.key(f.productB), 1)
	return f
}

func (f *checkoutFixture) key(productID uuid.UUID) inventory.StockKey {
	return inventory.StockKey{TenantID: f.tenantID, ProductID: productID, LocationID: f.locationID}
}

func (f *checkoutFixture) request(lines []LineRequest, payments ...PaymentRequest) CheckoutRequest {
	return CheckoutRequest{
		LocationID:     f.locationID,
		UserID:         testutil.TestUserID(),
		TaxRatePercent: "12",
		Lines:          lines,
		Payments:       payments,
	}
}

func ptr[T any](v T) *T { return &v }

func TestCheckout_SplitPayment(t *testing.T) {
	f := newCheckoutFixture(t)

	// 2 x 25.00 + labour 50.00 = 100.00, tax 12.00, total 112.00
	req := f.request([]LineRequest{
		{ProductID: ptr(f.productA), Quantity: 2, UnitPrice: "25.00"},
		{Description: "Labour", Quantity: 1, UnitPrice: "50"},
	},
		PaymentRequest{Method: "CASH", Amount: "60.00"},
		PaymentRequest{Method: "CARD", Amount: "52.00", Reference: ptr("auth-991")},
	)

	resp, err := f.service.Checkout(context.Background(), f.tenantID, req)
	require.NoError(t, err)

	assert.Equal(t, "100.00", resp.Subtotal.String())
	assert.Equal(t, "12.00", resp.Tax.String())
	assert.Equal(t, "112.00", resp.Total.String())
	assert.Equal(t, "60.00", resp.CashAmount.String())
	assert.Equal(t, "POS_SALE", resp.Kind)
	require.Len(t, resp.Payments, 2)
	assert.Equal(t, sale.PaymentMethodCash, resp.Payments[0].Method)
	assert.Equal(t, "52.00", resp.ByMethod["CARD"].String())

	require.Len(t, resp.StockMovements, 1)
	assert.Equal(t, "SALE", resp.StockMovements[0].MovementType)
	assert.Equal(t, int64(-2), resp.StockMovements[0].QuantityChange)
	assert.Equal(t, int64(8), f.stock.Quantity(f.key(f.productA)))
	assert.Equal(t, 1, f.sales.Len())

	stored, err := f.service.GetSale(context.Background(), f.tenantID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Total.String(), stored.Total.String())
}

func TestCheckout_AmountMismatchWritesNothing(t *testing.T) {
	f := newCheckoutFixture(t)
	// 44.64 + 12% (5.3568 -> 5.36) = 50.00
	req := f.request([]LineRequest{{ProductID: ptr(f.productA), Quantity: 1, UnitPrice: "44.64"}},
		PaymentRequest{Method: "CASH", Amount: "30.00"},
		PaymentRequest{Method: "CARD", Amount: "20.01"},
	)

	_, err := f.service.Checkout(context.Background(), f.tenantID, req)
	require.Error(t, err)

	var mismatch *sale.AmountMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "50.00", mismatch.Expected.String())
	assert.Equal(t, "50.01", mismatch.Actual.String())
	assert.Equal(t, shared.CodeAmountMismatch, shared.ErrorCode(err))

	assert.Equal(t, int64(10), f.stock.Quantity(f.key(f.productA)))
	assert.Empty(t, f.stock.Movements())
	assert.Zero(t, f.sales.Len())
}

func TestCheckout_InsufficientStockRollsBackEveryLine(t *testing.T) {
	f := newCheckoutFixture(t)
	req := f.request([]LineRequest{
		{ProductID: ptr(f.productA), Quantity: 3, UnitPrice: "1.00"},
		{ProductID: ptr(f.productB), Quantity: 2, UnitPrice: "1.00"},
	}, PaymentRequest{Method: "CASH", Amount: "5.60"})

	_, err := f.service.Checkout(context.Background(), f.tenantID, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	assert.Equal(t, int64(10), f.stock.Quantity(f.key(f.productA)))
	assert.Equal(t, int64(1), f.stock.Quantity(f.key(f.productB)))
	assert.Empty(t, f.stock.Movements())
	assert.Zero(t, f.sales.Len())
}

func TestCheckout_CreditNoteReturnsStock(t *testing.T) {
	f := newCheckoutFixture(t)
	req := f.request([]LineRequest{{ProductID: ptr(f.productB), Quantity: -2, UnitPrice: "10.00"}},
		PaymentRequest{Method: "CASH", Amount: "22.40"},
	)

	resp, err := f.service.Checkout(context.Background(), f.tenantID, req)
	require.NoError(t, err)

	assert.True(t, resp.CreditNote)
	assert.Equal(t, "-22.40", resp.Total.String())
	assert.Equal(t, "-22.40", resp.CashAmount.String())
	require.Len(t, resp.StockMovements, 1)
	assert.Equal(t, "RETURN", resp.StockMovements[0].MovementType)
	assert.Equal(t, int64(2), resp.StockMovements[0].QuantityChange)
	assert.Equal(t, int64(3), f.stock.Quantity(f.key(f.productB)))
}

func TestCheckout_ZeroTotalNeedsNoPayment(t *testing.T) {
	f := newCheckoutFixture(t)
	req := f.request([]LineRequest{{ProductID: ptr(f.productA), Quantity: 1, UnitPrice: "0"}})

	resp, err := f.service.Checkout(context.Background(), f.tenantID, req)
	require.NoError(t, err)
	assert.True(t, resp.Total.IsZero())
	assert.Empty(t, resp.Payments)
}

func TestCheckout_Idempotency(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	req := f.request([]LineRequest{{ProductID: ptr(f.productA), Quantity: 1, UnitPrice: "10.00"}},
		PaymentRequest{Method: "CASH", Amount: "11.20"})
	req.IdempotencyKey = "till-3-000182"

	_, err := f.service.Checkout(ctx, f.tenantID, req)
	require.NoError(t, err)

	_, err = f.service.Checkout(ctx, f.tenantID, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrDuplicateCheckout))
	assert.Equal(t, int64(9), f.stock.Quantity(f.key(f.productA)))
	assert.Equal(t, 1, f.sales.Len())

	// The same key under another tenant is a different checkout
	other := req
	other.LocationID = uuid.New()
	otherTenant := uuid.New()
	_, err = f.service.Checkout(ctx, otherTenant, other)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
}

func TestCheckout_FailedCheckoutReleasesKey(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	req := f.request([]LineRequest{{ProductID: ptr(f.productB), Quantity: 1, UnitPrice: "10.00"}},
		PaymentRequest{Method: "CASH", Amount: "11.20"})
	req.IdempotencyKey = "retry-me"

	f.scope.failOn = errors.New("commit failed")
	_, err := f.service.Checkout(ctx, f.tenantID, req)
	require.Error(t, err)

	assert.Zero(t, f.sales.Len())
	assert.Equal(t, int64(1), f.stock.Quantity(f.key(f.productB)))

	f.scope.failOn = nil
	_, err = f.service.Checkout(ctx, f.tenantID, req)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.stock.Quantity(f.key(f.productB)))
	assert.Equal(t, 1, f.sales.Len())
}

func TestCheckout_Validation(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CheckoutRequest
		code string
	}{
		{"no lines", f.request(nil), shared.CodeInvalidInput},
		{"missing location", CheckoutRequest{UserID: uuid.New(), Lines: []LineRequest{{Quantity: 1, UnitPrice: "1"}}}, shared.CodeInvalidInput},
		{"bad kind", func() CheckoutRequest {
			r := f.request([]LineRequest{{Quantity: 1, UnitPrice: "1"}})
			r.Kind = "LAYAWAY"
			return r
		}(), shared.CodeInvalidInput},
		{"bad price", f.request([]LineRequest{{Quantity: 1, UnitPrice: "abc"}}), shared.CodeInvalidAmount},
		{"zero quantity", f.request([]LineRequest{{Quantity: 0, UnitPrice: "1"}}), shared.CodeInvalidQuantity},
		{"unknown method", f.request([]LineRequest{{Quantity: 1, UnitPrice: "1"}},
			PaymentRequest{Method: "BITCOIN", Amount: "1.12"}), shared.CodeInvalidPaymentMethod},
		{"negative entry", f.request([]LineRequest{{Quantity: 1, UnitPrice: "1"}},
			PaymentRequest{Method: "CASH", Amount: "2.12"}, PaymentRequest{Method: "CARD", Amount: "-1.00"}), shared.CodeNegativeEntry},
		{"empty payment", f.request([]LineRequest{{Quantity: 1, UnitPrice: "1"}}), shared.CodeEmptyPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Checkout(ctx, f.tenantID, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.ErrorCode(err))
		})
	}
	assert.Zero(t, f.sales.Len())
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	f := newCheckoutFixture(t)
	req := f.request([]LineRequest{{ProductID: ptr(f.productB), Quantity: 1, UnitPrice: "5.00"}},
		PaymentRequest{Method: "CASH", Amount: "5.60"})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Checkout(context.Background(), f.tenantID, req); err == nil {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, completed)
	assert.Equal(t, int64(0), f.stock.Quantity(f.key(f.productB)))
	assert.Equal(t, 1, f.sales.Len())
}
