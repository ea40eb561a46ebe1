package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// serialScope runs fn under a mutex, standing in for the row lock, and
// rolls the store back when fn fails
type serialScope struct {
	mu    sync.Mutex
	store *testutil.StockStore
}

func (s *serialScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	levels, movements := s.store.Snapshot()
	if err := fn(NewNoOpTransactionScope(s.store, s.store)); err != nil {
		s.store.Restore(levels, movements)
		return err
	}
	return nil
}

type fixture struct {
	service  *StockLedgerService
	store    *testutil.StockStore
	logs     *observer.ObservedLogs
	tenantID uuid.UUID
	key      inventory.StockKey
}

func newFixture(t *testing.T, policy inventory.StockPolicy) *fixture {
	t.Helper()
	store := testutil.NewStockStore()
	core, logs := observer.New(zapcore.DebugLevel)

	svc := NewStockLedgerService(store, store, &serialScope{store: store}, policy, zap.New(core))
	metrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{Meter: noop.NewMeterProvider().Meter("test")})
	require.NoError(t, err)
	svc.SetLedgerMetrics(metrics)

	tenantID := uuid.New()
	return &fixture{
		service:  svc,
		store:    store,
		logs:     logs,
		tenantID: tenantID,
		key:      inventory.StockKey{TenantID: tenantID, ProductID: uuid.New(), LocationID: uuid.New()},
	}
}

func (f *fixture) apply(t *testing.T, change int64, movementType inventory.MovementType) (*StockLevelResponse, error) {
	t.Helper()
	return f.service.ApplyMovement(context.Background(), f.tenantID, ApplyMovementRequest{
		ProductID:      f.key.ProductID,
		LocationID:     f.key.LocationID,
		QuantityChange: change,
		MovementType:   string(movementType),
		ReferenceID:    "ref-1",
		UserID:         uuid.New(),
	})
}

func TestApplyMovement_SaleAfterPurchase(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyStrict)

	_, err := f.apply(t, 5, inventory.MovementTypePurchase)
	require.NoError(t, err)

	resp, err := f.apply(t, -3, inventory.MovementTypeSale)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Quantity)
	require.NotNil(t, resp.Movement)
	assert.Equal(t, int64(-3), resp.Movement.QuantityChange)
	assert.Equal(t, int64(2), resp.Movement.BalanceAfter)
	assert.Equal(t, "SALE", resp.Movement.MovementType)

	replayed, err := f.service.ReplayBalance(context.Background(), f.tenantID, f.key.ProductID, f.key.LocationID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), replayed)
}

func TestApplyMovement_InsufficientStockLeavesNoTrace(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyStrict)
	_, err := f.apply(t, 1, inventory.MovementTypePurchase)
	require.NoError(t, err)

	_, err = f.apply(t, -2, inventory.MovementTypeSale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	level, err := f.store.Find(context.Background(), f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), level.Quantity)
	assert.Len(t, f.store.Movements(), 1)
	assert.Equal(t, 1, f.logs.FilterMessage("Movement rejected: insufficient stock").Len())
}

func TestApplyMovement_BackorderAllowsNegative(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyBackorder)

	resp, err := f.apply(t, -4, inventory.MovementTypeSale)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), resp.Quantity)
}

func TestApplyMovement_Validation(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyStrict)
	ctx := context.Background()

	_, err := f.service.ApplyMovement(ctx, f.tenantID, ApplyMovementRequest{
		LocationID:     f.key.LocationID,
		QuantityChange: 1,
		MovementType:   "PURCHASE",
	})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	_, err = f.apply(t, 1, "GIFT")
	assert.Equal(t, shared.CodeInvalidMovementType, shared.ErrorCode(err))

	_, err = f.apply(t, 0, inventory.MovementTypeAdjustment)
	assert.Equal(t, shared.CodeInvalidQuantity, shared.ErrorCode(err))

	_, err = f.apply(t, 3, inventory.MovementTypeSale)
	assert.Equal(t, shared.CodeInvalidQuantity, shared.ErrorCode(err))

	assert.Empty(t, f.store.Movements())
}

func TestApplyMovement_ConcurrentSalesOfLastUnit(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyStrict)
	_, err := f.apply(t, 1, inventory.MovementTypePurchase)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.apply(t, -1, inventory.MovementTypeSale)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	level, err := f.store.Find(context.Background(), f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), level.Quantity)
}

func TestVerifyBalance(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyStrict)
	ctx := context.Background()
	_, err := f.apply(t, 7, inventory.MovementTypePurchase)
	require.NoError(t, err)

	t.Run("consistent", func(t *testing.T) {
		report, err := f.service.VerifyBalance(ctx, f.tenantID, f.key.ProductID, f.key.LocationID)
		require.NoError(t, err)
		assert.True(t, report.Consistent)
		assert.Equal(t, int64(7), report.Stored)
	})

	t.Run("unknown pair is consistent at zero", func(t *testing.T) {
		report, err := f.service.VerifyBalance(ctx, f.tenantID, uuid.New(), f.key.LocationID)
		require.NoError(t, err)
		assert.True(t, report.Consistent)
		assert.Zero(t, report.Stored)
	})

	t.Run("divergence is reported, not healed", func(t *testing.T) {
		f.store.SetQuantity(f.key, 9)

		report, err := f.service.VerifyBalance(ctx, f.tenantID, f.key.ProductID, f.key.LocationID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrDataIntegrityDivergence))

		var divergence *inventory.DivergenceError
		require.True(t, errors.As(err, &divergence))
		assert.Equal(t, int64(2), divergence.Delta())
		require.NotNil(t, report)
		assert.False(t, report.Consistent)
		assert.Equal(t, int64(9), report.Stored)
		assert.Equal(t, int64(7), report.Replayed)
		assert.Equal(t, 1, f.logs.FilterMessage("Stock level diverges from movement log").Len())

		level, _ := f.store.Find(ctx, f.key)
		assert.Equal(t, int64(9), level.Quantity)
	})
}

func TestRepairBalance(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyStrict)
	ctx := context.Background()
	_, err := f.apply(t, 7, inventory.MovementTypePurchase)
	require.NoError(t, err)
	f.store.SetQuantity(f.key, 4)

	req := RepairBalanceRequest{
		ProductID:  f.key.ProductID,
		LocationID: f.key.LocationID,
		UserID:     uuid.New(),
		Reason:     "stock count 2026-10-01",
	}
	result, err := f.service.RepairBalance(ctx, f.tenantID, req)
	require.NoError(t, err)
	require.NotNil(t, result.Adjustment)
	assert.Equal(t, int64(-3), result.Adjustment.QuantityChange)
	assert.Equal(t, "ADJUSTMENT", result.Adjustment.MovementType)
	assert.Equal(t, int64(4), result.Adjustment.BalanceAfter)

	report, err := f.service.VerifyBalance(ctx, f.tenantID, f.key.ProductID, f.key.LocationID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(4), report.Stored)

	again, err := f.service.RepairBalance(ctx, f.tenantID, req)
	require.NoError(t, err)
	assert.Nil(t, again.Adjustment)

	_, err = f.service.RepairBalance(ctx, f.tenantID, RepairBalanceRequest{ProductID: f.key.ProductID, LocationID: f.key.LocationID})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
}

func TestSweepIntegrity(t *testing.T) {
	f := newFixture(t, inventory.StockPolicyStrict)
	ctx := context.Background()

	other := ApplyMovementRequest{ProductID: uuid.New(), LocationID: f.key.LocationID, QuantityChange: 2, MovementType: "PURCHASE"}
	_, err := f.service.ApplyMovement(ctx, f.tenantID, other)
	require.NoError(t, err)
	_, err = f.apply(t, 5, inventory.MovementTypePurchase)
	require.NoError(t, err)
	f.store.SetQuantity(f.key, 1)

	report, err := f.service.SweepIntegrity(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Divergent, 1)
	assert.Equal(t, f.key.ProductID, report.Divergent[0].ProductID)
	assert.Equal(t, int64(-4), report.Divergent[0].Delta)

	_, err = f.service.SweepIntegrity(ctx, uuid.Nil)
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
}

// MockStockLevelRepository is a testify mock of inventory.StockLevelRepository
type MockStockLevelRepository struct {
	mock.Mock
}

func (m *MockStockLevelRepository) Find(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockLevel), args.Error(1)
}

func (m *MockStockLevelRepository) FindForUpdate(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockLevel), args.Error(1)
}

func (m *MockStockLevelRepository) GetOrCreateForUpdate(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockLevel), args.Error(1)
}

func (m *MockStockLevelRepository) Save(ctx context.Context, level *inventory.StockLevel) error {
	return m.Called(ctx, level).Error(0)
}

func (m *MockStockLevelRepository) ListPairs(ctx context.Context, tenantID uuid.UUID) ([]inventory.StockKey, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]inventory.StockKey), args.Error(1)
}

func TestApplyMovement_InfrastructureFailure(t *testing.T) {
	levels := new(MockStockLevelRepository)
	store := testutil.NewStockStore()
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewStockLedgerService(levels, store, NewNoOpTransactionScope(levels, store), inventory.StockPolicyStrict, zap.New(core))

	dbErr := errors.New("connection reset")
	levels.On("GetOrCreateForUpdate", mock.Anything, mock.Anything).Return(nil, dbErr)

	_, err := svc.ApplyMovement(context.Background(), uuid.New(), ApplyMovementRequest{
		ProductID:      uuid.New(),
		LocationID:     uuid.New(),
		QuantityChange: 1,
		MovementType:   "PURCHASE",
	})
	require.ErrorIs(t, err, dbErr)
	assert.Empty(t, store.Movements())
	assert.Equal(t, 1, logs.FilterMessage("Movement failed").Len())
	levels.AssertExpectations(t)
}
