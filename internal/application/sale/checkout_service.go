package sale

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/application/validation"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultIdempotencyTTL is how long a checkout key is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

// CheckoutService completes sales: tax, payment reconciliation, stock
// movements and the sale record
type CheckoutService struct {
	saleRepo       sale.SaleRepository
	txScope        TransactionScope
	ledger         *inventory.StockLedger
	moneyCtx       valueobject.MoneyContext
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	logger         *zap.Logger
	metrics        *telemetry.LedgerMetrics
}

// NewCheckoutService creates a new CheckoutService. saleRepo serves reads
// outside a transaction.
func NewCheckoutService(
	saleRepo sale.SaleRepository,
	txScope TransactionScope,
	policy inventory.StockPolicy,
	moneyCtx valueobject.MoneyContext,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		saleRepo:       saleRepo,
		txScope:        txScope,
		ledger:         inventory.NewStockLedger(policy),
		moneyCtx:       moneyCtx,
		idempotencyTTL: DefaultIdempotencyTTL,
		logger:         logger.OrNop(log).Named("checkout"),
	}
}

// SetIdempotencyStore enables duplicate checkout detection (optional).
// A non-positive ttl keeps DefaultIdempotencyTTL.
func (s *CheckoutService) SetIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) {
	s.idempotency = store
	if ttl > 0 {
		s.idempotencyTTL = ttl
	}
}

// SetLedgerMetrics sets the metrics recorder (optional)
func (s *CheckoutService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// Checkout prices the sale, reconciles its payments and, in one transaction,
// moves stock for every product line and stores the sale.
//
// Product lines with a positive quantity record a SALE of that quantity;
// negative quantities (returned goods on a credit note) record a RETURN.
// Nothing is written when pricing or reconciliation fails, and a stock
// rejection rolls back every movement of the sale.
func (s *CheckoutService) Checkout(ctx context.Context, tenantID uuid.UUID, req CheckoutRequest) (*SaleResponse, error) {
	ctx = logger.WithOperation(logger.WithTenantID(ctx, tenantID.String()), "checkout")
	ctx, span := telemetry.StartServiceSpan(ctx, "CheckoutService", "Checkout",
		"tenant_id", tenantID.String(),
		"location_id", req.LocationID.String(),
	)
	defer span.End()

	if err := validation.Struct(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	newSale, err := s.buildSale(tenantID, req)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Info("Checkout rejected", zap.Error(err))
		return nil, err
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.idempotency != nil {
		idemKey = fmt.Sprintf("checkout:%s:%s", tenantID, req.IdempotencyKey)
		fresh, err := s.idempotency.MarkProcessed(ctx, idemKey, s.idempotencyTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
		if !fresh {
			logger.WithLogger(ctx, s.logger).Info("Duplicate checkout ignored",
				zap.String("idempotency_key", req.IdempotencyKey))
			return nil, shared.ErrDuplicateCheckout
		}
	}

	var movements []StockMovementResponse
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		movements, err = s.moveStock(ctx, repos, newSale)
		if err != nil {
			return err
		}
		return repos.SaleRepo().Create(ctx, newSale)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if idemKey != "" {
			if releaseErr := s.idempotency.Release(ctx, idemKey); releaseErr != nil {
				logger.WithLogger(ctx, s.logger).Warn("Failed to release idempotency key", zap.Error(releaseErr))
			}
		}
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.metrics.RecordInsufficientStock(ctx, tenantID, string(inventory.MovementTypeSale))
		}
		logger.WithLogger(ctx, s.logger).Info("Checkout failed", zap.String("sale_id", newSale.ID.String()), zap.Error(err))
		return nil, err
	}

	resp := ToSaleResponse(newSale)
	resp.StockMovements = movements
	s.recordCheckout(ctx, newSale)
	logger.WithLogger(ctx, s.logger).Info("Checkout completed",
		zap.String("sale_id", newSale.ID.String()),
		zap.String("kind", string(newSale.Kind)),
		zap.String("total", newSale.Amounts.Total.String()),
		zap.Int("stock_movements", len(movements)),
	)
	return resp, nil
}

// GetSale returns a stored sale
func (s *CheckoutService) GetSale(ctx context.Context, tenantID, saleID uuid.UUID) (*SaleResponse, error) {
	found, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, saleID)
	if err != nil {
		return nil, err
	}
	return ToSaleResponse(found), nil
}

// ListSales returns a page of a tenant's sales
func (s *CheckoutService) ListSales(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]SaleResponse, error) {
	sales, err := s.saleRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]SaleResponse, 0, len(sales))
	for i := range sales {
		out = append(out, *ToSaleResponse(&sales[i]))
	}
	return out, nil
}

func (s *CheckoutService) buildSale(tenantID uuid.UUID, req CheckoutRequest) (*sale.Sale, error) {
	rate := s.moneyCtx.Zero()
	if req.TaxRatePercent != "" {
		var err error
		if rate, err = s.moneyCtx.Parse(req.TaxRatePercent); err != nil {
			return nil, err
		}
	}

	lines := make([]sale.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		price, err := s.moneyCtx.Parse(l.UnitPrice)
		if err != nil {
			return nil, err
		}
		lines = append(lines, sale.LineInput{
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   price,
		})
	}

	payments := make([]sale.PaymentEntry, 0, len(req.Payments))
	for _, p := range req.Payments {
		amount, err := s.moneyCtx.Parse(p.Amount)
		if err != nil {
			return nil, err
		}
		payments = append(payments, sale.PaymentEntry{
			Method:    sale.PaymentMethod(p.Method),
			Amount:    amount,
			Reference: p.Reference,
		})
	}

	kind := sale.KindPOSSale
	if req.Kind != "" {
		kind = sale.Kind(req.Kind)
	}
	var completedAt time.Time
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}

	newSale, err := sale.NewSale(tenantID, req.LocationID, req.UserID, kind, lines, rate, payments, completedAt)
	if err != nil {
		return nil, err
	}
	newSale.IdempotencyKey = req.IdempotencyKey
	return newSale, nil
}

// moveStock applies one movement per product line. Lines are applied in
// product order so concurrent checkouts lock rows in the same sequence.
func (s *CheckoutService) moveStock(ctx context.Context, repos TransactionalRepositories, sl *sale.Sale) ([]StockMovementResponse, error) {
	lines := sl.ProductLines()
	sort.SliceStable(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})

	out := make([]StockMovementResponse, 0, len(lines))
	for _, line := range lines {
		movementType := inventory.MovementTypeSale
		if line.Quantity < 0 {
			movementType = inventory.MovementTypeReturn
		}
		level, movement, err := s.ledger.Apply(ctx, repos.StockLevelRepo(), repos.MovementRepo(), inventory.ApplyCommand{
			TenantID:       sl.TenantID,
			ProductID:      *line.ProductID,
			LocationID:     sl.LocationID,
			QuantityChange: -line.Quantity,
			MovementType:   movementType,
			ReferenceID:    sl.ID.String(),
			UserID:         sl.UserID,
			OccurredAt:     sl.CompletedAt,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, StockMovementResponse{
			MovementID:     movement.ID,
			ProductID:      level.ProductID,
			MovementType:   string(movement.MovementType),
			QuantityChange: movement.QuantityChange,
			BalanceAfter:   movement.BalanceAfter,
		})
	}
	return out, nil
}

func (s *CheckoutService) recordCheckout(ctx context.Context, sl *sale.Sale) {
	if s.metrics == nil {
		return
	}
	reconciled, err := sl.Reconciled()
	if err != nil {
		return
	}
	byMethod := make(map[string]decimal.Decimal, len(reconciled.ByMethod))
	for method, amount := range reconciled.ByMethod {
		byMethod[string(method)] = amount.Amount()
	}
	s.metrics.RecordCheckout(ctx, sl.TenantID, string(sl.Kind), byMethod)
}
