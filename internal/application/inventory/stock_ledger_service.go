package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/validation"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const serviceName = "StockLedgerService"

// StockLedgerService records stock movements and checks stored levels against
// the movement log
type StockLedgerService struct {
	levelRepo    inventory.StockLevelRepository
	movementRepo inventory.MovementRepository
	txScope      TransactionScope
	ledger       *inventory.StockLedger
	logger       *zap.Logger
	metrics      *telemetry.LedgerMetrics
}

// NewStockLedgerService creates a new StockLedgerService.
// levelRepo and movementRepo serve reads outside a transaction; writes go through txScope.
func NewStockLedgerService(
	levelRepo inventory.StockLevelRepository,
	movementRepo inventory.MovementRepository,
	txScope TransactionScope,
	policy inventory.StockPolicy,
	log *zap.Logger,
) *StockLedgerService {
	return &StockLedgerService{
		levelRepo:    levelRepo,
		movementRepo: movementRepo,
		txScope:      txScope,
		ledger:       inventory.NewStockLedger(policy),
		logger:       logger.OrNop(log).Named("stock_ledger"),
	}
}

// SetLedgerMetrics sets the metrics recorder (optional)
func (s *StockLedgerService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// Policy returns the stock policy the service enforces
func (s *StockLedgerService) Policy() inventory.StockPolicy {
	return s.ledger.Policy()
}

func (s *StockLedgerService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

// ApplyMovement applies one movement and appends it to the log in a single
// transaction. The stock row is locked for the duration, so concurrent
// movements on the same pair serialize. INSUFFICIENT_STOCK is returned as is.
func (s *StockLedgerService) ApplyMovement(ctx context.Context, tenantID uuid.UUID, req ApplyMovementRequest) (*StockLevelResponse, error) {
	ctx = logger.WithOperation(logger.WithTenantID(ctx, tenantID.String()), "apply_movement")
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "ApplyMovement",
		"tenant_id", tenantID.String(),
		"product_id", req.ProductID.String(),
		"location_id", req.LocationID.String(),
		"movement_type", req.MovementType,
	)
	defer span.End()
	started := time.Now()

	if err := validation.Struct(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	cmd := inventory.ApplyCommand{
		TenantID:       tenantID,
		ProductID:      req.ProductID,
		LocationID:     req.LocationID,
		QuantityChange: req.QuantityChange,
		MovementType:   inventory.MovementType(req.MovementType),
		ReferenceID:    req.ReferenceID,
		UserID:         req.UserID,
		Reason:         req.Reason,
	}
	if req.OccurredAt != nil {
		cmd.OccurredAt = *req.OccurredAt
	}

	var (
		level    *inventory.StockLevel
		movement *inventory.InventoryMovement
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		level, movement, err = s.ledger.Apply(ctx, repos.StockLevelRepo(), repos.MovementRepo(), cmd)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordFailure(ctx, cmd, err, time.Since(started))
		return nil, err
	}

	s.metrics.RecordMovement(ctx, tenantID, cmd.ProductID, cmd.LocationID, req.MovementType,
		telemetry.OutcomeApplied, level.Quantity, time.Since(started))
	s.log(ctx).Debug("Movement applied",
		zap.String("product_id", cmd.ProductID.String()),
		zap.String("location_id", cmd.LocationID.String()),
		zap.String("movement_type", req.MovementType),
		zap.Int64("quantity_change", cmd.QuantityChange),
		zap.Int64("balance_after", level.Quantity),
	)

	return ToStockLevelResponse(level, movement), nil
}

func (s *StockLedgerService) recordFailure(ctx context.Context, cmd inventory.ApplyCommand, err error, elapsed time.Duration) {
	outcome := telemetry.OutcomeFailed
	if shared.ErrorCode(err) != "" {
		outcome = telemetry.OutcomeRejected
	}
	s.metrics.RecordMovement(ctx, cmd.TenantID, cmd.ProductID, cmd.LocationID, string(cmd.MovementType), outcome, 0, elapsed)

	fields := []zap.Field{
		zap.String("product_id", cmd.ProductID.String()),
		zap.String("location_id", cmd.LocationID.String()),
		zap.String("movement_type", string(cmd.MovementType)),
		zap.Int64("quantity_change", cmd.QuantityChange),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, shared.ErrInsufficientStock):
		s.metrics.RecordInsufficientStock(ctx, cmd.TenantID, string(cmd.MovementType))
		s.log(ctx).Info("Movement rejected: insufficient stock", fields...)
	case outcome == telemetry.OutcomeRejected:
		s.log(ctx).Info("Movement rejected", fields...)
	default:
		s.log(ctx).Error("Movement failed", fields...)
	}
}

// ReplayBalance returns the sum of every movement recorded for a pair
func (s *StockLedgerService) ReplayBalance(ctx context.Context, tenantID, productID, locationID uuid.UUID) (int64, error) {
	key, err := stockKey(tenantID, productID, locationID)
	if err != nil {
		return 0, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "ReplayBalance", "tenant_id", tenantID.String())
	defer span.End()

	total, err := s.movementRepo.SumQuantity(ctx, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("replay balance %s: %w", key, err)
	}
	return total, nil
}

// VerifyBalance compares the stored level of a pair with the replay of its
// movements. The level row is locked while both are read so an in-flight
// movement cannot produce a false divergence. A divergence is returned as
// *inventory.DivergenceError alongside the report; nothing is repaired.
func (s *StockLedgerService) VerifyBalance(ctx context.Context, tenantID, productID, locationID uuid.UUID) (*IntegrityReport, error) {
	key, err := stockKey(tenantID, productID, locationID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithOperation(logger.WithTenantID(ctx, tenantID.String()), "verify_balance")
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "VerifyBalance",
		"tenant_id", tenantID.String(),
		"product_id", productID.String(),
		"location_id", locationID.String(),
	)
	defer span.End()

	var stored, replayed int64
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		stored, replayed, err = readPair(ctx, repos, key)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := newIntegrityReport(key, stored, replayed, time.Now())
	if err := inventory.CheckReplay(key, stored, replayed); err != nil {
		s.metrics.RecordDivergence(ctx, tenantID)
		telemetry.RecordError(span, err)
		s.log(ctx).Warn("Stock level diverges from movement log",
			zap.String("product_id", productID.String()),
			zap.String("location_id", locationID.String()),
			zap.Int64("stored", stored),
			zap.Int64("replayed", replayed),
		)
		return &report, err
	}
	return &report, nil
}

// RepairBalance appends an ADJUSTMENT of stored minus replayed so that the
// movement log replays to the stored level again. The stored level is the
// value the business has been operating on and is left unchanged. A
// consistent pair yields a result without an adjustment.
func (s *StockLedgerService) RepairBalance(ctx context.Context, tenantID uuid.UUID, req RepairBalanceRequest) (*RepairResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	key, err := stockKey(tenantID, req.ProductID, req.LocationID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithOperation(logger.WithTenantID(ctx, tenantID.String()), "repair_balance")
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "RepairBalance",
		"tenant_id", tenantID.String(),
		"product_id", req.ProductID.String(),
		"location_id", req.LocationID.String(),
	)
	defer span.End()

	result := &RepairResult{}
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		level, err := repos.StockLevelRepo().FindForUpdate(ctx, key)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if level == nil {
			// Movements without a level row: the offset brings the log back to zero
			if level, err = inventory.NewStockLevel(key.TenantID, key.ProductID, key.LocationID); err != nil {
				return err
			}
		}
		replayed, err := repos.MovementRepo().SumQuantity(ctx, key)
		if err != nil {
			return err
		}

		result.Before = newIntegrityReport(key, level.Quantity, replayed, time.Now())
		if result.Before.Consistent {
			return nil
		}

		adjustment := inventory.NewInventoryMovement(level, result.Before.Delta, inventory.MovementTypeAdjustment,
			"integrity-repair", req.UserID, time.Now())
		adjustment.Reason = req.Reason
		if err := repos.MovementRepo().Create(ctx, adjustment); err != nil {
			return err
		}
		result.Adjustment = ToMovementResponse(adjustment)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.Adjustment != nil {
		s.log(ctx).Warn("Movement log repaired with offsetting adjustment",
			zap.String("product_id", req.ProductID.String()),
			zap.String("location_id", req.LocationID.String()),
			zap.Int64("stored", result.Before.Stored),
			zap.Int64("replayed", result.Before.Replayed),
			zap.Int64("adjustment", result.Before.Delta),
			zap.String("user_id", req.UserID.String()),
			zap.String("reason", req.Reason),
		)
	}
	return result, nil
}

// SweepIntegrity verifies every stored pair of a tenant and returns the
// divergent ones. Divergence does not stop the sweep; other errors do.
func (s *StockLedgerService) SweepIntegrity(ctx context.Context, tenantID uuid.UUID) (*SweepReport, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Tenant ID cannot be empty")
	}
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "SweepIntegrity", "tenant_id", tenantID.String())
	defer span.End()

	pairs, err := s.levelRepo.ListPairs(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list stock pairs: %w", err)
	}

	report := &SweepReport{TenantID: tenantID, Divergent: []IntegrityReport{}}
	for _, key := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		pair, err := s.VerifyBalance(ctx, key.TenantID, key.ProductID, key.LocationID)
		report.Checked++

		var divergence *inventory.DivergenceError
		switch {
		case errors.As(err, &divergence):
			report.Divergent = append(report.Divergent, *pair)
		case err != nil:
			telemetry.RecordError(span, err)
			return report, err
		}
	}

	s.log(logger.WithTenantID(ctx, tenantID.String())).Info("Integrity sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("divergent", len(report.Divergent)),
	)
	return report, nil
}

// readPair reads the locked stored quantity (0 when the pair has no row) and the replayed sum
func readPair(ctx context.Context, repos TransactionalRepositories, key inventory.StockKey) (stored, replayed int64, err error) {
	level, err := repos.StockLevelRepo().FindForUpdate(ctx, key)
	switch {
	case errors.Is(err, shared.ErrNotFound):
	case err != nil:
		return 0, 0, err
	default:
		stored = level.Quantity
	}

	replayed, err = repos.MovementRepo().SumQuantity(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return stored, replayed, nil
}

func stockKey(tenantID, productID, locationID uuid.UUID) (inventory.StockKey, error) {
	if _, err := inventory.NewStockLevel(tenantID, productID, locationID); err != nil {
		return inventory.StockKey{}, err
	}
	return inventory.StockKey{TenantID: tenantID, ProductID: productID, LocationID: locationID}, nil
}
