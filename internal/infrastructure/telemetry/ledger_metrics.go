package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome labels a ledger operation result
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// LedgerMetrics records stock ledger, checkout and closure activity.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	logger *zap.Logger

	movementsTotal    *Counter
	insufficientStock *Counter
	divergenceTotal   *Counter
	checkoutTotal     *Counter
	checkoutAmount    *Counter
	closureTotal      *Counter
	stockLevel        *Gauge
	applyDuration     *Histogram
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewLedgerMetrics creates the ledger instruments on cfg.Meter
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{logger: logger}
	var err error

	if lm.movementsTotal, err = NewCounter(cfg.Meter,
		"ledger_stock_movements_total", "Stock movements applied or rejected", "{movements}"); err != nil {
		return nil, err
	}
	if lm.insufficientStock, err = NewCounter(cfg.Meter,
		"ledger_insufficient_stock_total", "Movements rejected by the strict stock policy", "{movements}"); err != nil {
		return nil, err
	}
	if lm.divergenceTotal, err = NewCounter(cfg.Meter,
		"ledger_integrity_divergence_total", "Stock levels that diverged from their movement log", "{pairs}"); err != nil {
		return nil, err
	}
	if lm.checkoutTotal, err = NewCounter(cfg.Meter,
		"ledger_checkout_total", "Completed checkouts", "{sales}"); err != nil {
		return nil, err
	}
	if lm.checkoutAmount, err = NewCounter(cfg.Meter,
		"ledger_payment_amount_total", "Tendered amount per payment method in minor units", "{cents}"); err != nil {
		return nil, err
	}
	if lm.closureTotal, err = NewCounter(cfg.Meter,
		"ledger_shift_closure_total", "Shift closure reports built", "{reports}"); err != nil {
		return nil, err
	}
	if lm.stockLevel, err = NewGauge(cfg.Meter,
		"ledger_stock_level", "Quantity on hand after the last movement", "{units}"); err != nil {
		return nil, err
	}
	if lm.applyDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ledger_apply_movement_duration_seconds",
		Description: "Duration of the apply movement transaction",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordMovement records one apply attempt and, on success, the resulting level
func (lm *LedgerMetrics) RecordMovement(ctx context.Context, tenantID, productID, locationID uuid.UUID, movementType string, outcome Outcome, quantityAfter int64, elapsed time.Duration) {
	if lm == nil {
		return
	}
	lm.movementsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrMovementType.String(movementType),
		AttrOutcome.String(string(outcome)),
	)
	lm.applyDuration.RecordDuration(ctx, elapsed, AttrOutcome.String(string(outcome)))
	if outcome == OutcomeApplied {
		lm.stockLevel.Record(ctx, quantityAfter,
			AttrTenantID.String(tenantID.String()),
			AttrProductID.String(productID.String()),
			AttrLocationID.String(locationID.String()),
		)
	}
}

// RecordInsufficientStock counts a movement rejected by the strict policy
func (lm *LedgerMetrics) RecordInsufficientStock(ctx context.Context, tenantID uuid.UUID, movementType string) {
	if lm == nil {
		return
	}
	lm.insufficientStock.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrMovementType.String(movementType),
	)
}

// RecordDivergence counts a stock level found diverging from its replay
func (lm *LedgerMetrics) RecordDivergence(ctx context.Context, tenantID uuid.UUID) {
	if lm == nil {
		return
	}
	lm.divergenceTotal.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordCheckout records a completed sale and its tendered amount per method
func (lm *LedgerMetrics) RecordCheckout(ctx context.Context, tenantID uuid.UUID, kind string, byMethod map[string]decimal.Decimal) {
	if lm == nil {
		return
	}
	lm.checkoutTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrSaleKind.String(kind),
	)
	for method, amount := range byMethod {
		cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
		lm.checkoutAmount.Add(ctx, cents,
			AttrTenantID.String(tenantID.String()),
			AttrPaymentMethod.String(method),
		)
	}
}

// RecordClosure counts a built closure report
func (lm *LedgerMetrics) RecordClosure(ctx context.Context, tenantID, accountID uuid.UUID) {
	if lm == nil {
		return
	}
	lm.closureTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrAccountID.String(accountID.String()),
	)
}
