package cashier

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/cashier"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShiftClosureService computes closure reports for cash accounts.
// Closing is read-only: it never marks or consumes sales, incomes or
// expenses, so closing the same window twice gives the same report.
type ShiftClosureService struct {
	scope    SnapshotScope
	moneyCtx valueobject.MoneyContext
	now      func() time.Time
	logger   *zap.Logger
	metrics  *telemetry.LedgerMetrics
}

// NewShiftClosureService creates a new ShiftClosureService
func NewShiftClosureService(scope SnapshotScope, moneyCtx valueobject.MoneyContext, log *zap.Logger) *ShiftClosureService {
	return &ShiftClosureService{
		scope:    scope,
		moneyCtx: moneyCtx,
		now:      time.Now,
		logger:   logger.OrNop(log).Named("shift_closure"),
	}
}

// SetLedgerMetrics sets the metrics recorder (optional)
func (s *ShiftClosureService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// CloseShift builds the closure report of an account for [start, end).
// The opening balance is the account's initial float plus all activity
// before start. Every read happens in one snapshot.
func (s *ShiftClosureService) CloseShift(ctx context.Context, tenantID, accountID uuid.UUID, start, end time.Time) (*cashier.ClosureReport, error) {
	window, err := shared.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithOperation(logger.WithTenantID(ctx, tenantID.String()), "close_shift")
	ctx, span := telemetry.StartServiceSpan(ctx, "ShiftClosureService", "CloseShift",
		"tenant_id", tenantID.String(),
		"account_id", accountID.String(),
	)
	defer span.End()

	var report *cashier.ClosureReport
	err = s.scope.Execute(ctx, func(repos ClosureRepositories) error {
		var err error
		report, err = s.buildReport(ctx, repos, tenantID, accountID, window)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordClosure(ctx, tenantID, accountID)
	logger.WithLogger(ctx, s.logger).Info("Shift closed",
		zap.String("account_id", accountID.String()),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.String("opening_balance", report.OpeningBalance.String()),
		zap.String("final_balance", report.FinalBalance.String()),
	)
	return report, nil
}

// CloseShiftByID builds the closure report for a recorded shift. An open
// shift is reported up to now.
func (s *ShiftClosureService) CloseShiftByID(ctx context.Context, tenantID, shiftID uuid.UUID) (*cashier.ClosureReport, error) {
	var (
		accountID uuid.UUID
		window    shared.Window
	)
	err := s.scope.Execute(ctx, func(repos ClosureRepositories) error {
		shift, err := repos.ShiftRepo().FindByIDForTenant(ctx, tenantID, shiftID)
		if err != nil {
			return err
		}
		accountID = shift.AccountID
		window, err = shift.Window(s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.CloseShift(ctx, tenantID, accountID, window.Start, window.End)
}

func (s *ShiftClosureService) buildReport(ctx context.Context, repos ClosureRepositories, tenantID, accountID uuid.UUID, window shared.Window) (*cashier.ClosureReport, error) {
	account, err := repos.AccountRepo().FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	priorSales, err := repos.CashSaleReader().SumCashSalesBefore(ctx, tenantID, account.LocationID, window.Start)
	if err != nil {
		return nil, fmt.Errorf("sum prior cash sales: %w", err)
	}
	priorIncomes, err := repos.IncomeRepo().SumBefore(ctx, tenantID, accountID, window.Start)
	if err != nil {
		return nil, fmt.Errorf("sum prior incomes: %w", err)
	}
	priorExpenses, err := repos.ExpenseRepo().SumBefore(ctx, tenantID, accountID, window.Start)
	if err != nil {
		return nil, fmt.Errorf("sum prior expenses: %w", err)
	}
	opening := cashier.OpeningBalance(account,
		s.moneyCtx.FromDecimal(priorSales),
		s.moneyCtx.FromDecimal(priorIncomes),
		s.moneyCtx.FromDecimal(priorExpenses),
	)

	cashSales, err := repos.CashSaleReader().ListCashSales(ctx, tenantID, account.LocationID, window)
	if err != nil {
		return nil, fmt.Errorf("list cash sales: %w", err)
	}
	incomes, err := repos.IncomeRepo().ListInWindow(ctx, tenantID, accountID, window)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	expenses, err := repos.ExpenseRepo().ListInWindow(ctx, tenantID, accountID, window)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return cashier.BuildClosureReport(account, window, opening, cashSales, incomes, expenses), nil
}
