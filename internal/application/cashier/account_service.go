package cashier

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/application/validation"
	"github.com/erp/ledger/internal/domain/cashier"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CashAccountService records the inputs of a closure: accounts, manual
// incomes, expenses and shifts
type CashAccountService struct {
	accountRepo cashier.CashAccountRepository
	incomeRepo  cashier.IncomeRepository
	expenseRepo cashier.ExpenseRepository
	shiftRepo   cashier.ShiftRepository
	moneyCtx    valueobject.MoneyContext
	logger      *zap.Logger
}

// NewCashAccountService creates a new CashAccountService
func NewCashAccountService(
	accountRepo cashier.CashAccountRepository,
	incomeRepo cashier.IncomeRepository,
	expenseRepo cashier.ExpenseRepository,
	shiftRepo cashier.ShiftRepository,
	moneyCtx valueobject.MoneyContext,
	log *zap.Logger,
) *CashAccountService {
	return &CashAccountService{
		accountRepo: accountRepo,
		incomeRepo:  incomeRepo,
		expenseRepo: expenseRepo,
		shiftRepo:   shiftRepo,
		moneyCtx:    moneyCtx,
		logger:      logger.OrNop(log).Named("cash_account"),
	}
}

// CreateAccount opens a cash account
func (s *CashAccountService) CreateAccount(ctx context.Context, tenantID uuid.UUID, req CreateAccountRequest) (*AccountResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	initial := s.moneyCtx.Zero()
	if req.InitialBalance != "" {
		var err error
		if initial, err = s.moneyCtx.Parse(req.InitialBalance); err != nil {
			return nil, err
		}
	}

	account, err := cashier.NewCashAccount(tenantID, req.LocationID, req.Name, initial)
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	return ToAccountResponse(account), nil
}

// GetAccount returns a cash account
func (s *CashAccountService) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	return ToAccountResponse(account), nil
}

// RecordIncome records cash put into an account
func (s *CashAccountService) RecordIncome(ctx context.Context, tenantID uuid.UUID, req RecordIncomeRequest) (*EntryResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	amount, err := s.moneyCtx.Parse(req.Amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, req.AccountID); err != nil {
		return nil, err
	}

	income, err := cashier.NewManualIncome(tenantID, req.AccountID, amount, req.Description, derefTime(req.ReceivedAt), req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.incomeRepo.Create(ctx, income); err != nil {
		return nil, err
	}
	return &EntryResponse{
		ID:         income.ID,
		AccountID:  income.AccountID,
		Category:   string(cashier.LineCategoryIncome),
		Amount:     income.Amount,
		OccurredAt: income.ReceivedAt,
	}, nil
}

// RecordExpense records cash paid out of an account
func (s *CashAccountService) RecordExpense(ctx context.Context, tenantID uuid.UUID, req RecordExpenseRequest) (*EntryResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	amount, err := s.moneyCtx.Parse(req.Amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, req.AccountID); err != nil {
		return nil, err
	}

	expense, err := cashier.NewExpense(tenantID, req.AccountID, amount, req.Category, req.Description, derefTime(req.PaidAt), req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		return nil, err
	}
	return &EntryResponse{
		ID:         expense.ID,
		AccountID:  expense.AccountID,
		Category:   string(cashier.LineCategoryExpense),
		Amount:     expense.Amount,
		OccurredAt: expense.PaidAt,
	}, nil
}

// OpenShift starts a shift. An account has at most one open shift.
func (s *CashAccountService) OpenShift(ctx context.Context, tenantID uuid.UUID, req OpenShiftRequest) (*ShiftResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, req.AccountID); err != nil {
		return nil, err
	}
	open, err := s.shiftRepo.FindOpenByAccount(ctx, tenantID, req.AccountID)
	switch {
	case err == nil:
		return nil, shared.NewDomainError("SHIFT_ALREADY_OPEN", "Account already has an open shift "+open.ID.String())
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	shift, err := cashier.OpenShift(tenantID, req.AccountID, req.UserID, derefTime(req.StartTime))
	if err != nil {
		return nil, err
	}
	if err := s.shiftRepo.Create(ctx, shift); err != nil {
		return nil, err
	}
	logger.WithLogger(ctx, s.logger).Info("Shift opened",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", req.AccountID.String()),
		zap.String("shift_id", shift.ID.String()),
	)
	return ToShiftResponse(shift), nil
}

// EndShift sets the end time of an open shift. A zero end means now.
func (s *CashAccountService) EndShift(ctx context.Context, tenantID, shiftID uuid.UUID, end time.Time) (*ShiftResponse, error) {
	shift, err := s.shiftRepo.FindByIDForTenant(ctx, tenantID, shiftID)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = time.Now()
	}
	if err := shift.Close(end); err != nil {
		return nil, err
	}
	if err := s.shiftRepo.Save(ctx, shift); err != nil {
		return nil, err
	}
	return ToShiftResponse(shift), nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
