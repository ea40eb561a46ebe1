package cashier

import (
	"context"

	"github.com/erp/ledger/internal/domain/cashier"
)

// SnapshotScope runs fn in one read-only transaction so every read sees the
// same committed state. On PostgreSQL this is a REPEATABLE READ snapshot.
type SnapshotScope interface {
	Execute(ctx context.Context, fn func(repos ClosureRepositories) error) error
}

// ClosureRepositories provides the repositories a closure reads, bound to one snapshot
type ClosureRepositories interface {
	AccountRepo() cashier.CashAccountRepository
	IncomeRepo() cashier.IncomeRepository
	ExpenseRepo() cashier.ExpenseRepository
	CashSaleReader() cashier.CashSaleReader
	ShiftRepo() cashier.ShiftRepository
}

// NoOpSnapshotScope runs fn against plain repositories without a transaction.
type NoOpSnapshotScope struct {
	accounts cashier.CashAccountRepository
	incomes  cashier.IncomeRepository
	expenses cashier.ExpenseRepository
	sales    cashier.CashSaleReader
	shifts   cashier.ShiftRepository
}

// NewNoOpSnapshotScope creates a NoOpSnapshotScope with the given repositories.
func NewNoOpSnapshotScope(
	accounts cashier.CashAccountRepository,
	incomes cashier.IncomeRepository,
	expenses cashier.ExpenseRepository,
	sales cashier.CashSaleReader,
	shifts cashier.ShiftRepository,
) *NoOpSnapshotScope {
	return &NoOpSnapshotScope{accounts: accounts, incomes: incomes, expenses: expenses, sales: sales, shifts: shifts}
}

// Execute runs the function without a real transaction.
func (s *NoOpSnapshotScope) Execute(_ context.Context, fn func(repos ClosureRepositories) error) error {
	return fn(s)
}

func (s *NoOpSnapshotScope) AccountRepo() cashier.CashAccountRepository { return s.accounts }
func (s *NoOpSnapshotScope) IncomeRepo() cashier.IncomeRepository       { return s.incomes }
func (s *NoOpSnapshotScope) ExpenseRepo() cashier.ExpenseRepository     { return s.expenses }
func (s *NoOpSnapshotScope) CashSaleReader() cashier.CashSaleReader     { return s.sales }
func (s *NoOpSnapshotScope) ShiftRepo() cashier.ShiftRepository         { return s.shifts }

var _ SnapshotScope = (*NoOpSnapshotScope)(nil)
