package cashier

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// LineCategory groups closure report lines
type LineCategory string

const (
	LineCategoryCashSale LineCategory = "CASH_SALE"
	LineCategoryIncome   LineCategory = "INCOME"
	LineCategoryExpense  LineCategory = "EXPENSE"
)

// CashSale is the cash portion of one sale at the account's location.
// Amount is negative for cash refunded on a credit note.
type CashSale struct {
	SaleID      uuid.UUID
	Amount      valueobject.Money
	CompletedAt time.Time
	Detail      string
}

// ClosureLine is one itemized transaction of a closure report
type ClosureLine struct {
	ID         uuid.UUID         `json:"id"`
	Category   LineCategory      `json:"category"`
	Amount     valueobject.Money `json:"amount"`
	OccurredAt time.Time         `json:"occurred_at"`
	Detail     string            `json:"detail"`
}

// ClosureReport is the derived balance of a cash account over one window
type ClosureReport struct {
	TenantID       uuid.UUID         `json:"tenant_id"`
	AccountID      uuid.UUID         `json:"account_id"`
	AccountName    string            `json:"account_name"`
	LocationID     uuid.UUID         `json:"location_id"`
	WindowStart    time.Time         `json:"window_start"`
	WindowEnd      time.Time         `json:"window_end"`
	OpeningBalance valueobject.Money `json:"opening_balance"`
	CashSalesTotal valueobject.Money `json:"cash_sales_total"`
	IncomesTotal   valueobject.Money `json:"incomes_total"`
	ExpensesTotal  valueobject.Money `json:"expenses_total"`
	FinalBalance   valueobject.Money `json:"final_balance"`
	CashSales      []ClosureLine     `json:"cash_sales"`
	Incomes        []ClosureLine     `json:"incomes"`
	Expenses       []ClosureLine     `json:"expenses"`

	CountedCash *valueobject.Money `json:"counted_cash,omitempty"`
	Discrepancy *valueobject.Money `json:"discrepancy,omitempty"`
}

// OpeningBalance derives the balance at the start of a window from the account's
// initial float and all activity before the window
func OpeningBalance(account *CashAccount, priorCashSales, priorIncomes, priorExpenses valueobject.Money) valueobject.Money {
	return account.InitialBalance.Add(priorCashSales).Add(priorIncomes).Sub(priorExpenses)
}

// BuildClosureReport folds a window's transactions into a closure report:
// final = opening + cash sales + incomes - expenses.
// Entries outside the window or belonging to another account are ignored.
// Lines are ordered by (time, id) so equal inputs always give equal reports.
func BuildClosureReport(
	account *CashAccount,
	window shared.Window,
	opening valueobject.Money,
	cashSales []CashSale,
	incomes []ManualIncome,
	expenses []Expense,
) *ClosureReport {
	ctx := opening.Context()
	report := &ClosureReport{
		TenantID:       account.TenantID,
		AccountID:      account.ID,
		AccountName:    account.Name,
		LocationID:     account.LocationID,
		WindowStart:    window.Start,
		WindowEnd:      window.End,
		OpeningBalance: opening,
		CashSalesTotal: ctx.Zero(),
		IncomesTotal:   ctx.Zero(),
		ExpensesTotal:  ctx.Zero(),
		CashSales:      make([]ClosureLine, 0, len(cashSales)),
		Incomes:        make([]ClosureLine, 0, len(incomes)),
		Expenses:       make([]ClosureLine, 0, len(expenses)),
	}

	for _, s := range cashSales {
		if !window.Contains(s.CompletedAt) {
			continue
		}
		report.CashSalesTotal = report.CashSalesTotal.Add(s.Amount)
		report.CashSales = append(report.CashSales, ClosureLine{
			ID: s.SaleID, Category: LineCategoryCashSale, Amount: s.Amount, OccurredAt: s.CompletedAt, Detail: s.Detail,
		})
	}

	for _, in := range incomes {
		if in.AccountID != account.ID || !window.Contains(in.ReceivedAt) {
			continue
		}
		report.IncomesTotal = report.IncomesTotal.Add(in.Amount)
		report.Incomes = append(report.Incomes, ClosureLine{
			ID: in.ID, Category: LineCategoryIncome, Amount: in.Amount, OccurredAt: in.ReceivedAt, Detail: in.Description,
		})
	}

	for _, ex := range expenses {
		if ex.AccountID != account.ID || !window.Contains(ex.PaidAt) {
			continue
		}
		report.ExpensesTotal = report.ExpensesTotal.Add(ex.Amount)
		report.Expenses = append(report.Expenses, ClosureLine{
			ID: ex.ID, Category: LineCategoryExpense, Amount: ex.Amount, OccurredAt: ex.PaidAt, Detail: expenseDetail(ex),
		})
	}

	sortLines(report.CashSales)
	sortLines(report.Incomes)
	sortLines(report.Expenses)

	report.FinalBalance = opening.
		Add(report.CashSalesTotal).
		Add(report.IncomesTotal).
		Sub(report.ExpensesTotal)

	return report
}

// WithCountedCash returns a copy of the report carrying the physically counted
// cash and its discrepancy (counted - final). A negative discrepancy is a shortage.
func (r *ClosureReport) WithCountedCash(counted valueobject.Money) *ClosureReport {
	out := *r
	discrepancy := counted.Sub(r.FinalBalance)
	out.CountedCash = &counted
	out.Discrepancy = &discrepancy
	return &out
}

// Lines returns every line of the report, ordered by (time, id)
func (r *ClosureReport) Lines() []ClosureLine {
	all := make([]ClosureLine, 0, len(r.CashSales)+len(r.Incomes)+len(r.Expenses))
	all = append(all, r.CashSales...)
	all = append(all, r.Incomes...)
	all = append(all, r.Expenses...)
	sortLines(all)
	return all
}

func expenseDetail(ex Expense) string {
	switch {
	case ex.Category == "":
		return ex.Description
	case ex.Description == "":
		return ex.Category
	}
	return fmt.Sprintf("%s: %s", ex.Category, ex.Description)
}

func sortLines(lines []ClosureLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].OccurredAt.Equal(lines[j].OccurredAt) {
			return lines[i].OccurredAt.Before(lines[j].OccurredAt)
		}
		return bytes.Compare(lines[i].ID[:], lines[j].ID[:]) < 0
	})
}
