package sale

import (
	"context"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/sale"
)

// TransactionScope runs a checkout in one database transaction
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the checkout repositories bound to one transaction.
// Stock movements and the sale record commit together.
type TransactionalRepositories interface {
	StockLevelRepo() inventory.StockLevelRepository
	MovementRepo() inventory.MovementRepository
	SaleRepo() sale.SaleRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
type NoOpTransactionScope struct {
	levelRepo    inventory.StockLevelRepository
	movementRepo inventory.MovementRepository
	saleRepo     sale.SaleRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	levelRepo inventory.StockLevelRepository,
	movementRepo inventory.MovementRepository,
	saleRepo sale.SaleRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{levelRepo: levelRepo, movementRepo: movementRepo, saleRepo: saleRepo}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) StockLevelRepo() inventory.StockLevelRepository { return s.levelRepo }
func (s *NoOpTransactionScope) MovementRepo() inventory.MovementRepository     { return s.movementRepo }
func (s *NoOpTransactionScope) SaleRepo() sale.SaleRepository                  { return s.saleRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
