package inventory

import (
	"context"

	"github.com/erp/ledger/internal/domain/inventory"
)

// TransactionScope provides transactional access to the stock ledger repositories.
// Everything done through the repositories handed to fn commits or rolls back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the ledger repositories bound to one transaction.
//
//   - StockLevelRepo: the locked projection row per (tenant, product, location).
//   - MovementRepo: append-only movement log; the source of truth for replay.
type TransactionalRepositories interface {
	StockLevelRepo() inventory.StockLevelRepository
	MovementRepo() inventory.MovementRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// Used by unit tests with in-memory or mocked repositories.
type NoOpTransactionScope struct {
	levelRepo    inventory.StockLevelRepository
	movementRepo inventory.MovementRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(levelRepo inventory.StockLevelRepository, movementRepo inventory.MovementRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{levelRepo: levelRepo, movementRepo: movementRepo}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// StockLevelRepo returns the stock level repository.
func (s *NoOpTransactionScope) StockLevelRepo() inventory.StockLevelRepository {
	return s.levelRepo
}

// MovementRepo returns the movement repository.
func (s *NoOpTransactionScope) MovementRepo() inventory.MovementRepository {
	return s.movementRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
