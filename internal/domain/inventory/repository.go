package inventory

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// StockLevelRepository defines the interface for stock level persistence
type StockLevelRepository interface {
	// Find returns the stock level for a pair without locking it
	Find(ctx context.Context, key StockKey) (*StockLevel, error)

	// FindForUpdate returns the stock level for a pair and holds a row lock
	// (SELECT ... FOR UPDATE) until the enclosing transaction ends
	FindForUpdate(ctx context.Context, key StockKey) (*StockLevel, error)

	// GetOrCreateForUpdate returns the locked stock level for a pair, creating it
	// with quantity 0 first if it does not exist yet
	GetOrCreateForUpdate(ctx context.Context, key StockKey) (*StockLevel, error)

	// Save updates the quantity and version of an existing stock level
	Save(ctx context.Context, level *StockLevel) error

	// ListPairs returns every stored product-location pair of a tenant
	ListPairs(ctx context.Context, tenantID uuid.UUID) ([]StockKey, error)
}

// MovementRepository defines the interface for the append-only movement log.
// There is intentionally no update or delete.
type MovementRepository interface {
	// Create appends a movement
	Create(ctx context.Context, movement *InventoryMovement) error

	// SumQuantity returns the sum of all quantity changes recorded for a pair
	SumQuantity(ctx context.Context, key StockKey) (int64, error)

	// ListByPair returns the movements of a pair, oldest first
	ListByPair(ctx context.Context, key StockKey, filter shared.Filter) ([]InventoryMovement, error)
}
