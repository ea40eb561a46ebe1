package sale

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// Create persists a completed sale with its lines and payment entries.
	// Payment entry order is preserved.
	Create(ctx context.Context, s *Sale) error

	// FindByIDForTenant finds a sale by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error)

	// FindAllForTenant lists sales for a tenant, newest first by default
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Sale, error)
}
