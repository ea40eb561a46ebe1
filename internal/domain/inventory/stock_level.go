package inventory

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// StockLevel is the on-hand quantity of one product at one location.
// The composite identifier is TenantID + ProductID + LocationID.
type StockLevel struct {
	shared.TenantEntity
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Quantity   int64
	Version    int
}

// NewStockLevel creates an empty stock level for a product-location pair
func NewStockLevel(tenantID, productID, locationID uuid.UUID) (*StockLevel, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	return &StockLevel{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ProductID:    productID,
		LocationID:   locationID,
		Version:      1,
	}, nil
}

// Key returns the product-location pair of this level
func (s *StockLevel) Key() StockKey {
	return StockKey{TenantID: s.TenantID, ProductID: s.ProductID, LocationID: s.LocationID}
}

// Apply adds change to the quantity. Under the strict policy a SALE or
// TRANSFER_OUT that would leave the quantity negative fails with
// INSUFFICIENT_STOCK and the level is left untouched.
func (s *StockLevel) Apply(change int64, movementType MovementType, policy StockPolicy) error {
	if err := movementType.ValidateChange(change); err != nil {
		return err
	}

	next := s.Quantity + change
	if next < 0 && policy.guards(movementType) {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: available %d, requested %d", s.Quantity, -change))
	}

	s.Quantity = next
	s.Version++
	s.Touch()
	return nil
}

// StockKey identifies a product at a location within a tenant
type StockKey struct {
	TenantID   uuid.UUID
	ProductID  uuid.UUID
	LocationID uuid.UUID
}

func (k StockKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.TenantID, k.ProductID, k.LocationID)
}
