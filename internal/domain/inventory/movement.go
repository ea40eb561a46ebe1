package inventory

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementType represents why a stock quantity changed
type MovementType string

const (
	// MovementTypeSale represents goods leaving with a sale (negative change)
	MovementTypeSale MovementType = "SALE"
	// MovementTypePurchase represents goods received from a supplier (positive change)
	MovementTypePurchase MovementType = "PURCHASE"
	// MovementTypeTransferIn represents goods arriving from another location (positive change)
	MovementTypeTransferIn MovementType = "TRANSFER_IN"
	// MovementTypeTransferOut represents goods sent to another location (negative change)
	MovementTypeTransferOut MovementType = "TRANSFER_OUT"
	// MovementTypeAdjustment represents a manual correction in either direction
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
	// MovementTypeReturn represents goods coming back from a customer (positive change)
	MovementTypeReturn MovementType = "RETURN"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeSale,
		MovementTypePurchase,
		MovementTypeTransferIn,
		MovementTypeTransferOut,
		MovementTypeAdjustment,
		MovementTypeReturn:
		return true
	}
	return false
}

// IsIncrease returns true if this movement type must add stock
func (t MovementType) IsIncrease() bool {
	switch t {
	case MovementTypePurchase, MovementTypeTransferIn, MovementTypeReturn:
		return true
	}
	return false
}

// IsDecrease returns true if this movement type must remove stock
func (t MovementType) IsDecrease() bool {
	return t == MovementTypeSale || t == MovementTypeTransferOut
}

// ValidateChange checks that change has the sign the movement type requires
func (t MovementType) ValidateChange(change int64) error {
	if !t.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidMovementType, fmt.Sprintf("Unknown movement type %q", t))
	}
	switch {
	case change == 0:
		return shared.NewDomainError(shared.CodeInvalidQuantity, "Quantity change cannot be zero")
	case t.IsIncrease() && change < 0:
		return shared.NewDomainError(shared.CodeInvalidQuantity,
			fmt.Sprintf("%s movement requires a positive quantity change, got %d", t, change))
	case t.IsDecrease() && change > 0:
		return shared.NewDomainError(shared.CodeInvalidQuantity,
			fmt.Sprintf("%s movement requires a negative quantity change, got %d", t, change))
	}
	return nil
}

// InventoryMovement is an immutable entry of the append-only movement log.
// Corrections are recorded as new offsetting movements, never as edits.
type InventoryMovement struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ProductID      uuid.UUID
	LocationID     uuid.UUID
	QuantityChange int64
	MovementType   MovementType
	ReferenceID    string
	UserID         uuid.UUID
	Reason         string
	BalanceAfter   int64
	OccurredAt     time.Time
}

// NewInventoryMovement creates a movement for a stock level that has already been
// updated; BalanceAfter is taken from the level
func NewInventoryMovement(level *StockLevel, change int64, movementType MovementType, referenceID string, userID uuid.UUID, occurredAt time.Time) *InventoryMovement {
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return &InventoryMovement{
		ID:             uuid.New(),
		TenantID:       level.TenantID,
		ProductID:      level.ProductID,
		LocationID:     level.LocationID,
		QuantityChange: change,
		MovementType:   movementType,
		ReferenceID:    referenceID,
		UserID:         userID,
		BalanceAfter:   level.Quantity,
		OccurredAt:     occurredAt,
	}
}
