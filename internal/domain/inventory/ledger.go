package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ApplyCommand describes one stock movement to record
type ApplyCommand struct {
	TenantID       uuid.UUID
	ProductID      uuid.UUID
	LocationID     uuid.UUID
	QuantityChange int64
	MovementType   MovementType
	ReferenceID    string
	UserID         uuid.UUID
	Reason         string
	OccurredAt     time.Time
}

// Key returns the product-location pair the command targets
func (c ApplyCommand) Key() StockKey {
	return StockKey{TenantID: c.TenantID, ProductID: c.ProductID, LocationID: c.LocationID}
}

// StockLedger applies movements to stock levels and records them in the movement log.
//
// The repositories passed to Apply must share one transaction: the level row is
// locked, updated and the movement appended together, so either both writes
// commit or neither does.
type StockLedger struct {
	policy StockPolicy
}

// NewStockLedger creates a ledger enforcing policy. An unknown policy falls back to strict.
func NewStockLedger(policy StockPolicy) *StockLedger {
	if !policy.IsValid() {
		policy = StockPolicyStrict
	}
	return &StockLedger{policy: policy}
}

// Policy returns the stock policy in force
func (l *StockLedger) Policy() StockPolicy {
	return l.policy
}

// Apply locks (or creates) the level, applies the change, saves the level and
// appends the movement
func (l *StockLedger) Apply(ctx context.Context, levels StockLevelRepository, movements MovementRepository, cmd ApplyCommand) (*StockLevel, *InventoryMovement, error) {
	// Reject malformed commands before taking the row lock
	if err := cmd.MovementType.ValidateChange(cmd.QuantityChange); err != nil {
		return nil, nil, err
	}
	if _, err := NewStockLevel(cmd.TenantID, cmd.ProductID, cmd.LocationID); err != nil {
		return nil, nil, err
	}

	level, err := levels.GetOrCreateForUpdate(ctx, cmd.Key())
	if err != nil {
		return nil, nil, err
	}

	if err := level.Apply(cmd.QuantityChange, cmd.MovementType, l.policy); err != nil {
		return nil, nil, err
	}
	if err := levels.Save(ctx, level); err != nil {
		return nil, nil, err
	}

	movement := NewInventoryMovement(level, cmd.QuantityChange, cmd.MovementType, cmd.ReferenceID, cmd.UserID, cmd.OccurredAt)
	movement.Reason = cmd.Reason
	if err := movements.Create(ctx, movement); err != nil {
		return nil, nil, err
	}

	return level, movement, nil
}
