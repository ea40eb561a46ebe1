package inventory

import (
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/google/uuid"
)

// ApplyMovementRequest records one stock movement
type ApplyMovementRequest struct {
	ProductID      uuid.UUID  `json:"product_id" validate:"required"`
	LocationID     uuid.UUID  `json:"location_id" validate:"required"`
	QuantityChange int64      `json:"quantity_change"`
	MovementType   string     `json:"movement_type" validate:"required"`
	ReferenceID    string     `json:"reference_id" validate:"max=100"`
	UserID         uuid.UUID  `json:"user_id"`
	Reason         string     `json:"reason" validate:"max=255"`
	OccurredAt     *time.Time `json:"occurred_at"`
}

// RepairBalanceRequest asks for an offsetting ADJUSTMENT on a divergent pair
type RepairBalanceRequest struct {
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	UserID     uuid.UUID `json:"user_id" validate:"required"`
	Reason     string    `json:"reason" validate:"required,max=255"`
}

// StockLevelResponse is the stock level after a movement
type StockLevelResponse struct {
	TenantID   uuid.UUID         `json:"tenant_id"`
	ProductID  uuid.UUID         `json:"product_id"`
	LocationID uuid.UUID         `json:"location_id"`
	Quantity   int64             `json:"quantity"`
	Version    int               `json:"version"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Movement   *MovementResponse `json:"movement,omitempty"`
}

// MovementResponse represents one movement log entry
type MovementResponse struct {
	ID             uuid.UUID `json:"id"`
	QuantityChange int64     `json:"quantity_change"`
	MovementType   string    `json:"movement_type"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	UserID         uuid.UUID `json:"user_id"`
	Reason         string    `json:"reason,omitempty"`
	BalanceAfter   int64     `json:"balance_after"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// IntegrityReport compares a stored level with the replay of its movements
type IntegrityReport struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	ProductID  uuid.UUID `json:"product_id"`
	LocationID uuid.UUID `json:"location_id"`
	Stored     int64     `json:"stored"`
	Replayed   int64     `json:"replayed"`
	Delta      int64     `json:"delta"`
	Consistent bool      `json:"consistent"`
	CheckedAt  time.Time `json:"checked_at"`
}

// RepairResult reports what RepairBalance did
type RepairResult struct {
	Before     IntegrityReport   `json:"before"`
	Adjustment *MovementResponse `json:"adjustment,omitempty"`
}

// SweepReport lists the divergent pairs found for a tenant
type SweepReport struct {
	TenantID  uuid.UUID         `json:"tenant_id"`
	Checked   int               `json:"checked"`
	Divergent []IntegrityReport `json:"divergent"`
}

// ToStockLevelResponse converts a domain level (and optionally its movement)
func ToStockLevelResponse(level *inventory.StockLevel, movement *inventory.InventoryMovement) *StockLevelResponse {
	resp := &StockLevelResponse{
		TenantID:   level.TenantID,
		ProductID:  level.ProductID,
		LocationID: level.LocationID,
		Quantity:   level.Quantity,
		Version:    level.Version,
		UpdatedAt:  level.UpdatedAt,
	}
	if movement != nil {
		resp.Movement = ToMovementResponse(movement)
	}
	return resp
}

// ToMovementResponse converts a domain movement
func ToMovementResponse(m *inventory.InventoryMovement) *MovementResponse {
	return &MovementResponse{
		ID:             m.ID,
		QuantityChange: m.QuantityChange,
		MovementType:   string(m.MovementType),
		ReferenceID:    m.ReferenceID,
		UserID:         m.UserID,
		Reason:         m.Reason,
		BalanceAfter:   m.BalanceAfter,
		OccurredAt:     m.OccurredAt,
	}
}

func newIntegrityReport(key inventory.StockKey, stored, replayed int64, at time.Time) IntegrityReport {
	return IntegrityReport{
		TenantID:   key.TenantID,
		ProductID:  key.ProductID,
		LocationID: key.LocationID,
		Stored:     stored,
		Replayed:   replayed,
		Delta:      stored - replayed,
		Consistent: stored == replayed,
		CheckedAt:  at,
	}
}
