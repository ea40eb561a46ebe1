package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// StockLevelModel is the persistence model for a product-location stock level.
type StockLevelModel struct {
	BaseModel
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_pair,priority:1"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_pair,priority:2"`
	LocationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_pair,priority:3"`
	Quantity   int64     `gorm:"not null;default:0"`
	Version    int       `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// ToDomain converts the persistence model to a domain StockLevel.
func (m *StockLevelModel) ToDomain() *inventory.StockLevel {
	return &inventory.StockLevel{
		TenantEntity: shared.TenantEntity{
			BaseEntity: m.BaseModel.ToDomain(),
			TenantID:   m.TenantID,
		},
		ProductID:  m.ProductID,
		LocationID: m.LocationID,
		Quantity:   m.Quantity,
		Version:    m.Version,
	}
}

// FromDomain populates the persistence model from a domain StockLevel.
func (m *StockLevelModel) FromDomain(s *inventory.StockLevel) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.TenantID = s.TenantID
	m.ProductID = s.ProductID
	m.LocationID = s.LocationID
	m.Quantity = s.Quantity
	m.Version = s.Version
}

// StockLevelModelFromDomain creates a new persistence model from a domain StockLevel.
func StockLevelModelFromDomain(s *inventory.StockLevel) *StockLevelModel {
	m := &StockLevelModel{}
	m.FromDomain(s)
	return m
}

// InventoryMovementModel is the persistence model for one entry of the
// append-only movement log. Rows are inserted and never updated.
type InventoryMovementModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index:idx_inventory_movements_pair,priority:1"`
	ProductID      uuid.UUID `gorm:"type:uuid;not null;index:idx_inventory_movements_pair,priority:2"`
	LocationID     uuid.UUID `gorm:"type:uuid;not null;index:idx_inventory_movements_pair,priority:3"`
	QuantityChange int64     `gorm:"not null"`
	MovementType   string    `gorm:"type:varchar(20);not null"`
	ReferenceID    string    `gorm:"type:varchar(100);index"`
	UserID         uuid.UUID `gorm:"type:uuid"`
	Reason         string    `gorm:"type:varchar(255)"`
	BalanceAfter   int64     `gorm:"not null"`
	OccurredAt     time.Time `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventoryMovementModel) TableName() string {
	return "inventory_movements"
}

// ToDomain converts the persistence model to a domain InventoryMovement.
func (m *InventoryMovementModel) ToDomain() *inventory.InventoryMovement {
	return &inventory.InventoryMovement{
		ID:             m.ID,
		TenantID:       m.TenantID,
		ProductID:      m.ProductID,
		LocationID:     m.LocationID,
		QuantityChange: m.QuantityChange,
		MovementType:   inventory.MovementType(m.MovementType),
		ReferenceID:    m.ReferenceID,
		UserID:         m.UserID,
		Reason:         m.Reason,
		BalanceAfter:   m.BalanceAfter,
		OccurredAt:     m.OccurredAt,
	}
}

// InventoryMovementModelFromDomain creates a new persistence model from a domain InventoryMovement.
func InventoryMovementModelFromDomain(mv *inventory.InventoryMovement) *InventoryMovementModel {
	return &InventoryMovementModel{
		ID:             mv.ID,
		TenantID:       mv.TenantID,
		ProductID:      mv.ProductID,
		LocationID:     mv.LocationID,
		QuantityChange: mv.QuantityChange,
		MovementType:   string(mv.MovementType),
		ReferenceID:    mv.ReferenceID,
		UserID:         mv.UserID,
		Reason:         mv.Reason,
		BalanceAfter:   mv.BalanceAfter,
		OccurredAt:     UTC(mv.OccurredAt),
	}
}
