package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = UTC(e.CreatedAt)
	m.UpdatedAt = UTC(e.UpdatedAt)
}

// UTC returns t in UTC. SQLite keeps timestamps as text with their offset and
// compares them as strings, so every stored time and every bound compared
// against one must share a zone.
func UTC(t time.Time) time.Time {
	return t.UTC()
}

// UTCPtr is UTC for optional timestamps
func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// TenantModel provides common persistence fields for tenant-scoped rows.
type TenantModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// ToTenantEntity converts TenantModel to domain TenantEntity
func (m *TenantModel) ToTenantEntity() shared.TenantEntity {
	return shared.TenantEntity{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
	}
}

// FromDomainTenantEntity populates TenantModel from domain TenantEntity
func (m *TenantModel) FromDomainTenantEntity(e shared.TenantEntity) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.TenantID = e.TenantID
}

// All returns every model in migration order
func All() []any {
	return []any{
		&StockLevelModel{},
		&InventoryMovementModel{},
		&SaleModel{},
		&SaleLineModel{},
		&SalePaymentModel{},
		&CashAccountModel{},
		&CashIncomeModel{},
		&CashExpenseModel{},
		&ShiftModel{},
	}
}
