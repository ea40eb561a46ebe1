package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSaleRepository implements SaleRepository using GORM
type GormSaleRepository struct {
	db       *gorm.DB
	moneyCtx valueobject.MoneyContext
}

// NewGormSaleRepository creates a new GormSaleRepository. Stored amounts are
// read back with moneyCtx.
func NewGormSaleRepository(db *gorm.DB, moneyCtx valueobject.MoneyContext) *GormSaleRepository {
	return &GormSaleRepository{db: db, moneyCtx: moneyCtx}
}

// Create persists a sale with its lines and payment entries
func (r *GormSaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	return r.db.WithContext(ctx).Create(models.SaleModelFromDomain(s)).Error
}

func preloadSale(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByIDForTenant finds a sale by ID within a tenant
func (r *GormSaleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*sale.Sale, error) {
	var model models.SaleModel
	if err := preloadSale(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(r.moneyCtx), nil
}

// FindAllForTenant lists a page of a tenant's sales
func (r *GormSaleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]sale.Sale, error) {
	var rows []models.SaleModel
	query := applyPage(
		preloadSale(r.db.WithContext(ctx)).Where("tenant_id = ?", tenantID),
		filter, SaleSortFields, "completed_at",
	)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]sale.Sale, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain(r.moneyCtx))
	}
	return out, nil
}

var _ sale.SaleRepository = (*GormSaleRepository)(nil)
