package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLevelRepository implements StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

func pairQuery(db *gorm.DB, key inventory.StockKey) *gorm.DB {
	return db.Where("tenant_id = ? AND product_id = ? AND location_id = ?", key.TenantID, key.ProductID, key.LocationID)
}

// Find returns the stock level for a pair without locking it
func (r *GormStockLevelRepository) Find(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	var model models.StockLevelModel
	if err := pairQuery(r.db.WithContext(ctx), key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForUpdate returns the stock level for a pair with a row lock held
// (SELECT ... FOR UPDATE) until the enclosing transaction ends.
// Must be called within a transaction.
func (r *GormStockLevelRepository) FindForUpdate(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	var model models.StockLevelModel
	if err := pairQuery(r.db.WithContext(ctx), key).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetOrCreateForUpdate returns the locked stock level for a pair. A missing
// row is inserted with quantity 0 first; when two transactions race to create
// it, ON CONFLICT DO NOTHING lets the loser fall through to the lock.
func (r *GormStockLevelRepository) GetOrCreateForUpdate(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	level, err := r.FindForUpdate(ctx, key)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	fresh, err := inventory.NewStockLevel(key.TenantID, key.ProductID, key.LocationID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.StockLevelModelFromDomain(fresh)).Error; err != nil {
		return nil, err
	}
	return r.FindForUpdate(ctx, key)
}

// Save updates quantity and version of an existing stock level. The previous
// version must still be stored, so a write that skipped the row lock fails
// instead of overwriting a concurrent change.
func (r *GormStockLevelRepository) Save(ctx context.Context, level *inventory.StockLevel) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", level.TenantID, level.ID, level.Version-1).
		Updates(map[string]any{
			"quantity":   level.Quantity,
			"version":    level.Version,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ListPairs returns every stored product-location pair of a tenant
func (r *GormStockLevelRepository) ListPairs(ctx context.Context, tenantID uuid.UUID) ([]inventory.StockKey, error) {
	var rows []models.StockLevelModel
	if err := r.db.WithContext(ctx).
		Select("product_id", "location_id").
		Where("tenant_id = ?", tenantID).
		Order("product_id, location_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]inventory.StockKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, inventory.StockKey{TenantID: tenantID, ProductID: row.ProductID, LocationID: row.LocationID})
	}
	return keys, nil
}

var _ inventory.StockLevelRepository = (*GormStockLevelRepository)(nil)
