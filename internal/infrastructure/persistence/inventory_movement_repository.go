package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMovementRepository implements MovementRepository using GORM.
// The movement log is append-only: there is no update or delete path.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create appends a movement
func (r *GormMovementRepository) Create(ctx context.Context, movement *inventory.InventoryMovement) error {
	model := models.InventoryMovementModelFromDomain(movement)
	model.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(model).Error
}

// SumQuantity returns the sum of all quantity changes recorded for a pair
func (r *GormMovementRepository) SumQuantity(ctx context.Context, key inventory.StockKey) (int64, error) {
	var total int64
	if err := pairQuery(r.db.WithContext(ctx).Model(&models.InventoryMovementModel{}), key).
		Select("COALESCE(SUM(quantity_change), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListByPair returns the movements of a pair, oldest first
func (r *GormMovementRepository) ListByPair(ctx context.Context, key inventory.StockKey, filter shared.Filter) ([]inventory.InventoryMovement, error) {
	var rows []models.InventoryMovementModel
	query := pairQuery(r.db.WithContext(ctx), key).Order("occurred_at ASC, created_at ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.InventoryMovement, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
