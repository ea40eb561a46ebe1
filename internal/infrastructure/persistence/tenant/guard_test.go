package tenant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ownedRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID uuid.UUID `gorm:"type:uuid;not null"`
	Name     string
}

type sharedRow struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name string
}

func setupGuardDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&ownedRow{}, &sharedRow{}))
	require.NoError(t, NewGuard("").Register(db))
	return db
}

func TestGuard_Query(t *testing.T) {
	db := setupGuardDB(t)
	tenantID := uuid.New()
	row := ownedRow{ID: uuid.New(), TenantID: tenantID, Name: "till"}
	require.NoError(t, db.Create(&row).Error, "inserts are not guarded")

	tests := []struct {
		name    string
		query   func(tx *gorm.DB) error
		wantErr bool
	}{
		{
			name:    "no condition",
			query:   func(tx *gorm.DB) error { var out []ownedRow; return tx.Find(&out).Error },
			wantErr: true,
		},
		{
			name: "id only",
			query: func(tx *gorm.DB) error {
				var out ownedRow
				return tx.Where("id = ?", row.ID).First(&out).Error
			},
			wantErr: true,
		},
		{
			name: "tenant inside OR",
			query: func(tx *gorm.DB) error {
				var out []ownedRow
				return tx.Where("tenant_id = ? OR name = ?", tenantID, "till").Find(&out).Error
			},
			wantErr: true,
		},
		{
			name: "raw string condition",
			query: func(tx *gorm.DB) error {
				var out ownedRow
				return tx.Where("tenant_id = ? AND id = ?", tenantID, row.ID).First(&out).Error
			},
		},
		{
			name: "struct condition",
			query: func(tx *gorm.DB) error {
				var out []ownedRow
				return tx.Where(&ownedRow{TenantID: tenantID}).Find(&out).Error
			},
		},
		{
			name: "map condition",
			query: func(tx *gorm.DB) error {
				var out []ownedRow
				return tx.Where(map[string]any{"tenant_id": tenantID}).Find(&out).Error
			},
		},
		{
			name: "unscoped",
			query: func(tx *gorm.DB) error {
				var out []ownedRow
				return tx.Unscoped().Find(&out).Error
			},
		},
		{
			name: "table without tenant column",
			query: func(tx *gorm.DB) error {
				var out []sharedRow
				return tx.Find(&out).Error
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query(db)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTenantConditionMissing)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGuard_UpdateAndDelete(t *testing.T) {
	db := setupGuardDB(t)
	tenantID := uuid.New()
	row := ownedRow{ID: uuid.New(), TenantID: tenantID, Name: "till"}
	require.NoError(t, db.Create(&row).Error)

	err := db.Model(&ownedRow{}).Where("id = ?", row.ID).Update("name", "moved").Error
	assert.ErrorIs(t, err, ErrTenantConditionMissing)

	err = db.Model(&ownedRow{}).Where("tenant_id = ? AND id = ?", tenantID, row.ID).Update("name", "moved").Error
	assert.NoError(t, err)

	err = db.Where("id = ?", row.ID).Delete(&ownedRow{}).Error
	assert.ErrorIs(t, err, ErrTenantConditionMissing)

	var count int64
	require.NoError(t, db.Model(&ownedRow{}).Where("tenant_id = ?", tenantID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	err = db.Where("tenant_id = ?", tenantID).Delete(&ownedRow{}).Error
	assert.NoError(t, err)
}

func TestGuard_RawSQLPassesThrough(t *testing.T) {
	db := setupGuardDB(t)
	var n int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM owned_rows").Scan(&n).Error)
	assert.Equal(t, int64(0), n)
}
