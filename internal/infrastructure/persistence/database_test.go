package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/internal/infrastructure/persistence/tenant"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSQLite(t *testing.T, tracing telemetry.DBTracingConfig) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "ledger.db"),
	}, Options{Logger: zap.NewNop(), LogLevel: "silent", Tracing: tracing})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDatabase_SQLite(t *testing.T) {
	db := openSQLite(t, telemetry.DBTracingConfig{})
	require.NoError(t, db.AutoMigrate())
	require.NoError(t, db.Ping())

	for _, model := range models.All() {
		assert.True(t, db.DB.Migrator().HasTable(model), "missing table for %T", model)
	}
	assert.True(t, db.DB.Migrator().HasIndex(&models.StockLevelModel{}, "idx_stock_levels_pair"))

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestNewDatabase_RegistersTenantGuard(t *testing.T) {
	db := openSQLite(t, telemetry.DBTracingConfig{})
	require.NoError(t, db.AutoMigrate())

	var rows []models.StockLevelModel
	err := db.DB.Find(&rows).Error
	assert.ErrorIs(t, err, tenant.ErrTenantConditionMissing)

	repo := NewGormStockLevelRepository(db.DB)
	pairs, err := repo.ListPairs(context.Background(), testutil.TestTenantID())
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestNewDatabase_WithTracing(t *testing.T) {
	db := openSQLite(t, telemetry.DBTracingConfig{Enabled: true})
	require.NoError(t, db.AutoMigrate())

	key := inventory.StockKey{
		TenantID:   testutil.TestTenantID(),
		ProductID:  testutil.NewTestUUID("product-a"),
		LocationID: testutil.NewTestUUID("store-1"),
	}
	_, err := NewGormStockLevelRepository(db.DB).GetOrCreateForUpdate(context.Background(), key)
	assert.NoError(t, err)
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDBSystem(t *testing.T) {
	assert.Equal(t, "sqlite", dbSystem("sqlite"))
	assert.Equal(t, "postgresql", dbSystem("postgres"))
	assert.Equal(t, "postgresql", dbSystem(""))
}
