package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type harness struct {
	t      *testing.T
	config string
	dbPath string
	tenant string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	config := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[database]
driver = "sqlite"
path = %q

[log]
level = "error"
output = "stderr"
`, dbPath)
	require.NoError(t, os.WriteFile(config, []byte(content), 0o600))
	return &harness{t: t, config: config, dbPath: dbPath, tenant: uuid.NewString()}
}

func (h *harness) run(args ...string) (string, string, int) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", h.config}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// ok runs a command that must succeed and decodes its JSON output
func (h *harness) ok(args ...string) map[string]any {
	h.t.Helper()
	stdout, stderr, code := h.run(args...)
	require.Equal(h.t, exitOK, code, "stderr: %s", stderr)
	var out map[string]any
	require.NoError(h.t, json.Unmarshal([]byte(stdout), &out), stdout)
	return out
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: ledgerctl")

	stderr.Reset()
	assert.Equal(t, exitUsage, run(context.Background(), []string{"frobnicate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "frobnicate"`)
	assert.Empty(t, stdout.String())
}

func TestRun_MissingRequiredFlag(t *testing.T) {
	h := newHarness(t)
	_, stderr, code := h.run("verify", "-tenant", h.tenant)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "is required")
}

func TestRun_ConfigError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "missing.toml"), "verify"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "config:")
}

func TestRun_StockMovementsAndVerify(t *testing.T) {
	h := newHarness(t)
	product, location := uuid.NewString(), uuid.NewString()

	out := h.ok("apply", "-tenant", h.tenant, "-product", product, "-location", location, "-type", "purchase", "-qty", "10")
	assert.Equal(t, float64(10), out["quantity"])

	out = h.ok("apply", "-tenant", h.tenant, "-product", product, "-location", location, "-type", "SALE", "-qty", "-4", "-ref", "S-1")
	assert.Equal(t, float64(6), out["quantity"])
	movement := out["movement"].(map[string]any)
	assert.Equal(t, float64(6), movement["balance_after"])
	assert.Equal(t, "S-1", movement["reference_id"])

	_, stderr, code := h.run("apply", "-tenant", h.tenant, "-product", product, "-location", location, "-type", "SALE", "-qty", "-7")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "INSUFFICIENT_STOCK")

	out = h.ok("verify", "-tenant", h.tenant, "-product", product, "-location", location)
	assert.Equal(t, true, out["consistent"])
	assert.Equal(t, float64(6), out["stored"])
	assert.Equal(t, float64(6), out["replayed"])
}

func TestRun_DivergenceIsReportedAndRepaired(t *testing.T) {
	h := newHarness(t)
	product, location, user := uuid.NewString(), uuid.NewString(), uuid.NewString()
	h.ok("apply", "-tenant", h.tenant, "-product", product, "-location", location, "-type", "PURCHASE", "-qty", "10")

	db, err := gorm.Open(sqlite.Open(h.dbPath), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec("UPDATE stock_levels SET quantity = 7").Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	stdout, _, code := h.run("verify", "-tenant", h.tenant, "-product", product, "-location", location)
	assert.Equal(t, exitDivergence, code)
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, false, report["consistent"])
	assert.Equal(t, float64(-3), report["delta"])

	stdout, _, code = h.run("sweep", "-tenants", h.tenant)
	assert.Equal(t, exitDivergence, code)
	assert.Contains(t, stdout, product)

	out := h.ok("repair", "-tenant", h.tenant, "-product", product, "-location", location, "-user", user, "-reason", "stocktake")
	adjustment := out["adjustment"].(map[string]any)
	assert.Equal(t, "ADJUSTMENT", adjustment["movement_type"])
	assert.Equal(t, float64(-3), adjustment["quantity_change"])

	h.ok("verify", "-tenant", h.tenant, "-product", product, "-location", location)
	h.ok("sweep", "-tenants", h.tenant)
}

func TestRun_SweepNeedsTenants(t *testing.T) {
	h := newHarness(t)
	_, stderr, code := h.run("sweep")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "no tenants")

	_, _, code = h.run("sweep", "-tenants", "not-a-uuid")
	assert.Equal(t, exitUsage, code)
}

func TestRun_CheckoutAndCloseShift(t *testing.T) {
	h := newHarness(t)
	product, location, user := uuid.NewString(), uuid.NewString(), uuid.NewString()
	h.ok("apply", "-tenant", h.tenant, "-product", product, "-location", location, "-type", "PURCHASE", "-qty", "5")

	account := h.ok("account", "create", "-tenant", h.tenant, "-location", location, "-name", "Front till", "-initial", "100")
	accountID := account["id"].(string)
	assert.Equal(t, "100.00", account["initial_balance"])

	h.ok("account", "income", "-tenant", h.tenant, "-account", accountID, "-amount", "5", "-at", "2026-03-01T09:00:00Z")
	h.ok("account", "expense", "-tenant", h.tenant, "-account", accountID, "-amount", "3.00",
		"-category", "supplies", "-at", "2026-03-01T11:00:00Z")

	request := fmt.Sprintf(`{
  "location_id": %q,
  "user_id": %q,
  "tax_rate_percent": "10",
  "lines": [{"product_id": %q, "quantity": 2, "unit_price": "10.00"}],
  "payments": [{"method": "CASH", "amount": "22.00"}],
  "completed_at": "2026-03-01T10:00:00Z"
}`, location, user, product)
	file := filepath.Join(t.TempDir(), "sale.json")
	require.NoError(t, os.WriteFile(file, []byte(request), 0o600))

	sold := h.ok("checkout", "-tenant", h.tenant, "-file", file)
	assert.Equal(t, "20.00", sold["subtotal"])
	assert.Equal(t, "2.00", sold["tax"])
	assert.Equal(t, "22.00", sold["total"])
	assert.Equal(t, "22.00", sold["cash_amount"])

	level := h.ok("verify", "-tenant", h.tenant, "-product", product, "-location", location)
	assert.Equal(t, float64(3), level["stored"])

	fetched := h.ok("sale", "get", "-tenant", h.tenant, "-id", sold["id"].(string))
	assert.Equal(t, sold["total"], fetched["total"])

	report := h.ok("close-shift", "-tenant", h.tenant, "-account", accountID,
		"-from", "2026-03-01T08:00:00Z", "-to", "2026-03-01T18:00:00Z", "-counted", "120")
	assert.Equal(t, "100.00", report["opening_balance"])
	assert.Equal(t, "22.00", report["cash_sales_total"])
	assert.Equal(t, "5.00", report["incomes_total"])
	assert.Equal(t, "3.00", report["expenses_total"])
	assert.Equal(t, "124.00", report["final_balance"])
	assert.Equal(t, "120.00", report["counted_cash"])
	assert.Equal(t, "-4.00", report["discrepancy"])
}

func TestRun_CheckoutRejectsUnbalancedPayments(t *testing.T) {
	h := newHarness(t)
	request := fmt.Sprintf(`{
  "location_id": %q,
  "user_id": %q,
  "lines": [{"description": "Labour", "quantity": 1, "unit_price": "40.00"}],
  "payments": [{"method": "CASH", "amount": "30.00"}]
}`, uuid.NewString(), uuid.NewString())
	file := filepath.Join(t.TempDir(), "sale.json")
	require.NoError(t, os.WriteFile(file, []byte(request), 0o600))

	_, stderr, code := h.run("checkout", "-tenant", h.tenant, "-file", file)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "AMOUNT_MISMATCH")
}

func TestRun_ShiftLifecycle(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()
	account := h.ok("account", "create", "-tenant", h.tenant, "-location", uuid.NewString(), "-name", "Till 2")
	accountID := account["id"].(string)

	shift := h.ok("shift", "open", "-tenant", h.tenant, "-account", accountID, "-user", user, "-at", "2026-03-02T08:00:00Z")
	assert.Equal(t, true, shift["open"])
	shiftID := shift["id"].(string)

	h.ok("account", "income", "-tenant", h.tenant, "-account", accountID, "-amount", "12.50", "-at", "2026-03-02T09:00:00Z")

	ended := h.ok("shift", "end", "-tenant", h.tenant, "-shift", shiftID, "-at", "2026-03-02T16:00:00Z")
	assert.Equal(t, false, ended["open"])

	report := h.ok("close-shift", "-tenant", h.tenant, "-shift", shiftID)
	assert.Equal(t, "0.00", report["opening_balance"])
	assert.Equal(t, "12.50", report["final_balance"])
	assert.NotContains(t, report, "discrepancy")

	_, _, code := h.run("close-shift", "-tenant", h.tenant, "-account", accountID)
	assert.Equal(t, exitUsage, code)
}

func TestRun_TenantIsolation(t *testing.T) {
	h := newHarness(t)
	account := h.ok("account", "create", "-tenant", h.tenant, "-location", uuid.NewString(), "-name", "Till")

	_, stderr, code := h.run("account", "get", "-tenant", uuid.NewString(), "-account", account["id"].(string))
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "NOT_FOUND")
}
