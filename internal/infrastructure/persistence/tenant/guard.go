// Package tenant keeps every ledger statement inside one company's data.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTenantConditionMissing is returned when a statement on a tenant-owned
// table carries no tenant condition
var ErrTenantConditionMissing = errors.New("statement on tenant-owned table has no tenant condition")

// Guard provides GORM callback hooks that reject unscoped statements.
// A table is tenant-owned when its model has a field for the tenant column.
// Inserts are not checked: the tenant ID is part of the inserted row.
type Guard struct {
	tenantColumn string
}

// NewGuard creates a guard for tenantColumn (default "tenant_id")
func NewGuard(tenantColumn string) *Guard {
	if tenantColumn == "" {
		tenantColumn = "tenant_id"
	}
	return &Guard{tenantColumn: tenantColumn}
}

// Register installs the guard before query, row, update and delete
func (g *Guard) Register(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenant:guard_query", g.check); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenant:guard_row", g.check); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant:guard_update", g.check); err != nil {
		return err
	}
	return cb.Delete().Before("gorm:delete").Register("tenant:guard_delete", g.check)
}

func (g *Guard) check(db *gorm.DB) {
	// raw SQL is built by the caller and carries its own conditions
	if db.Error != nil || db.Statement.Unscoped || db.Statement.SQL.Len() > 0 {
		return
	}
	sch := db.Statement.Schema
	if sch == nil || sch.LookUpField(g.tenantColumn) == nil {
		return
	}
	if g.hasTenantCondition(db) {
		return
	}
	_ = db.AddError(fmt.Errorf("%w: %s", ErrTenantConditionMissing, sch.Table))
}

// hasTenantCondition checks the top-level AND conditions of the WHERE clause.
// A tenant condition inside an OR does not scope the statement.
func (g *Guard) hasTenantCondition(db *gorm.DB) bool {
	whereClause, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := whereClause.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if g.exprContainsTenant(expr) {
			return true
		}
	}
	return false
}

func (g *Guard) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return g.isTenantColumn(e.Column)
	case clause.IN:
		return g.isTenantColumn(e.Column)
	case clause.Expr:
		return g.sqlMentionsTenant(e.SQL)
	case clause.NamedExpr:
		return g.sqlMentionsTenant(e.SQL)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if g.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

func (g *Guard) isTenantColumn(col any) bool {
	switch c := col.(type) {
	case clause.Column:
		return c.Name == g.tenantColumn
	case string:
		return c == g.tenantColumn || strings.HasSuffix(c, "."+g.tenantColumn)
	}
	return false
}

// sqlMentionsTenant accepts "tenant_id = ?" at the top level of a raw
// condition. A condition containing OR is not trusted.
func (g *Guard) sqlMentionsTenant(sql string) bool {
	lower := strings.ToLower(sql)
	if strings.Contains(lower, " or ") {
		return false
	}
	return strings.Contains(lower, g.tenantColumn+" = ?") || strings.Contains(lower, g.tenantColumn+" in ")
}
