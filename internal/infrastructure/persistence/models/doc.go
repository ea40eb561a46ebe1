// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Money columns are stored as NUMERIC and converted back with the caller's
// MoneyContext, so a row never carries more precision than the policy allows.
//
// Structure:
//   - base.go: BaseModel, TenantModel and the migration list
//   - inventory.go: stock levels and the movement log
//   - sale.go: sales with their lines and ordered payment entries
//   - cashier.go: cash accounts, manual incomes, expenses and shifts
package models
