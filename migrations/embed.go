// Package migrations carries the PostgreSQL schema of the ledger so every
// binary can migrate without a checkout of the repository.
package migrations

import "embed"

// FS holds the versioned up and down scripts
//
//go:embed *.sql
var FS embed.FS
