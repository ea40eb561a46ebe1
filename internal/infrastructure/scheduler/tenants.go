package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// TenantProvider lists the tenants a sweep covers
type TenantProvider interface {
	TenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StaticTenants is a TenantProvider over a fixed list
type StaticTenants []uuid.UUID

// TenantIDs returns a copy of the list
func (t StaticTenants) TenantIDs(context.Context) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(t))
	copy(out, t)
	return out, nil
}

// ParseTenants parses configured tenant IDs. Duplicates are dropped.
func ParseTenants(ids []string) (StaticTenants, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make(StaticTenants, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return nil, fmt.Errorf("%w: bad tenant id %q", ErrInvalidConfig, raw)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
