package cashier

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Shift is a bounded period of work on a cash account. Closing a shift only sets
// its end time; no sale, income or expense is marked or consumed.
type Shift struct {
	shared.TenantEntity
	AccountID uuid.UUID
	OpenedBy  uuid.UUID
	StartTime time.Time
	EndTime   *time.Time
}

// OpenShift starts a shift on an account
func OpenShift(tenantID, accountID, openedBy uuid.UUID, start time.Time) (*Shift, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Cash account ID cannot be empty")
	}
	if start.IsZero() {
		start = time.Now()
	}
	return &Shift{
		TenantEntity: shared.NewTenantEntity(tenantID),
		AccountID:    accountID,
		OpenedBy:     openedBy,
		StartTime:    start,
	}, nil
}

// IsOpen returns true while the shift has no end time
func (s *Shift) IsOpen() bool {
	return s.EndTime == nil
}

// Close sets the end time of the shift
func (s *Shift) Close(end time.Time) error {
	if !s.IsOpen() {
		return shared.NewDomainError("SHIFT_CLOSED", "Shift is already closed")
	}
	if !end.After(s.StartTime) {
		return shared.ErrInvalidWindow
	}
	s.EndTime = &end
	s.UpdatedAt = time.Now()
	return nil
}

// Window returns the shift's [start, end) range. An open shift ends at now.
func (s *Shift) Window(now time.Time) (shared.Window, error) {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return shared.NewWindow(s.StartTime, end)
}
