package inventory

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
)

// DivergenceError reports a stored stock level that no longer equals the
// replay of its movement log
type DivergenceError struct {
	Key      StockKey
	Stored   int64
	Replayed int64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("stock level %s diverges from movement log: stored %d, replayed %d", e.Key, e.Stored, e.Replayed)
}

// Delta returns stored minus replayed, the change an offsetting movement must carry
func (e *DivergenceError) Delta() int64 {
	return e.Stored - e.Replayed
}

// Unwrap exposes the DATA_INTEGRITY_DIVERGENCE domain error
func (e *DivergenceError) Unwrap() error {
	return shared.NewDomainError(shared.CodeDataIntegrityDivergence, e.Error())
}

// Replay sums the quantity changes of movements
func Replay(movements []InventoryMovement) int64 {
	var total int64
	for _, m := range movements {
		total += m.QuantityChange
	}
	return total
}

// CheckReplay returns a *DivergenceError when stored differs from replayed
func CheckReplay(key StockKey, stored, replayed int64) error {
	if stored == replayed {
		return nil
	}
	return &DivergenceError{Key: key, Stored: stored, Replayed: replayed}
}
