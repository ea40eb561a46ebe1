package inventory

import (
	"fmt"
	"strings"
)

// StockPolicy decides whether a movement may leave a stock level negative
type StockPolicy string

const (
	// StockPolicyStrict rejects SALE and TRANSFER_OUT movements that would make stock negative
	StockPolicyStrict StockPolicy = "strict"
	// StockPolicyBackorder records negative quantities as backorders
	StockPolicyBackorder StockPolicy = "backorder"
)

// IsValid returns true if the policy is known
func (p StockPolicy) IsValid() bool {
	return p == StockPolicyStrict || p == StockPolicyBackorder
}

// String returns the string representation of StockPolicy
func (p StockPolicy) String() string {
	return string(p)
}

// ParseStockPolicy parses a configured policy name, case-insensitively
func ParseStockPolicy(s string) (StockPolicy, error) {
	p := StockPolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown stock policy %q (want %q or %q)", s, StockPolicyStrict, StockPolicyBackorder)
	}
	return p, nil
}

// guards reports whether the policy blocks a negative result for movementType.
// Purchases, adjustments and returns may go negative so corrective flows are never blocked.
func (p StockPolicy) guards(movementType MovementType) bool {
	return p == StockPolicyStrict && movementType.IsDecrease()
}
