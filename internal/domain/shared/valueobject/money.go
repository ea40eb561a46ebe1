package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RoundingMode selects how amounts are quantized
type RoundingMode string

const (
	// RoundHalfUp rounds halves away from zero (2.345 -> 2.35, -2.345 -> -2.35)
	RoundHalfUp RoundingMode = "HALF_UP"
	// RoundHalfEven rounds halves to the nearest even digit (banker's rounding)
	RoundHalfEven RoundingMode = "HALF_EVEN"
)

// IsValid returns true if the rounding mode is known
func (r RoundingMode) IsValid() bool {
	return r == RoundHalfUp || r == RoundHalfEven
}

const (
	// DefaultScale is the number of fractional digits kept for currency values
	DefaultScale int32 = 2
	maxScale     int32 = 8
)

// MoneyContext carries the precision policy applied to every Money value.
// It is passed explicitly instead of living in process-wide state, so
// callers with different policies can coexist.
type MoneyContext struct {
	Scale    int32
	Rounding RoundingMode
}

// DefaultMoneyContext returns 2 fractional digits with round-half-up
func DefaultMoneyContext() MoneyContext {
	return MoneyContext{Scale: DefaultScale, Rounding: RoundHalfUp}
}

// Validate checks the context is usable
func (c MoneyContext) Validate() error {
	if c.Scale < 0 || c.Scale > maxScale {
		return fmt.Errorf("money scale must be between 0 and %d, got %d", maxScale, c.Scale)
	}
	if !c.Rounding.IsValid() {
		return fmt.Errorf("unknown rounding mode %q", c.Rounding)
	}
	return nil
}

// quantize rounds d to the context scale
func (c MoneyContext) quantize(d decimal.Decimal) decimal.Decimal {
	if c.Rounding == RoundHalfEven {
		return d.RoundBank(c.Scale)
	}
	return d.Round(c.Scale)
}

// orDefault returns the default context for a zero-value MoneyContext
func (c MoneyContext) orDefault() MoneyContext {
	if c.Rounding == "" {
		return DefaultMoneyContext()
	}
	return c
}

// FromDecimal quantizes d into a Money
func (c MoneyContext) FromDecimal(d decimal.Decimal) Money {
	c = c.orDefault()
	return Money{amount: c.quantize(d), ctx: c}
}

// Zero returns a zero amount in this context
func (c MoneyContext) Zero() Money {
	return c.FromDecimal(decimal.Zero)
}

// Parse converts a decimal-like, integer, float or string value into Money.
// Floats are converted through their shortest exact string form so that
// binary artifacts (0.1+0.2) never reach the decimal. NaN, infinities,
// non-numeric strings and unsupported types fail with ErrInvalidAmount.
func (c MoneyContext) Parse(value any) (Money, error) {
	c = c.orDefault()

	switch v := value.(type) {
	case Money:
		return c.FromDecimal(v.amount), nil
	case decimal.Decimal:
		return c.FromDecimal(v), nil
	case *decimal.Decimal:
		if v == nil {
			return Money{}, invalidAmount(value, "nil decimal")
		}
		return c.FromDecimal(*v), nil
	case int:
		return c.FromDecimal(decimal.NewFromInt(int64(v))), nil
	case int32:
		return c.FromDecimal(decimal.NewFromInt32(v)), nil
	case int64:
		return c.FromDecimal(decimal.NewFromInt(v)), nil
	case float32:
		return c.parseFloat(float64(v), 32)
	case float64:
		return c.parseFloat(v, 64)
	case json.Number:
		return c.parseString(string(v))
	case string:
		return c.parseString(v)
	default:
		return Money{}, invalidAmount(value, fmt.Sprintf("unsupported type %T", value))
	}
}

func (c MoneyContext) parseFloat(f float64, bitSize int) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, invalidAmount(f, "not a finite number")
	}
	return c.parseString(strconv.FormatFloat(f, 'f', -1, bitSize))
}

func (c MoneyContext) parseString(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, invalidAmount(s, "empty string")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, invalidAmount(s, err.Error())
	}
	return c.FromDecimal(d), nil
}

// MustParse is like Parse but panics on invalid input. Use for literals only.
func (c MoneyContext) MustParse(value any) Money {
	m, err := c.Parse(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Sum adds all values using Money arithmetic
func (c MoneyContext) Sum(values ...Money) Money {
	total := c.Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func invalidAmount(value any, reason string) error {
	return shared.NewDomainError(shared.CodeInvalidAmount, fmt.Sprintf("invalid amount %v: %s", value, reason))
}

// Money is an exact decimal amount quantized to its context's scale.
// It is immutable - all operations return new Money instances, each
// re-quantized once at the end of the operation.
type Money struct {
	amount decimal.Decimal
	ctx    MoneyContext
}

// NewMoney parses value using the default context
func NewMoney(value any) (Money, error) {
	return DefaultMoneyContext().Parse(value)
}

// MustNewMoney parses value using the default context and panics on error
func MustNewMoney(value any) Money {
	return DefaultMoneyContext().MustParse(value)
}

// Zero returns a zero-value Money in the default context
func Zero() Money {
	return DefaultMoneyContext().Zero()
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Context returns the precision policy of this value
func (m Money) Context() MoneyContext {
	return m.ctx.orDefault()
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns m + other
func (m Money) Add(other Money) Money {
	return m.Context().FromDecimal(m.amount.Add(other.amount))
}

// Sub returns m - other
func (m Money) Sub(other Money) Money {
	return m.Context().FromDecimal(m.amount.Sub(other.amount))
}

// Mul returns m * factor
func (m Money) Mul(factor decimal.Decimal) Money {
	return m.Context().FromDecimal(m.amount.Mul(factor))
}

// MulInt returns m * n
func (m Money) MulInt(n int64) Money {
	return m.Mul(decimal.NewFromInt(n))
}

// Div returns m / divisor
func (m Money) Div(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, shared.NewDomainError(shared.CodeInvalidAmount, "cannot divide by zero")
	}
	return m.Context().FromDecimal(m.amount.Div(divisor)), nil
}

// Neg returns -m
func (m Money) Neg() Money {
	return m.Context().FromDecimal(m.amount.Neg())
}

// Abs returns |m|
func (m Money) Abs() Money {
	return m.Context().FromDecimal(m.amount.Abs())
}

// Cmp compares amounts: -1 if m < other, 0 if equal, +1 if m > other
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// Equal reports exact decimal equality of the amounts
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// String returns the amount with exactly Scale fractional digits
func (m Money) String() string {
	return m.amount.StringFixed(m.Context().Scale)
}

// MarshalJSON encodes the amount as a fixed-scale string
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a JSON string or number and quantizes it with the default context
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := m.ctx.Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer for database storage
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
// The receiver's context is kept; a zero receiver uses the default context.
func (m *Money) Scan(value any) error {
	var d decimal.Decimal
	if value == nil {
		*m = m.ctx.FromDecimal(decimal.Zero)
		return nil
	}
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Money: %w", value, err)
	}
	*m = m.ctx.FromDecimal(d)
	return nil
}
