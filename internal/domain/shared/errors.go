package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
// This lets callers match a specific failure with errors.Is even when the
// instance carries a more detailed message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound                = "NOT_FOUND"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeConcurrencyConflict     = "CONCURRENCY_CONFLICT"
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodeEmptyPayment            = "EMPTY_PAYMENT"
	CodeNegativeEntry           = "NEGATIVE_ENTRY"
	CodeAmountMismatch          = "AMOUNT_MISMATCH"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeDataIntegrityDivergence = "DATA_INTEGRITY_DIVERGENCE"
	CodeInvalidQuantity         = "INVALID_QUANTITY"
	CodeInvalidMovementType     = "INVALID_MOVEMENT_TYPE"
	CodeInvalidPaymentMethod    = "INVALID_PAYMENT_METHOD"
	CodeInvalidTaxRate          = "INVALID_TAX_RATE"
	CodeInvalidWindow           = "INVALID_WINDOW"
	CodeDuplicateCheckout       = "DUPLICATE_CHECKOUT"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")

	ErrInvalidAmount           = NewDomainError(CodeInvalidAmount, "Amount is not a finite decimal number")
	ErrEmptyPayment            = NewDomainError(CodeEmptyPayment, "No payment entries for a non-zero total")
	ErrNegativeEntry           = NewDomainError(CodeNegativeEntry, "Payment entry amount cannot be negative")
	ErrAmountMismatch          = NewDomainError(CodeAmountMismatch, "Payment entries do not sum to the expected total")
	ErrInsufficientStock       = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrDataIntegrityDivergence = NewDomainError(CodeDataIntegrityDivergence, "Stored stock level diverges from movement log")

	ErrInvalidQuantity      = NewDomainError(CodeInvalidQuantity, "Quantity change is not valid for the movement type")
	ErrInvalidMovementType  = NewDomainError(CodeInvalidMovementType, "Unknown movement type")
	ErrInvalidPaymentMethod = NewDomainError(CodeInvalidPaymentMethod, "Unknown payment method")
	ErrInvalidTaxRate       = NewDomainError(CodeInvalidTaxRate, "Tax rate cannot be negative")
	ErrInvalidWindow        = NewDomainError(CodeInvalidWindow, "Window end must be after window start")
	ErrDuplicateCheckout    = NewDomainError(CodeDuplicateCheckout, "Checkout with this idempotency key was already processed")
)

// ErrorCode extracts the domain error code from err, or "" if err is not a DomainError
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
