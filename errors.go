package certledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("certledger: not found")
	ErrInvalidInput = errors.New("certledger: invalid input")
	ErrUnauthorized = errors.New("certledger: not an owner")

	// Catalog errors
	ErrEntryNotFound = errors.New("certledger: catalog entry not found")
	ErrOutOfStock    = errors.New("certledger: out of stock")

	// Payment errors
	ErrInvalidPayment         = errors.New("certledger: invalid price")
	ErrPaymentFailed          = errors.New("certledger: payment collection failed")
	ErrDirectTransferRejected = errors.New("certledger: direct transfers rejected, use Purchase to buy certificates")

	// Order errors
	ErrOrderNotFound = errors.New("certledger: order not found")
	ErrInvalidState  = errors.New("certledger: invalid status")

	// Transaction errors
	ErrUnknownMethod    = errors.New("certledger: unknown method")
	ErrInvalidSignature = errors.New("certledger: invalid signature")
	ErrNonceReused      = errors.New("certledger: nonce already used")

	// Store errors
	ErrOwnerMismatch     = errors.New("certledger: store is bound to a different owner")
	ErrStoreClosed       = errors.New("certledger: store is closed")
	ErrTransactionFailed = errors.New("certledger: transaction failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("certledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsRejection returns true if the error is a business-rule rejection rather
// than an infrastructure failure. Rejections leave state unchanged.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		IsNotFound(err) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrDirectTransferRejected) ||
		errors.Is(err, ErrUnknownMethod) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrNonceReused) ||
		errors.Is(err, ErrInvalidInput)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrPaymentFailed)
}
