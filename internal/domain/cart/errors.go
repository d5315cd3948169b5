package cart

import (
	"errors"
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
)

// Cart error codes
const (
	CodeInvalidItemID  = "INVALID_ITEM_ID"
	CodeInvalidQty     = "INVALID_QUANTITY"
	CodeLineNotFound   = "CART_LINE_NOT_FOUND"
	CodeCorruptToken   = "CORRUPT_CART_TOKEN"
	CodeNoBackend      = "NO_CART_BACKEND"
	CodeBackendFailure = "BACKEND_UNAVAILABLE"
	CodeCartTooLarge   = "CART_TOO_LARGE"
)

var (
	// ErrInvalidItemID is returned for non-positive item ids
	ErrInvalidItemID = shared.NewDomainError(CodeInvalidItemID, "Item id must be a positive integer")
	// ErrInvalidQuantity is returned for quantities below one
	ErrInvalidQuantity = shared.NewDomainError(CodeInvalidQty, "Quantity must be at least 1")
	// ErrLineNotFound is returned when an authenticated cart has no line for the item
	ErrLineNotFound = shared.NewDomainError(CodeLineNotFound, "Item is not in the cart")
	// ErrCorruptToken is returned when a cart token cannot be decoded.
	// Callers treat it as an empty cart.
	ErrCorruptToken = shared.NewDomainError(CodeCorruptToken, "Cart token is malformed or expired")
	// ErrNoBackend is returned when a Backend value was never resolved
	ErrNoBackend = shared.NewDomainError(CodeNoBackend, "Cart backend is not resolved")
	// ErrCartTooLarge is returned when an anonymous cart no longer fits in its cookie
	ErrCartTooLarge = shared.NewDomainError(CodeCartTooLarge, "Cart has too many lines to keep without signing in")
)

// IsValidationError reports whether err rejects caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidItemID) || errors.Is(err, ErrInvalidQuantity) || errors.Is(err, ErrCartTooLarge)
}

// BackendError wraps a failure of the key-value backend. The driver error is
// left undecorated and reachable through errors.Unwrap.
type BackendError struct {
	Op        string
	Transient bool
	Err       error
}

// NewBackendError creates a backend error for the given operation
func NewBackendError(op string, transient bool, err error) *BackendError {
	return &BackendError{Op: op, Transient: transient, Err: err}
}

// Error implements the error interface
func (e *BackendError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("cart backend %s (%s): %v", e.Op, kind, e.Err)
}

// Unwrap returns the driver error
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable backend failure
func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Transient
}
