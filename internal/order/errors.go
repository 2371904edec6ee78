package order

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyOrder    = errors.New("order must contain at least one item")
	ErrForbidden     = errors.New("forbidden")

	// ErrOrderChanged means a concurrent transition committed between the
	// caller's read and its update. The request can be retried against the
	// fresh state.
	ErrOrderChanged = errors.New("order was modified concurrently")
)

// InsufficientStockError is returned when a requested quantity cannot be
// reserved. It carries the available quantity observed by the authoritative
// check so callers can render a precise message.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s. Available: %d, requested: %d",
		e.ProductName, e.Available, e.Requested)
}

// ValidationError marks a request that is well-formed but violates a business
// rule. The HTTP layer maps it to 422.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError rejects a status change the state machine does not
// allow.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// NotCancellableError rejects cancellation of an order past the point of no
// return.
type NotCancellableError struct {
	Status Status
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("order cannot be cancelled. Current status: %s", e.Status)
}

// IsValidation reports whether err belongs to the validation family
// (insufficient stock, empty order, illegal transition, not cancellable).
func IsValidation(err error) bool {
	var (
		vErr *ValidationError
		sErr *InsufficientStockError
		tErr *InvalidTransitionError
		cErr *NotCancellableError
	)
	return errors.As(err, &vErr) ||
		errors.As(err, &sErr) ||
		errors.As(err, &tErr) ||
		errors.As(err, &cErr) ||
		errors.Is(err, ErrEmptyOrder)
}
