package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates malformed or missing caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a concurrent writer won a race the caller
	// may retry (e.g. stock consumed between check and decrement).
	ErrConflict = errors.New("concurrent modification conflict")

	// Business-rule violations. The caller must change the request;
	// none of these are retryable as-is.
	ErrRestaurantNotApproved = errors.New("restaurant is not approved")
	ErrOrderNotModifiable    = errors.New("order is not modifiable")
	ErrRestaurantMismatch    = errors.New("item belongs to a different restaurant")
	ErrItemUnavailable       = errors.New("item is not available")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrEmptyOrder            = errors.New("cannot place an empty order")
)

// InvalidTransitionError reports an order status move outside the
// transition table.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// IsBusinessRule reports whether err is a business-rule violation as
// opposed to a validation, not-found, or conflict error.
func IsBusinessRule(err error) bool {
	var invalid *InvalidTransitionError
	if errors.As(err, &invalid) {
		return true
	}
	for _, sentinel := range []error{
		ErrRestaurantNotApproved,
		ErrOrderNotModifiable,
		ErrRestaurantMismatch,
		ErrItemUnavailable,
		ErrInsufficientStock,
		ErrEmptyOrder,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
