package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("concurrent modification")
	ErrValidation        = errors.New("validation failed")
)

// TransitionError is returned when a transition's precondition does not
// hold for the order's current status. Nothing is changed.
type TransitionError struct {
	OrderID    string
	Transition Transition
	Status     OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot %s in status %s", e.OrderID, e.Transition, e.Status)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
