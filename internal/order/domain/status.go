package domain

import "fmt"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPlaced     OrderStatus = "placed"
	StatusProcessing OrderStatus = "processing"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPlaced, StatusProcessing, StatusConfirmed,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanPay reports whether the order may move to processing.
func (s OrderStatus) CanPay() bool {
	return s == StatusPlaced
}

// CanCancel reports whether the order has not shipped and is not already
// cancelled.
func (s OrderStatus) CanCancel() bool {
	switch s {
	case StatusPending, StatusPlaced, StatusProcessing, StatusConfirmed:
		return true
	}
	return false
}

// holdsStock is true once place has debited the ledger and until cancel
// credits it back.
func (s OrderStatus) holdsStock() bool {
	switch s {
	case StatusPlaced, StatusProcessing, StatusConfirmed, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

type Transition string

const (
	TransitionPlace      Transition = "place"
	TransitionPay        Transition = "pay"
	TransitionConfirm    Transition = "confirm"
	TransitionShip       Transition = "ship"
	TransitionDeliver    Transition = "deliver"
	TransitionCancel     Transition = "cancel"
	TransitionAddItem    Transition = "add_item"
	TransitionRemoveItem Transition = "remove_item"
)

// ParseTransition accepts the status-changing transitions a caller may
// request by name. Item edits have their own operations.
func ParseTransition(name string) (Transition, error) {
	switch t := Transition(name); t {
	case TransitionPlace, TransitionPay, TransitionConfirm, TransitionShip, TransitionDeliver, TransitionCancel:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown transition %q", ErrValidation, name)
}
