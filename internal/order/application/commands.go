package application

type ItemRequest struct {
	ProductID string
	Quantity  int
}

type CreateOrderCommand struct {
	BuyerID         string
	Items           []ItemRequest
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
}

// TransitionArgs carries the optional arguments of a transition; only ship
// uses one today.
type TransitionArgs struct {
	TrackingNumber string
}
