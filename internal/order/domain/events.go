package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderItemsChanged  = "OrderItemsChanged"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderCreated struct {
	OrderID         string    `json:"order_id"`
	BuyerID         string    `json:"buyer_id"`
	ShippingAddress string    `json:"shipping_address"`
	BillingAddress  string    `json:"billing_address"`
	PaymentMethod   string    `json:"payment_method"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type OrderItemsChanged struct {
	OrderID     string          `json:"order_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// OrderStatusChanged carries the items so consumers can follow the stock
// debited on place and credited on cancel without reading the order.
type OrderStatusChanged struct {
	OrderID        string          `json:"order_id"`
	Transition     Transition      `json:"transition"`
	From           OrderStatus     `json:"from"`
	To             OrderStatus     `json:"to"`
	Items          []OrderItem     `json:"items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// StockMoved reports whether the transition debited (place) or credited
// (cancel of a placed order) the ledger.
func (e OrderStatusChanged) StockMoved() bool {
	switch {
	case e.To == StatusPlaced:
		return true
	case e.To == StatusCancelled && e.From != StatusPending:
		return true
	}
	return false
}
