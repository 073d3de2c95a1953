package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root. Items and status are only reachable through
// its methods so the total can never drift from the items.
type Order struct {
	id              string
	buyerID         string
	status          OrderStatus
	items           []OrderItem
	total           decimal.Decimal
	shippingAddress string
	billingAddress  string
	paymentMethod   string
	trackingNumber  string
	createdAt       time.Time
	updatedAt       time.Time
	version         int64
}

// Snapshot is the flat, persistable form of an Order.
type Snapshot struct {
	ID              string
	BuyerID         string
	Status          OrderStatus
	Items           []OrderItem
	TotalAmount     decimal.Decimal
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	TrackingNumber  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

func NewOrder(id, buyerID, shippingAddress, billingAddress, paymentMethod string, now time.Time) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if strings.TrimSpace(buyerID) == "" {
		return nil, fmt.Errorf("%w: buyer id is required", ErrValidation)
	}
	now = now.UTC()
	return &Order{
		id:              id,
		buyerID:         buyerID,
		status:          StatusPending,
		items:           make([]OrderItem, 0),
		total:           decimal.Zero,
		shippingAddress: shippingAddress,
		billingAddress:  billingAddress,
		paymentMethod:   paymentMethod,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// FromSnapshot rebuilds an Order loaded from storage. The stored total is
// ignored and recomputed from the items.
func FromSnapshot(s Snapshot) (*Order, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("%w: snapshot without id", ErrValidation)
	}
	if !s.Status.Valid() {
		return nil, fmt.Errorf("%w: order %s has unknown status %q", ErrValidation, s.ID, s.Status)
	}
	o := &Order{
		id:              s.ID,
		buyerID:         s.BuyerID,
		status:          s.Status,
		items:           append(make([]OrderItem, 0, len(s.Items)), s.Items...),
		shippingAddress: s.ShippingAddress,
		billingAddress:  s.BillingAddress,
		paymentMethod:   s.PaymentMethod,
		trackingNumber:  s.TrackingNumber,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
		version:         s.Version,
	}
	o.recalculateTotal()
	return o, nil
}

func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:              o.id,
		BuyerID:         o.buyerID,
		Status:          o.status,
		Items:           o.Items(),
		TotalAmount:     o.total,
		ShippingAddress: o.shippingAddress,
		BillingAddress:  o.billingAddress,
		PaymentMethod:   o.paymentMethod,
		TrackingNumber:  o.trackingNumber,
		CreatedAt:       o.createdAt,
		UpdatedAt:       o.updatedAt,
		Version:         o.version,
	}
}

func (o *Order) ID() string { return o.id }
func (o *Order) BuyerID() string { return o.buyerID }
func (o *Order) Status() OrderStatus { return o.status }
func (o *Order) Total() decimal.Decimal { return o.total }
func (o *Order) ShippingAddress() string { return o.shippingAddress }
func (o *Order) BillingAddress() string { return o.billingAddress }
func (o *Order) PaymentMethod() string { return o.paymentMethod }
func (o *Order) TrackingNumber() string { return o.trackingNumber }
func (o *Order) CreatedAt() time.Time { return o.createdAt }
func (o *Order) UpdatedAt() time.Time { return o.updatedAt }
func (o *Order) Version() int64 { return o.version }

// Items returns a copy; the order's own slice is never handed out.
func (o *Order) Items() []OrderItem { return append([]OrderItem(nil), o.items...) }

func (o *Order) reject(t Transition) error {
	return &TransitionError{OrderID: o.id, Transition: t, Status: o.status}
}

func (o *Order) touch(now time.Time) { o.updatedAt = now.UTC() }

func (o *Order) editable(t Transition) error {
	if o.status != StatusPending {
		return o.reject(t)
	}
	return nil
}

func (o *Order) AddItem(item OrderItem, now time.Time) error {
	if err := o.editable(TransitionAddItem); err != nil {
		return err
	}
	if item.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrValidation)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: item quantity must be positive, got %d", ErrValidation, item.Quantity)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price cannot be negative", ErrValidation)
	}
	item.UnitPrice = item.UnitPrice.Round(2)
	o.items = append(o.items, item)
	o.recalculateTotal()
	o.touch(now)
	return nil
}

// RemoveItem drops every line for productID.
func (o *Order) RemoveItem(productID string, now time.Time) error {
	if err := o.editable(TransitionRemoveItem); err != nil {
		return err
	}
	kept := o.items[:0:0]
	for _, it := range o.items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(o.items) {
		return fmt.Errorf("order %s, product %s: %w", o.id, productID, ErrItemNotFound)
	}
	o.items = kept
	o.recalculateTotal()
	o.touch(now)
	return nil
}

// Place debits every line from the ledger and moves the order to placed.
// Either all debits apply or none do: debits already taken are credited
// back before the failure is returned.
func (o *Order) Place(ctx context.Context, ledger StockLedger, now time.Time) error {
	if o.status != StatusPending {
		return o.reject(TransitionPlace)
	}
	if len(o.items) == 0 {
		return fmt.Errorf("%w: order %s has no items", ErrValidation, o.id)
	}

	held := make([]reservation, 0, len(o.items))
	for _, r := range o.reservations() {
		if _, err := ledger.Debit(ctx, r.productID, r.quantity); err != nil {
			for _, f := range release(ctx, ledger, held) {
				err = errors.Join(err, fmt.Errorf("compensate product %s: %w", f.ProductID, f.Err))
			}
			return fmt.Errorf("place order %s: %w", o.id, err)
		}
		held = append(held, r)
	}

	o.status = StatusPlaced
	o.recalculateTotal()
	o.touch(now)
	return nil
}

func (o *Order) Pay(now time.Time) error {
	if !o.status.CanPay() {
		return o.reject(TransitionPay)
	}
	o.status = StatusProcessing
	o.touch(now)
	return nil
}

func (o *Order) Confirm(now time.Time) error {
	if o.status != StatusPlaced {
		return o.reject(TransitionConfirm)
	}
	o.status = StatusConfirmed
	o.touch(now)
	return nil
}

func (o *Order) Ship(trackingNumber string, now time.Time) error {
	if o.status != StatusConfirmed {
		return o.reject(TransitionShip)
	}
	if strings.TrimSpace(trackingNumber) == "" {
		return fmt.Errorf("%w: tracking number is required to ship", ErrValidation)
	}
	o.status = StatusShipped
	o.trackingNumber = trackingNumber
	o.touch(now)
	return nil
}

func (o *Order) Deliver(now time.Time) error {
	if o.status != StatusShipped {
		return o.reject(TransitionDeliver)
	}
	o.status = StatusDelivered
	o.touch(now)
	return nil
}

// Cancel moves the order to cancelled and, if place had debited stock,
// credits it back. Credit failures do not stop the cancellation; they are
// returned for the caller to log.
func (o *Order) Cancel(ctx context.Context, ledger StockLedger, now time.Time) ([]RestoreFailure, error) {
	if !o.status.CanCancel() {
		return nil, o.reject(TransitionCancel)
	}
	var failures []RestoreFailure
	if o.status.holdsStock() {
		failures = release(ctx, ledger, o.reservations())
	}
	o.status = StatusCancelled
	o.touch(now)
	return failures, nil
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, it := range o.items {
		total = total.Add(it.Subtotal())
	}
	o.total = total
}

type reservation struct {
	productID string
	quantity  int
}

// reservations folds lines by product and orders them by product id so
// concurrent placements lock rows in the same order.
func (o *Order) reservations() []reservation {
	byProduct := make(map[string]int, len(o.items))
	for _, it := range o.items {
		byProduct[it.ProductID] += it.Quantity
	}
	out := make([]reservation, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, reservation{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

func release(ctx context.Context, ledger StockLedger, held []reservation) []RestoreFailure {
	var failures []RestoreFailure
	for _, r := range held {
		if _, err := ledger.Credit(ctx, r.productID, r.quantity); err != nil {
			failures = append(failures, RestoreFailure{ProductID: r.productID, Quantity: r.quantity, Err: err})
		}
	}
	return failures
}
