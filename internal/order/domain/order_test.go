package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeLedger struct {
	stock       map[string]int
	failCredits map[string]bool
	debits      []string
}

func newFakeLedger(stock map[string]int) *fakeLedger {
	return &fakeLedger{stock: stock, failCredits: map[string]bool{}}
}

func (l *fakeLedger) Debit(_ context.Context, productID string, amount int) (int, error) {
	l.debits = append(l.debits, productID)
	have := l.stock[productID]
	if have < amount {
		return have, errors.New("insufficient stock for " + productID)
	}
	l.stock[productID] = have - amount
	return l.stock[productID], nil
}

func (l *fakeLedger) Credit(_ context.Context, productID string, amount int) (int, error) {
	if l.failCredits[productID] {
		return l.stock[productID], errBoom
	}
	l.stock[productID] += amount
	return l.stock[productID], nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pendingOrder(t *testing.T, items ...OrderItem) *Order {
	t.Helper()
	o, err := NewOrder("o-1", "buyer-1", "1 Main St", "1 Main St", "card", now)
	require.NoError(t, err)
	for _, it := range items {
		require.NoError(t, o.AddItem(it, now))
	}
	return o
}

func sumSubtotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func TestNewOrder_StartsPendingAndEmpty(t *testing.T) {
	o := pendingOrder(t)

	assert.Equal(t, StatusPending, o.Status())
	assert.Empty(t, o.Items())
	assert.True(t, o.Total().IsZero())
	assert.Equal(t, now, o.CreatedAt())
}

func TestNewOrder_RequiresBuyer(t *testing.T) {
	_, err := NewOrder("o-1", " ", "", "", "", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddRemoveItem_KeepsTotalEqualToSubtotals(t *testing.T) {
	o := pendingOrder(t)

	require.NoError(t, o.AddItem(OrderItem{ProductID: "p-1", Quantity: 3, UnitPrice: price("9.99")}, now))
	assert.True(t, o.Total().Equal(price("29.97")))

	require.NoError(t, o.AddItem(OrderItem{ProductID: "p-2", Quantity: 1, UnitPrice: price("0.03")}, now))
	assert.True(t, o.Total().Equal(sumSubtotals(o.Items())))
	assert.True(t, o.Total().Equal(price("30.00")))

	require.NoError(t, o.RemoveItem("p-1", now))
	assert.True(t, o.Total().Equal(price("0.03")))
	assert.Len(t, o.Items(), 1)
}

func TestAddItem_Rejections(t *testing.T) {
	o := pendingOrder(t)

	assert.ErrorIs(t, o.AddItem(OrderItem{ProductID: "p-1", Quantity: 0, UnitPrice: price("1")}, now), ErrValidation)
	assert.ErrorIs(t, o.AddItem(OrderItem{ProductID: "", Quantity: 1, UnitPrice: price("1")}, now), ErrValidation)
	assert.ErrorIs(t, o.AddItem(OrderItem{ProductID: "p-1", Quantity: 1, UnitPrice: price("-1")}, now), ErrValidation)
	assert.Empty(t, o.Items())
}

func TestRemoveItem_UnknownProduct(t *testing.T) {
	o := pendingOrder(t, OrderItem{ProductID: "p-1", Quantity: 1, UnitPrice: price("5")})

	err := o.RemoveItem("p-9", now)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Len(t, o.Items(), 1)
}

func TestItems_ReturnsCopy(t *testing.T) {
	o := pendingOrder(t, OrderItem{ProductID: "p-1", Quantity: 1, UnitPrice: price("5")})

	items := o.Items()
	items[0].Quantity = 100

	assert.Equal(t, 1, o.Items()[0].Quantity)
	assert.True(t, o.Total().Equal(price("5")))
}

func TestPlace_DebitsAndPlaces(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"p-1": 10})
	o := pendingOrder(t, OrderItem{ProductID: "p-1", Quantity: 3, UnitPrice: price("4.50")})

	require.NoError(t, o.Place(context.Background(), ledger, now))

	assert.Equal(t, StatusPlaced, o.Status())
	assert.Equal(t, 7, ledger.stock["p-1"])
	assert.True(t, o.Total().Equal(price("13.50")))
}

func TestPlace_FoldsLinesAndDebitsInProductOrder(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"a": 5, "b": 5})
	o := pendingOrder(t,
		OrderItem{ProductID: "b", Quantity: 1, UnitPrice: price("1")},
		OrderItem{ProductID: "a", Quantity: 1, UnitPrice: price("1")},
		OrderItem{ProductID: "b", Quantity: 2, UnitPrice: price("1")},
	)

	require.NoError(t, o.Place(context.Background(), ledger, now))

	assert.Equal(t, []string{"a", "b"}, ledger.debits)
	assert.Equal(t, 2, ledger.stock["b"])
}

func TestPlace_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"a": 10, "b": 2})
	o := pendingOrder(t,
		OrderItem{ProductID: "a", Quantity: 4, UnitPrice: price("1")},
		OrderItem{ProductID: "b", Quantity: 5, UnitPrice: price("1")},
	)

	err := o.Place(context.Background(), ledger, now)

	require.Error(t, err)
	assert.Equal(t, StatusPending, o.Status())
	assert.Equal(t, 10, ledger.stock["a"], "debit of a must be compensated")
	assert.Equal(t, 2, ledger.stock["b"])
}

func TestPlace_EmptyOrder(t *testing.T) {
	o := pendingOrder(t)
	err := o.Place(context.Background(), newFakeLedger(nil), now)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StatusPending, o.Status())
}

func TestItemsFrozenAfterPlace(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"p-1": 10})
	o := pendingOrder(t, OrderItem{ProductID: "p-1", Quantity: 1, UnitPrice: price("1")})
	require.NoError(t, o.Place(context.Background(), ledger, now))

	var te *TransitionError
	require.ErrorAs(t, o.AddItem(OrderItem{ProductID: "p-2", Quantity: 1, UnitPrice: price("1")}, now), &te)
	assert.Equal(t, TransitionAddItem, te.Transition)
	assert.ErrorIs(t, o.RemoveItem("p-1", now), ErrInvalidTransition)
}

func TestTransitions_HappyPath(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"p-1": 10})
	o := pendingOrder(t, OrderItem{ProductID: "p-1", Quantity: 1, UnitPrice: price("1")})

	require.NoError(t, o.Place(context.Background(), ledger, now))
	require.NoError(t, o.Confirm(now))
	require.NoError(t, o.Ship("TRK-1", now))
	require.NoError(t, o.Deliver(now))

	assert.Equal(t, StatusDelivered, o.Status())
	assert.Equal(t, "TRK-1", o.TrackingNumber())
}

func TestTransitions_PreconditionsAreReported(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		apply  func(o *Order) error
		want   Transition
	}{
		{"pay before place", StatusPending, func(o *Order) error { return o.Pay(now) }, TransitionPay},
		{"pay twice", StatusProcessing, func(o *Order) error { return o.Pay(now) }, TransitionPay},
		{"confirm pending", StatusPending, func(o *Order) error { return o.Confirm(now) }, TransitionConfirm},
		{"confirm processing", StatusProcessing, func(o *Order) error { return o.Confirm(now) }, TransitionConfirm},
		{"ship placed", StatusPlaced, func(o *Order) error { return o.Ship("T", now) }, TransitionShip},
		{"deliver confirmed", StatusConfirmed, func(o *Order) error { return o.Deliver(now) }, TransitionDeliver},
		{"place twice", StatusPlaced, func(o *Order) error { return o.Place(context.Background(), newFakeLedger(nil), now) }, TransitionPlace},
		{"cancel shipped", StatusShipped, func(o *Order) error {
			_, err := o.Cancel(context.Background(), newFakeLedger(nil), now)
			return err
		}, TransitionCancel},
		{"cancel delivered", StatusDelivered, func(o *Order) error {
			_, err := o.Cancel(context.Background(), newFakeLedger(nil), now)
			return err
		}, TransitionCancel},
		{"cancel cancelled", StatusCancelled, func(o *Order) error {
			_, err := o.Cancel(context.Background(), newFakeLedger(nil), now)
			return err
		}, TransitionCancel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := FromSnapshot(Snapshot{
				ID:      "o-1",
				BuyerID: "b-1",
				Status:  tt.status,
				Items:   []OrderItem{{ProductID: "p-1", Quantity: 1, UnitPrice: price("1")}},
			})
			require.NoError(t, err)

			err = tt.apply(o)

			var te *TransitionError
			require.ErrorAs(t, err, &te)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.want, te.Transition)
			assert.Equal(t, tt.status, te.Status)
			assert.Equal(t, tt.status, o.Status())
		})
	}
}

func TestShip_RequiresTrackingNumber(t *testing.T) {
	o, err := FromSnapshot(Snapshot{ID: "o-1", Status: StatusConfirmed})
	require.NoError(t, err)

	assert.ErrorIs(t, o.Ship("  ", now), ErrValidation)
	assert.Equal(t, StatusConfirmed, o.Status())
}

func TestPay_FromPlaced(t *testing.T) {
	o, err := FromSnapshot(Snapshot{ID: "o-1", Status: StatusPlaced})
	require.NoError(t, err)

	require.NoError(t, o.Pay(now))
	assert.Equal(t, StatusProcessing, o.Status())
	assert.ErrorIs(t, o.Pay(now), ErrInvalidTransition)
}

func TestCancel_RestoresDebitedStock(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"p-1": 10})
	o := pendingOrder(t, OrderItem{ProductID: "p-1", Quantity: 3, UnitPrice: price("2")})
	require.NoError(t, o.Place(context.Background(), ledger, now))
	require.Equal(t, 7, ledger.stock["p-1"])

	failures, err := o.Cancel(context.Background(), ledger, now)

	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, StatusCancelled, o.Status())
	assert.Equal(t, 10, ledger.stock["p-1"])
}

func TestCancel_PendingCreditsNothing(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"p-1": 10})
	o := pendingOrder(t, OrderItem{ProductID: "p-1", Quantity: 3, UnitPrice: price("2")})

	_, err := o.Cancel(context.Background(), ledger, now)

	require.NoError(t, err)
	assert.Equal(t, 10, ledger.stock["p-1"])
}

func TestCancel_CreditFailureIsSwallowedPerItem(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"a": 5, "b": 5})
	o := pendingOrder(t,
		OrderItem{ProductID: "a", Quantity: 2, UnitPrice: price("1")},
		OrderItem{ProductID: "b", Quantity: 3, UnitPrice: price("1")},
	)
	require.NoError(t, o.Place(context.Background(), ledger, now))
	ledger.failCredits["a"] = true

	failures, err := o.Cancel(context.Background(), ledger, now)

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status())
	require.Len(t, failures, 1)
	assert.Equal(t, "a", failures[0].ProductID)
	assert.Equal(t, 2, failures[0].Quantity)
	assert.Equal(t, 5, ledger.stock["b"])
}

func TestCancel_FromProcessingAndConfirmed(t *testing.T) {
	for _, st := range []OrderStatus{StatusProcessing, StatusConfirmed} {
		ledger := newFakeLedger(map[string]int{"p-1": 0})
		o, err := FromSnapshot(Snapshot{
			ID:     "o-1",
			Status: st,
			Items:  []OrderItem{{ProductID: "p-1", Quantity: 4, UnitPrice: price("1")}},
		})
		require.NoError(t, err)

		_, err = o.Cancel(context.Background(), ledger, now)
		require.NoError(t, err, st)
		assert.Equal(t, 4, ledger.stock["p-1"], st)
	}
}

func TestSnapshotRoundTrip_RecomputesTotal(t *testing.T) {
	o, err := FromSnapshot(Snapshot{
		ID:          "o-1",
		Status:      StatusPending,
		Items:       []OrderItem{{ProductID: "p-1", Quantity: 2, UnitPrice: price("1.25")}},
		TotalAmount: price("999"),
	})
	require.NoError(t, err)
	assert.True(t, o.Total().Equal(price("2.50")))

	_, err = FromSnapshot(Snapshot{ID: "o-1", Status: "lost"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseTransition(t *testing.T) {
	tr, err := ParseTransition("ship")
	require.NoError(t, err)
	assert.Equal(t, TransitionShip, tr)

	_, err = ParseTransition("add_item")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPlaced.CanPay())
	assert.False(t, StatusPending.CanPay())
	assert.True(t, StatusProcessing.CanCancel())
	assert.False(t, StatusShipped.CanCancel())
}
