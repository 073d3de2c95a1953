package domain

import "time"

type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// StockMovement is one projected ledger adjustment caused by an order
// transition.
type StockMovement struct {
	OrderID    string
	ProductID  string
	Direction  Direction
	Quantity   int
	OccurredAt time.Time
}

// Delta is the signed change the movement applied to the product quantity.
func (m StockMovement) Delta() int {
	if m.Direction == DirectionDebit {
		return -m.Quantity
	}
	return m.Quantity
}

// Availability is the answer to a stock check for one requested line.
type Availability struct {
	ProductID string
	Requested int
	Available int
}

func (a Availability) Satisfied() bool { return a.Available >= a.Requested }
