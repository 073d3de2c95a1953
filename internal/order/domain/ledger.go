package domain

import "context"

// StockLedger debits and credits product quantities. Both calls must be
// linearizable per product.
type StockLedger interface {
	Debit(ctx context.Context, productID string, amount int) (int, error)
	Credit(ctx context.Context, productID string, amount int) (int, error)
}

// RestoreFailure records a cancel-time credit that did not apply.
type RestoreFailure struct {
	ProductID string
	Quantity  int
	Err       error
}
