package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/pkg/database"
)

// Ledger adjusts product quantities inside a caller-owned transaction. Each
// adjustment runs in its own savepoint so a failed statement does not abort
// the enclosing transaction; Postgres would otherwise reject every later
// statement, including the credits that compensate a failed placement.
type Ledger struct {
	tx pgx.Tx
}

func NewLedger(tx pgx.Tx) *Ledger { return &Ledger{tx: tx} }

// Debit takes amount units from productID. The conditional UPDATE holds the
// row lock until the enclosing transaction ends, so two debits of the same
// product never interleave.
func (l *Ledger) Debit(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit product %s by %d: %w", productID, amount, domain.ErrInvalidQuantity)
	}
	var left int
	err := l.savepoint(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE products SET quantity = quantity - $2, version = version + 1
			WHERE id = $1 AND quantity >= $2
			RETURNING quantity`, productID, amount).Scan(&left)
		if !database.IsNoRows(err) {
			return err
		}
		var available int
		if err := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available); err != nil {
			if database.IsNoRows(err) {
				return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
			}
			return err
		}
		left = available
		return &domain.InsufficientStockError{ProductID: productID, Available: available, Requested: amount}
	})
	return left, err
}

func (l *Ledger) Credit(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit product %s by %d: %w", productID, amount, domain.ErrInvalidQuantity)
	}
	var left int
	err := l.savepoint(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE products SET quantity = quantity + $2, version = version + 1
			WHERE id = $1
			RETURNING quantity`, productID, amount).Scan(&left)
		if database.IsNoRows(err) {
			return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
		}
		return err
	})
	return left, err
}

func (l *Ledger) savepoint(ctx context.Context, fn func(pgx.Tx) error) error {
	sp, err := l.tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}
