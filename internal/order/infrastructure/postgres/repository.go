package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	invpg "github.com/dmehra2102/storefront/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/database"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// WithinTx runs fn in one Postgres transaction. The order row, product rows
// and outbox rows fn touches commit or roll back together.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &unit{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		r.log.Warn("order transaction commit failed", "err", err)
		return classify(err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return loadOrder(ctx, r.pool, id, false)
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at, id`, buyerID)
	if err != nil {
		return nil, err
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Snapshot, error) { return scanOrder(row) })
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}
	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Order, 0, len(snaps))
	for _, s := range snaps {
		s.Items = items[s.ID]
		o, err := domain.FromSnapshot(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

type unit struct {
	tx pgx.Tx
}

func (u *unit) LoadOrder(ctx context.Context, id string) (*domain.Order, error) {
	return loadOrder(ctx, u.tx, id, true)
}

// SaveOrder writes the order if its version still matches the stored one
// and bumps the version on o.
func (u *unit) SaveOrder(ctx context.Context, o *domain.Order) error {
	s := o.Snapshot()
	next := s.Version + 1

	var tag int64
	if s.Version == 0 {
		ct, err := u.tx.Exec(ctx, `INSERT INTO orders (id, buyer_id, status, total_amount, shipping_address, billing_address,
				payment_method, tracking_number, created_at, updated_at, version)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (id) DO NOTHING`,
			s.ID, s.BuyerID, string(s.Status), s.TotalAmount, s.ShippingAddress, s.BillingAddress,
			s.PaymentMethod, s.TrackingNumber, s.CreatedAt, s.UpdatedAt, next)
		if err != nil {
			return err
		}
		tag = ct.RowsAffected()
	} else {
		ct, err := u.tx.Exec(ctx, `UPDATE orders SET status=$2, total_amount=$3, shipping_address=$4, billing_address=$5,
				payment_method=$6, tracking_number=$7, updated_at=$8, version=$9
			WHERE id=$1 AND version=$10`,
			s.ID, string(s.Status), s.TotalAmount, s.ShippingAddress, s.BillingAddress,
			s.PaymentMethod, s.TrackingNumber, s.UpdatedAt, next, s.Version)
		if err != nil {
			return err
		}
		tag = ct.RowsAffected()
	}
	if tag == 0 {
		return fmt.Errorf("order %s at version %d: %w", s.ID, s.Version, domain.ErrConflict)
	}

	if _, err := u.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, s.ID); err != nil {
		return err
	}
	if len(s.Items) > 0 {
		batch := &pgx.Batch{}
		for i, it := range s.Items {
			batch.Queue(`INSERT INTO order_items (order_id, line, product_id, quantity, unit_price) VALUES ($1,$2,$3,$4,$5)`,
				s.ID, i, it.ProductID, it.Quantity, it.UnitPrice)
		}
		if err := u.tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	s.Version = next
	saved, err := domain.FromSnapshot(s)
	if err != nil {
		return err
	}
	*o = *saved
	return nil
}

func (u *unit) Ledger() domain.StockLedger { return invpg.NewLedger(u.tx) }

func (u *unit) AppendEvent(ctx context.Context, ev outbox.Event) error {
	return outbox.Insert(ctx, u.tx, ev)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `id, buyer_id, status, total_amount, shipping_address, billing_address, payment_method,
	tracking_number, created_at, updated_at, version`

func scanOrder(row pgx.Row) (domain.Snapshot, error) {
	var s domain.Snapshot
	var status string
	err := row.Scan(&s.ID, &s.BuyerID, &status, &s.TotalAmount, &s.ShippingAddress, &s.BillingAddress,
		&s.PaymentMethod, &s.TrackingNumber, &s.CreatedAt, &s.UpdatedAt, &s.Version)
	s.Status = domain.OrderStatus(status)
	return s, err
}

func loadOrder(ctx context.Context, q querier, id string, lock bool) (*domain.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	s, err := scanOrder(q.QueryRow(ctx, sql, id))
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	s.Items = items[id]
	return domain.FromSnapshot(s)
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT order_id, product_id, quantity, unit_price FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, line`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func classify(err error) error {
	if database.IsConflict(err) && !errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}
