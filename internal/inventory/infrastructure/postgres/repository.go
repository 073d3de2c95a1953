package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/pkg/database"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

const productColumns = `id, COALESCE(store_id, ''), name, sku, description, price, quantity, version`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Quantity, &p.Version)
	return p, err
}

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrProductNotFound)
	}
	return p, err
}

// GetProducts returns the products found among ids, keyed by id. Missing ids
// are simply absent.
func (r *Repository) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ProductsByStore lists the products a store owns, ordered by id.
func (r *Repository) ProductsByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE store_id = $1 ORDER BY id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProduct inserts or replaces a catalog entry, quantity included.
func (r *Repository) SaveProduct(ctx context.Context, p domain.Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, store_id, name, sku, description, price, quantity, version)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, 0)
		ON CONFLICT (id) DO UPDATE SET store_id = EXCLUDED.store_id, name = EXCLUDED.name, sku = EXCLUDED.sku,
			description = EXCLUDED.description, price = EXCLUDED.price, quantity = EXCLUDED.quantity,
			version = products.version + 1`,
		p.ID, p.StoreID, p.Name, p.SKU, p.Description, p.Price, p.Quantity)
	return err
}

// RecordMovements stores each movement once per (order, product, direction)
// and returns how many were new.
func (r *Repository) RecordMovements(ctx context.Context, movements []domain.StockMovement) (int, error) {
	if len(movements) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, m := range movements {
		batch.Queue(`INSERT INTO stock_movements (order_id, product_id, direction, quantity, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (order_id, product_id, direction) DO NOTHING`,
			m.OrderID, m.ProductID, string(m.Direction), m.Quantity, m.OccurredAt)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range movements {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, br.Close()
}

func (r *Repository) Movements(ctx context.Context, orderID string) ([]domain.StockMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, product_id, direction, quantity, occurred_at
		FROM stock_movements WHERE order_id = $1 ORDER BY occurred_at, product_id, direction`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		var dir string
		if err := rows.Scan(&m.OrderID, &m.ProductID, &dir, &m.Quantity, &m.OccurredAt); err != nil {
			return nil, err
		}
		m.Direction = domain.Direction(dir)
		out = append(out, m)
	}
	return out, rows.Err()
}
