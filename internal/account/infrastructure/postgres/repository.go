package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront/internal/account/domain"
	"github.com/dmehra2102/storefront/pkg/database"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const accountColumns = `a.id, a.role, a.name, a.email, a.phone, a.addresses, a.store_name, a.seller_type,
	a.business_registration, a.tax_id, a.rating, a.created_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		p                                       domain.Profile
		role                                    string
		addresses                               []string
		storeName, sellerType, businessReg, tax string
		rating                                  float64
	)
	if err := row.Scan(&p.ID, &role, &p.Name, &p.Email, &p.Phone, &addresses, &storeName, &sellerType,
		&businessReg, &tax, &rating, &p.CreatedAt); err != nil {
		return nil, err
	}
	switch domain.Role(role) {
	case domain.RoleBuyer:
		return domain.Buyer{Profile: p, Addresses: addresses}, nil
	case domain.RoleSeller:
		return domain.Seller{Profile: p, StoreName: storeName, SellerType: sellerType,
			BusinessRegistration: businessReg, TaxID: tax, Rating: rating}, nil
	}
	return nil, fmt.Errorf("account %s has unknown role %q", p.ID, role)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, id))
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}
	return a, err
}

// SaveAccount inserts or replaces an account of either role.
func (r *Repository) SaveAccount(ctx context.Context, a domain.Account) error {
	p := a.Base()
	var (
		addresses                               = []string{}
		storeName, sellerType, businessReg, tax string
		rating                                  float64
	)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	switch v := a.(type) {
	case domain.Buyer:
		if v.Addresses != nil {
			addresses = v.Addresses
		}
	case domain.Seller:
		storeName, sellerType, businessReg, tax, rating = v.StoreName, v.SellerType, v.BusinessRegistration, v.TaxID, v.Rating
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO accounts (id, role, name, email, phone, addresses, store_name, seller_type,
			business_registration, tax_id, rating, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			addresses = EXCLUDED.addresses, store_name = EXCLUDED.store_name, seller_type = EXCLUDED.seller_type,
			business_registration = EXCLUDED.business_registration, tax_id = EXCLUDED.tax_id, rating = EXCLUDED.rating`,
		p.ID, string(a.Role()), p.Name, p.Email, p.Phone, addresses, storeName, sellerType, businessReg, tax, rating, p.CreatedAt)
	return err
}

func (r *Repository) SaveFollow(ctx context.Context, f domain.Follow) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO follows (buyer_id, seller_id, followed_at) VALUES ($1, $2, $3)
		ON CONFLICT (buyer_id, seller_id) DO NOTHING`, f.BuyerID, f.SellerID, f.FollowedAt)
	return err
}

func (r *Repository) DeleteFollow(ctx context.Context, buyerID, sellerID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM follows WHERE buyer_id = $1 AND seller_id = $2`, buyerID, sellerID)
	return err
}

func (r *Repository) SaveStore(ctx context.Context, s domain.Store) error {
	tag, err := r.pool.Exec(ctx, `INSERT INTO stores (id, seller_id, name, content) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, content = EXCLUDED.content
		WHERE stores.seller_id = EXCLUDED.seller_id`, s.ID, s.SellerID, s.Name, s.Content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: store %s belongs to another seller", domain.ErrInvalidStore, s.ID)
	}
	return nil
}

func (r *Repository) StoresBySeller(ctx context.Context, sellerID string) ([]domain.Store, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, seller_id, name, content FROM stores WHERE seller_id = $1 ORDER BY id`, sellerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Store, error) {
		var s domain.Store
		err := row.Scan(&s.ID, &s.SellerID, &s.Name, &s.Content)
		return s, err
	})
}

func (r *Repository) Following(ctx context.Context, buyerID string) ([]domain.Seller, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM follows f
		JOIN accounts a ON a.id = f.seller_id
		WHERE f.buyer_id = $1
		ORDER BY f.followed_at, a.id`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Seller
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		s, err := domain.AsSeller(a)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
