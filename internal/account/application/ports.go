package application

import (
	"context"

	"github.com/dmehra2102/storefront/internal/account/domain"
)

type AccountRepository interface {
	Get(ctx context.Context, id string) (domain.Account, error)
	SaveFollow(ctx context.Context, f domain.Follow) error
	DeleteFollow(ctx context.Context, buyerID, sellerID string) error
	Following(ctx context.Context, buyerID string) ([]domain.Seller, error)
	// SaveStore inserts or updates a store. A store id already owned by a
	// different seller is rejected with ErrInvalidStore.
	SaveStore(ctx context.Context, s domain.Store) error
	StoresBySeller(ctx context.Context, sellerID string) ([]domain.Store, error)
}
