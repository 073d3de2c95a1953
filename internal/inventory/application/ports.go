package application

import (
	"context"

	"github.com/dmehra2102/storefront/internal/inventory/domain"
)

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ProductsByStore(ctx context.Context, storeID string) ([]domain.Product, error)
}

// MovementRepository stores the stock movement projection. RecordMovements
// must ignore movements it has already stored.
type MovementRepository interface {
	RecordMovements(ctx context.Context, movements []domain.StockMovement) (int, error)
	Movements(ctx context.Context, orderID string) ([]domain.StockMovement, error)
}
