package application

import (
	"context"
	"time"

	accountdomain "github.com/dmehra2102/storefront/internal/account/domain"
	inventorydomain "github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

// Tx is the view of one unit of work. Orders loaded through it are locked
// until the unit of work ends; ledger adjustments and outbox events commit
// or roll back together with SaveOrder.
type Tx interface {
	LoadOrder(ctx context.Context, id string) (*domain.Order, error)
	SaveOrder(ctx context.Context, o *domain.Order) error
	Ledger() domain.StockLedger
	AppendEvent(ctx context.Context, ev outbox.Event) error
}

// OrderRepository runs units of work and serves unlocked reads.
type OrderRepository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
}

// ProductCatalog resolves products by id for price capture.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (inventorydomain.Product, error)
}

// BuyerDirectory resolves buyers by id.
type BuyerDirectory interface {
	FindBuyer(ctx context.Context, id string) (accountdomain.Buyer, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
