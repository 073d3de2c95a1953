package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	accountdomain "github.com/dmehra2102/storefront/internal/account/domain"
	accountmem "github.com/dmehra2102/storefront/internal/account/infrastructure/memory"
	inventorydomain "github.com/dmehra2102/storefront/internal/inventory/domain"
	ordermem "github.com/dmehra2102/storefront/internal/order/infrastructure/memory"
)

// seedDemo gives STORAGE=memory something to order against.
func seedDemo(ctx context.Context, orders *ordermem.Store, accounts *accountmem.Store) error {
	now := time.Now().UTC()
	demo := []accountdomain.Account{
		accountdomain.Buyer{
			Profile:   accountdomain.Profile{ID: "buyer-1", Name: "Demo Buyer", Email: "buyer@example.com", CreatedAt: now},
			Addresses: []string{"1 Market St, Springfield"},
		},
		accountdomain.Seller{
			Profile:   accountdomain.Profile{ID: "seller-1", Name: "Demo Seller", Email: "seller@example.com", CreatedAt: now},
			StoreName: "Demo Goods",
			Rating:    4.5,
		},
	}
	for _, a := range demo {
		if err := accounts.SaveAccount(ctx, a); err != nil {
			return err
		}
	}
	store := accountdomain.Store{ID: "store-1", SellerID: "seller-1", Name: "Demo Goods"}
	if err := accounts.SaveStore(ctx, store); err != nil {
		return err
	}

	products := []struct {
		id, name, sku, price string
		qty                  int
	}{
		{"prod-1", "Notebook", "NB-A5", "4.99", 100},
		{"prod-2", "Fountain pen", "FP-01", "24.50", 20},
		{"prod-3", "Ink bottle", "INK-BLU", "8.00", 5},
	}
	for _, p := range products {
		prod, err := inventorydomain.NewProduct(p.id, store.ID, p.name, p.sku, decimal.RequireFromString(p.price), p.qty)
		if err != nil {
			return err
		}
		if err := orders.PutProduct(prod); err != nil {
			return err
		}
	}
	return nil
}
