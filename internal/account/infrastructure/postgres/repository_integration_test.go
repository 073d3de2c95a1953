//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront/internal/account/domain"
	accountpg "github.com/dmehra2102/storefront/internal/account/infrastructure/postgres"
	inventorydomain "github.com/dmehra2102/storefront/internal/inventory/domain"
	invpg "github.com/dmehra2102/storefront/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/storefront/test/integration"
)

func TestStoreOwnershipOnPostgres(t *testing.T) {
	ctx := context.Background()
	env, err := integration.Setup(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(context.Background()) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := accountpg.NewRepository(log, env.Pool)
	for _, id := range []string{"s-1", "s-2"} {
		require.NoError(t, repo.SaveAccount(ctx, domain.Seller{Profile: domain.Profile{ID: id, Name: id}, StoreName: id}))
	}

	require.NoError(t, repo.SaveStore(ctx, domain.Store{ID: "st-2", SellerID: "s-1", Name: "Two"}))
	require.NoError(t, repo.SaveStore(ctx, domain.Store{ID: "st-1", SellerID: "s-1", Name: "One"}))
	require.NoError(t, repo.SaveStore(ctx, domain.Store{ID: "st-1", SellerID: "s-1", Name: "One again"}))
	err = repo.SaveStore(ctx, domain.Store{ID: "st-1", SellerID: "s-2", Name: "Taken"})
	assert.ErrorIs(t, err, domain.ErrInvalidStore)

	stores, err := repo.StoresBySeller(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "One again", stores[0].Name)
	assert.Equal(t, "st-2", stores[1].ID)

	catalog := invpg.NewRepository(log, env.Pool)
	for _, p := range []inventorydomain.Product{
		{ID: "p-2", StoreID: "st-1", Name: "Mug", Price: decimal.NewFromInt(3), Quantity: 1},
		{ID: "p-1", StoreID: "st-1", Name: "Cup", Price: decimal.NewFromInt(2), Quantity: 1},
		{ID: "p-3", StoreID: "st-2", Name: "Jug", Price: decimal.NewFromInt(9), Quantity: 1},
	} {
		require.NoError(t, catalog.SaveProduct(ctx, p))
	}
	products, err := catalog.ProductsByStore(ctx, "st-1")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p-1", products[0].ID)
	assert.Equal(t, "p-2", products[1].ID)
}
