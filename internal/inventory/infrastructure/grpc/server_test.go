package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/internal/inventory/infrastructure/grpc/inventoryrpc"
)

type fakeInventory struct {
	products  []domain.Product
	movements []domain.StockMovement
}

func (f fakeInventory) GetProduct(_ context.Context, id string) (domain.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

func (f fakeInventory) CheckStock(context.Context, []domain.Availability) ([]domain.Availability, error) {
	return nil, nil
}

func (f fakeInventory) ProductsByStore(_ context.Context, storeID string) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		if p.StoreID == storeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f fakeInventory) Movements(_ context.Context, orderID string) ([]domain.StockMovement, error) {
	var out []domain.StockMovement
	for _, m := range f.movements {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func dial(t *testing.T, inv Inventory) *inventoryrpc.InventoryClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), inv))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return inventoryrpc.NewInventoryClient(conn)
}

func TestListStoreProducts(t *testing.T) {
	client := dial(t, fakeInventory{products: []domain.Product{
		{ID: "p-1", StoreID: "st-1", Name: "Mug", Price: decimal.RequireFromString("3.10"), Quantity: 2},
		{ID: "p-2", StoreID: "st-2", Name: "Cup"},
	}})
	ctx := context.Background()

	reply, err := client.ListStoreProducts(ctx, &inventoryrpc.ListStoreProductsRequest{StoreID: "st-1"})
	require.NoError(t, err)
	require.Len(t, reply.Products, 1)
	assert.Equal(t, "Mug", reply.Products[0].Name)
	assert.True(t, reply.Products[0].Price.Equal(decimal.RequireFromString("3.10")))

	_, err = client.ListStoreProducts(ctx, &inventoryrpc.ListStoreProductsRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListOrderMovements(t *testing.T) {
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	client := dial(t, fakeInventory{movements: []domain.StockMovement{
		{OrderID: "o-1", ProductID: "p-1", Direction: domain.DirectionDebit, Quantity: 3, OccurredAt: at},
		{OrderID: "o-1", ProductID: "p-1", Direction: domain.DirectionCredit, Quantity: 3, OccurredAt: at.Add(time.Minute)},
		{OrderID: "o-2", ProductID: "p-9", Direction: domain.DirectionDebit, Quantity: 1, OccurredAt: at},
	}})

	reply, err := client.ListOrderMovements(context.Background(), &inventoryrpc.ListOrderMovementsRequest{OrderID: "o-1"})

	require.NoError(t, err)
	require.Len(t, reply.Movements, 2)
	assert.Equal(t, -3, reply.Movements[0].Delta)
	assert.Equal(t, "credit", reply.Movements[1].Direction)
	assert.Equal(t, 3, reply.Movements[1].Delta)
	assert.True(t, at.Equal(reply.Movements[0].OccurredAt))
}

func TestGetProduct_NotFoundStatus(t *testing.T) {
	client := dial(t, fakeInventory{})

	_, err := client.GetProduct(context.Background(), &inventoryrpc.GetProductRequest{ProductID: "ghost"})

	assert.Equal(t, codes.NotFound, status.Code(err))
}
