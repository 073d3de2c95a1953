package grpc

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	inventorydomain "github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/internal/inventory/infrastructure/grpc/inventoryrpc"
)

// InventoryClient resolves catalog entries through the inventory-service.
type InventoryClient struct {
	log  *slog.Logger
	conn *grpc.ClientConn
	cc   *inventoryrpc.InventoryClient
}

func NewInventoryClient(log *slog.Logger, addr string, opts ...grpc.DialOption) (*InventoryClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &InventoryClient{
		log:  log,
		conn: conn,
		cc:   inventoryrpc.NewInventoryClient(conn),
	}, nil
}

func (c *InventoryClient) Close() error { return c.conn.Close() }

func (c *InventoryClient) GetProduct(ctx context.Context, id string) (inventorydomain.Product, error) {
	resp, err := c.cc.GetProduct(ctx, &inventoryrpc.GetProductRequest{ProductID: id})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return inventorydomain.Product{}, fmt.Errorf("product %s: %w", id, inventorydomain.ErrProductNotFound)
		}
		return inventorydomain.Product{}, fmt.Errorf("inventory GetProduct %s: %w", id, err)
	}
	return inventorydomain.Product{
		ID:          resp.ID,
		StoreID:     resp.StoreID,
		Name:        resp.Name,
		SKU:         resp.SKU,
		Description: resp.Description,
		Price:       resp.Price,
		Quantity:    resp.Quantity,
		Version:     resp.Version,
	}, nil
}

// CheckStock reports whether every line is currently satisfiable. The answer
// is advisory; placement re-checks under lock.
func (c *InventoryClient) CheckStock(ctx context.Context, lines map[string]int) (bool, error) {
	req := &inventoryrpc.CheckStockRequest{Lines: make([]inventoryrpc.StockLine, 0, len(lines))}
	for id, qty := range lines {
		req.Lines = append(req.Lines, inventoryrpc.StockLine{ProductID: id, Quantity: qty})
	}
	resp, err := c.cc.CheckStock(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Available, nil
}
