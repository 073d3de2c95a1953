package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/internal/inventory/infrastructure/grpc/inventoryrpc"
)

// Inventory is the read side the server exposes.
type Inventory interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CheckStock(ctx context.Context, requests []domain.Availability) ([]domain.Availability, error)
	ProductsByStore(ctx context.Context, storeID string) ([]domain.Product, error)
	Movements(ctx context.Context, orderID string) ([]domain.StockMovement, error)
}

type Server struct {
	log *slog.Logger
	inv Inventory
}

func NewServer(log *slog.Logger, inv Inventory) *Server { return &Server{log: log, inv: inv} }

func (s *Server) GetProduct(ctx context.Context, req *inventoryrpc.GetProductRequest) (*inventoryrpc.ProductReply, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	p, err := s.inv.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	reply := toProductReply(p)
	return &reply, nil
}

func toProductReply(p domain.Product) inventoryrpc.ProductReply {
	return inventoryrpc.ProductReply{
		ID:          p.ID,
		StoreID:     p.StoreID,
		Name:        p.Name,
		SKU:         p.SKU,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Version:     p.Version,
	}
}

func (s *Server) ListStoreProducts(ctx context.Context, req *inventoryrpc.ListStoreProductsRequest) (*inventoryrpc.ListStoreProductsReply, error) {
	if req.StoreID == "" {
		return nil, status.Error(codes.InvalidArgument, "store_id is required")
	}
	products, err := s.inv.ProductsByStore(ctx, req.StoreID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	reply := &inventoryrpc.ListStoreProductsReply{Products: make([]inventoryrpc.ProductReply, 0, len(products))}
	for _, p := range products {
		reply.Products = append(reply.Products, toProductReply(p))
	}
	return reply, nil
}

// ListOrderMovements reads the stock movement projection for one order.
func (s *Server) ListOrderMovements(ctx context.Context, req *inventoryrpc.ListOrderMovementsRequest) (*inventoryrpc.ListOrderMovementsReply, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	movements, err := s.inv.Movements(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	reply := &inventoryrpc.ListOrderMovementsReply{Movements: make([]inventoryrpc.Movement, 0, len(movements))}
	for _, m := range movements {
		reply.Movements = append(reply.Movements, inventoryrpc.Movement{
			ProductID:  m.ProductID,
			Direction:  string(m.Direction),
			Quantity:   m.Quantity,
			Delta:      m.Delta(),
			OccurredAt: m.OccurredAt,
		})
	}
	return reply, nil
}

func (s *Server) CheckStock(ctx context.Context, req *inventoryrpc.CheckStockRequest) (*inventoryrpc.CheckStockReply, error) {
	requests := make([]domain.Availability, 0, len(req.Lines))
	for _, l := range req.Lines {
		requests = append(requests, domain.Availability{ProductID: l.ProductID, Requested: l.Quantity})
	}
	got, err := s.inv.CheckStock(ctx, requests)
	if err != nil {
		return nil, s.toStatus(err)
	}
	reply := &inventoryrpc.CheckStockReply{Lines: make([]inventoryrpc.LineAvailability, 0, len(got)), Available: true}
	for _, a := range got {
		reply.Lines = append(reply.Lines, inventoryrpc.LineAvailability{ProductID: a.ProductID, Requested: a.Requested, Available: a.Available})
		if !a.Satisfied() {
			reply.Available = false
		}
	}
	return reply, nil
}

func (s *Server) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.log.Error("inventory rpc failed", "err", err)
	return status.Error(codes.Internal, "internal error")
}

func NewGRPCServer(srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	inventoryrpc.RegisterInventoryServer(gs, srv)
	return gs
}

// Run listens on addr and serves in the background.
func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := NewGRPCServer(srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			srv.log.Error("grpc serve stopped", "err", err)
		}
	}()
	return gs, nil
}
