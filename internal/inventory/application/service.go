package application

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront/internal/inventory/domain"
	orderdomain "github.com/dmehra2102/storefront/internal/order/domain"
)

type Service struct {
	log       *slog.Logger
	products  ProductRepository
	movements MovementRepository
	tracer    trace.Tracer
}

func NewService(log *slog.Logger, products ProductRepository, movements MovementRepository) *Service {
	return &Service{
		log:       log,
		products:  products,
		movements: movements,
		tracer:    otel.Tracer("inventory-service"),
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *Service) ProductsByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	return s.products.ProductsByStore(ctx, storeID)
}

// CheckStock answers, per requested line, how much of the product is on
// hand. It reads without locking, so a satisfied answer is advisory only.
func (s *Service) CheckStock(ctx context.Context, requests []domain.Availability) ([]domain.Availability, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.CheckStock", trace.WithAttributes(attribute.Int("lines", len(requests))))
	defer span.End()

	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		if r.Requested <= 0 {
			return nil, fmt.Errorf("check product %s for %d: %w", r.ProductID, r.Requested, domain.ErrInvalidQuantity)
		}
		ids = append(ids, r.ProductID)
	}
	found, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Availability, 0, len(requests))
	for _, r := range requests {
		p, ok := found[r.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", r.ProductID, domain.ErrProductNotFound)
		}
		out = append(out, domain.Availability{ProductID: r.ProductID, Requested: r.Requested, Available: p.Quantity})
	}
	return out, nil
}

// ApplyOrderStatusChanged projects the stock moved by an order transition.
// Transitions that moved no stock are ignored.
func (s *Service) ApplyOrderStatusChanged(ctx context.Context, ev orderdomain.OrderStatusChanged) error {
	if !ev.StockMoved() {
		return nil
	}
	movements := MovementsFor(ev)
	n, err := s.movements.RecordMovements(ctx, movements)
	if err != nil {
		return fmt.Errorf("record movements for order %s: %w", ev.OrderID, err)
	}
	s.log.Info("stock movements recorded", "order_id", ev.OrderID, "transition", ev.Transition, "new", n, "total", len(movements))
	return nil
}

func (s *Service) Movements(ctx context.Context, orderID string) ([]domain.StockMovement, error) {
	return s.movements.Movements(ctx, orderID)
}

// MovementsFor folds the event's lines per product, mirroring how the order
// debited the ledger.
func MovementsFor(ev orderdomain.OrderStatusChanged) []domain.StockMovement {
	dir := domain.DirectionDebit
	if ev.To == orderdomain.StatusCancelled {
		dir = domain.DirectionCredit
	}
	qty := make(map[string]int, len(ev.Items))
	var order []string
	for _, it := range ev.Items {
		if _, ok := qty[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	out := make([]domain.StockMovement, 0, len(order))
	for _, id := range order {
		out = append(out, domain.StockMovement{
			OrderID:    ev.OrderID,
			ProductID:  id,
			Direction:  dir,
			Quantity:   qty[id],
			OccurredAt: ev.OccurredAt,
		})
	}
	return out
}
