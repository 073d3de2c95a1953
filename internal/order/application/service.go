package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

const aggregateType = "order"

type Service struct {
	log     *slog.Logger
	repo    OrderRepository
	catalog ProductCatalog
	buyers  BuyerDirectory
	clock   Clock
	newID   func() string
	tracer  trace.Tracer
}

type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("order-service") }
}

func NewService(log *slog.Logger, repo OrderRepository, catalog ProductCatalog, buyers BuyerDirectory, opts ...Option) *Service {
	s := &Service{
		log:     log,
		repo:    repo,
		catalog: catalog,
		buyers:  buyers,
		clock:   ClockFunc(time.Now),
		newID:   func() string { return uuid.NewString() },
		tracer:  otel.Tracer("order-service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateOrder opens a pending order for a buyer and adds the requested
// items at the catalog's current prices.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (o *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(attribute.String("buyer.id", cmd.BuyerID)))
	defer func() { endSpan(span, err) }()

	buyer, err := s.buyers.FindBuyer(ctx, cmd.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("create order: buyer %s: %w", cmd.BuyerID, err)
	}
	shipping := firstNonEmpty(cmd.ShippingAddress, buyer.DefaultAddress())
	billing := firstNonEmpty(cmd.BillingAddress, shipping)

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, req := range cmd.Items {
		item, err := s.priceItem(ctx, req.ProductID, req.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.clock.Now()
		created, err := domain.NewOrder(s.newID(), buyer.ID, shipping, billing, cmd.PaymentMethod, now)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := created.AddItem(it, now); err != nil {
				return err
			}
		}
		if err := tx.SaveOrder(ctx, created); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, created.ID(), domain.EventOrderCreated, domain.OrderCreated{
			OrderID:         created.ID(),
			BuyerID:         created.BuyerID(),
			ShippingAddress: created.ShippingAddress(),
			BillingAddress:  created.BillingAddress(),
			PaymentMethod:   created.PaymentMethod(),
			OccurredAt:      now,
		}); err != nil {
			return err
		}
		if len(items) > 0 {
			if err := s.emitItemsChanged(ctx, tx, created, now); err != nil {
				return err
			}
		}
		o = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID()))
	s.log.Info("order created", "order_id", o.ID(), "buyer_id", o.BuyerID(), "items", len(items))
	return o, nil
}

// AddItem appends a line for productID at the catalog's current price.
func (s *Service) AddItem(ctx context.Context, orderID, productID string, quantity int) (o *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.AddItem", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer func() { endSpan(span, err) }()

	item, err := s.priceItem(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	return s.mutateItems(ctx, orderID, func(o *domain.Order, now time.Time) error {
		return o.AddItem(item, now)
	})
}

func (s *Service) RemoveItem(ctx context.Context, orderID, productID string) (o *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.RemoveItem", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("product.id", productID),
	))
	defer func() { endSpan(span, err) }()

	return s.mutateItems(ctx, orderID, func(o *domain.Order, now time.Time) error {
		return o.RemoveItem(productID, now)
	})
}

// ApplyTransition runs one named status transition. Place and cancel adjust
// stock in the same unit of work as the status change.
func (s *Service) ApplyTransition(ctx context.Context, orderID string, t domain.Transition, args TransitionArgs) (o *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ApplyTransition", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("transition", string(t)),
	))
	defer func() { endSpan(span, err) }()

	var restoreFailures []domain.RestoreFailure
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		restoreFailures = nil
		loaded, err := tx.LoadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from := loaded.Status()
		now := s.clock.Now()

		switch t {
		case domain.TransitionPlace:
			err = loaded.Place(ctx, tx.Ledger(), now)
		case domain.TransitionPay:
			err = loaded.Pay(now)
		case domain.TransitionConfirm:
			err = loaded.Confirm(now)
		case domain.TransitionShip:
			err = loaded.Ship(args.TrackingNumber, now)
		case domain.TransitionDeliver:
			err = loaded.Deliver(now)
		case domain.TransitionCancel:
			restoreFailures, err = loaded.Cancel(ctx, tx.Ledger(), now)
		default:
			_, err = domain.ParseTransition(string(t))
		}
		if err != nil {
			return err
		}

		if err := tx.SaveOrder(ctx, loaded); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, loaded.ID(), domain.EventOrderStatusChanged, domain.OrderStatusChanged{
			OrderID:        loaded.ID(),
			Transition:     t,
			From:           from,
			To:             loaded.Status(),
			Items:          loaded.Items(),
			TotalAmount:    loaded.Total(),
			TrackingNumber: loaded.TrackingNumber(),
			OccurredAt:     now,
		}); err != nil {
			return err
		}
		o = loaded
		return nil
	})
	if err != nil {
		s.log.Warn("order transition rejected", "order_id", orderID, "transition", t, "err", err)
		return nil, err
	}

	for _, f := range restoreFailures {
		s.log.Warn("stock restore failed during cancel",
			"order_id", orderID, "product_id", f.ProductID, "quantity", f.Quantity, "err", f.Err)
	}
	s.log.Info("order transitioned", "order_id", o.ID(), "transition", t, "status", o.Status())
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (o *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	return s.repo.Get(ctx, orderID)
}

func (s *Service) ListBuyerOrders(ctx context.Context, buyerID string) (orders []*domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListBuyerOrders", trace.WithAttributes(attribute.String("buyer.id", buyerID)))
	defer func() { endSpan(span, err) }()

	if _, err := s.buyers.FindBuyer(ctx, buyerID); err != nil {
		return nil, err
	}
	orders, err = s.repo.ListByBuyer(ctx, buyerID)
	span.SetAttributes(attribute.Int("orders", len(orders)))
	return orders, err
}

func (s *Service) priceItem(ctx context.Context, productID string, quantity int) (domain.OrderItem, error) {
	if quantity <= 0 {
		return domain.OrderItem{}, fmt.Errorf("%w: item quantity must be positive, got %d", domain.ErrValidation, quantity)
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	return domain.OrderItem{ProductID: p.ID, Quantity: quantity, UnitPrice: p.Price}, nil
}

func (s *Service) mutateItems(ctx context.Context, orderID string, mutate func(*domain.Order, time.Time) error) (*domain.Order, error) {
	var out *domain.Order
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		loaded, err := tx.LoadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := mutate(loaded, now); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, loaded); err != nil {
			return err
		}
		if err := s.emitItemsChanged(ctx, tx, loaded, now); err != nil {
			return err
		}
		out = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) emitItemsChanged(ctx context.Context, tx Tx, o *domain.Order, now time.Time) error {
	return s.emit(ctx, tx, o.ID(), domain.EventOrderItemsChanged, domain.OrderItemsChanged{
		OrderID:     o.ID(),
		Items:       o.Items(),
		TotalAmount: o.Total(),
		OccurredAt:  now,
	})
}

func (s *Service) emit(ctx context.Context, tx Tx, orderID, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return tx.AppendEvent(ctx, outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   orderID,
		Type:          eventType,
		Payload:       payload,
		Headers:       map[string]string{"source": "order-service"},
		Traceparent:   tracing.Traceparent(ctx),
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
