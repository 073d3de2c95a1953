package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	accountdomain "github.com/dmehra2102/storefront/internal/account/domain"
	inventorydomain "github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
)

// Orders is the application surface the handler drives.
type Orders interface {
	CreateOrder(ctx context.Context, cmd application.CreateOrderCommand) (*domain.Order, error)
	AddItem(ctx context.Context, orderID, productID string, quantity int) (*domain.Order, error)
	RemoveItem(ctx context.Context, orderID, productID string) (*domain.Order, error)
	ApplyTransition(ctx context.Context, orderID string, t domain.Transition, args application.TransitionArgs) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID string) ([]*domain.Order, error)
}

type Handler struct {
	log     *slog.Logger
	service Orders
}

func NewHandler(log *slog.Logger, service Orders) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// Routes mounts the order API. Command routes go through commandMW, which
// is where the Idempotency-Key middleware plugs in.
func (h *Handler) Routes(commandMW ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/buyers/{id}/orders", h.listBuyerOrders)

	r.Group(func(r chi.Router) {
		r.Use(commandMW...)
		r.Post("/orders", h.createOrder)
		r.Post("/orders/{id}/items", h.addItem)
		r.Delete("/orders/{id}/items/{productID}", h.removeItem)
		r.Post("/orders/{id}/{transition}", h.transition)
	})
	return r
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	BuyerID         string        `json:"buyer_id"`
	Items           []itemRequest `json:"items"`
	ShippingAddress string        `json:"shipping_address"`
	BillingAddress  string        `json:"billing_address"`
	PaymentMethod   string        `json:"payment_method"`
}

type transitionRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

type itemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID              string          `json:"id"`
	BuyerID         string          `json:"buyer_id"`
	Status          string          `json:"status"`
	Items           []itemResponse  `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	PaymentMethod   string          `json:"payment_method"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int64           `json:"version"`
}

func toResponse(o *domain.Order) orderResponse {
	items := o.Items()
	out := orderResponse{
		ID:              o.ID(),
		BuyerID:         o.BuyerID(),
		Status:          string(o.Status()),
		Items:           make([]itemResponse, 0, len(items)),
		TotalAmount:     o.Total(),
		ShippingAddress: o.ShippingAddress(),
		BillingAddress:  o.BillingAddress(),
		PaymentMethod:   o.PaymentMethod(),
		TrackingNumber:  o.TrackingNumber(),
		CreatedAt:       o.CreatedAt(),
		UpdatedAt:       o.UpdatedAt(),
		Version:         o.Version(),
	}
	for _, it := range items {
		out.Items = append(out.Items, itemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	return out
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	cmd := application.CreateOrderCommand{
		BuyerID:         req.BuyerID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, application.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.service.CreateOrder(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/orders/"+o.ID())
	writeJSON(w, http.StatusCreated, toResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) listBuyerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListBuyerOrders(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	o, err := h.service.AddItem(r.Context(), chi.URLParam(r, "id"), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseTransition(chi.URLParam(r, "transition"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req transitionRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	o, err := h.service.ApplyTransition(r.Context(), chi.URLParam(r, "id"), t, application.TransitionArgs{TrackingNumber: req.TrackingNumber})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error(), Code: "validation"})
	return false
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusFor maps a service error onto an HTTP status and a stable code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, inventorydomain.ErrProductNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, inventorydomain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, accountdomain.ErrRoleMismatch):
		return http.StatusBadRequest, "validation"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err,
			"trace_id", trace.SpanContextFromContext(r.Context()).TraceID().String())
		msg = "internal error"
	}
	if code == "conflict" {
		w.Header().Set("Retry-After", "0")
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
