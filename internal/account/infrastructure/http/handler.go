package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmehra2102/storefront/internal/account/domain"
)

type Accounts interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	Follow(ctx context.Context, buyerID, sellerID string) error
	Unfollow(ctx context.Context, buyerID, sellerID string) error
	Following(ctx context.Context, buyerID string) ([]domain.Seller, error)
	OpenStore(ctx context.Context, st domain.Store) error
	StoresBySeller(ctx context.Context, sellerID string) ([]domain.Store, error)
}

type Handler struct {
	log     *slog.Logger
	service Accounts
}

func NewHandler(log *slog.Logger, service Accounts) *Handler {
	return &Handler{log: log, service: service}
}

// Routes serves the account API; mount it under /accounts.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{id}", h.getAccount)
	r.Get("/{buyerID}/following", h.following)
	r.Put("/{buyerID}/following/{sellerID}", h.follow)
	r.Delete("/{buyerID}/following/{sellerID}", h.unfollow)
	r.Get("/{sellerID}/stores", h.stores)
	r.Post("/{sellerID}/stores", h.openStore)
	return r
}

type accountResponse struct {
	ID                   string    `json:"id"`
	Role                 string    `json:"role"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	Addresses            []string  `json:"addresses,omitempty"`
	StoreName            string    `json:"store_name,omitempty"`
	SellerType           string    `json:"seller_type,omitempty"`
	BusinessRegistration string    `json:"business_registration,omitempty"`
	Rating               *float64  `json:"rating,omitempty"`
}

func toResponse(a domain.Account) accountResponse {
	p := a.Base()
	out := accountResponse{
		ID:        p.ID,
		Role:      string(a.Role()),
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt,
	}
	switch v := a.(type) {
	case domain.Buyer:
		out.Addresses = v.Addresses
	case domain.Seller:
		out.StoreName = v.StoreName
		out.SellerType = v.SellerType
		out.BusinessRegistration = v.BusinessRegistration
		rating := v.Rating
		out.Rating = &rating
	}
	return out
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) following(w http.ResponseWriter, r *http.Request) {
	sellers, err := h.service.Following(r.Context(), chi.URLParam(r, "buyerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(sellers))
	for _, s := range sellers {
		out = append(out, toResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Follow(r.Context(), chi.URLParam(r, "buyerID"), chi.URLParam(r, "sellerID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unfollow(r.Context(), chi.URLParam(r, "buyerID"), chi.URLParam(r, "sellerID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type storeRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type storeResponse struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
	Name     string `json:"name"`
	Content  string `json:"content,omitempty"`
}

func toStoreResponse(st domain.Store) storeResponse {
	return storeResponse{ID: st.ID, SellerID: st.SellerID, Name: st.Name, Content: st.Content}
}

func (h *Handler) stores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.StoresBySeller(r.Context(), chi.URLParam(r, "sellerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]storeResponse, 0, len(stores))
	for _, st := range stores {
		out = append(out, toStoreResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) openStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error(), "code": "validation"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	st := domain.Store{ID: req.ID, SellerID: chi.URLParam(r, "sellerID"), Name: req.Name, Content: req.Content}
	if err := h.service.OpenStore(r.Context(), st); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoreResponse(st))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, domain.ErrRoleMismatch), errors.Is(err, domain.ErrInvalidStore):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "code": "validation"})
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error", "code": "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
