package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cicadacove/storefront/internal/auth"
	cartservice "github.com/cicadacove/storefront/internal/cart/service"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Carts interface {
	Summary(ctx context.Context, sessionID, method string) (*cartservice.CartSummary, error)
	AddItem(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type CartHandler struct {
	carts   Carts
	timeout time.Duration
}

func NewCartHandler(carts Carts, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondSummary(ctx, w, r, http.StatusOK)
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondBadBody(w, err)
		return
	}

	var v domain.ValidationError
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		v.Add("productId")
	}
	if req.Quantity < 1 || req.Quantity > domain.MaxQuantity {
		v.Add("quantity")
	}
	if respondValidation(w, v.Err()) {
		return
	}

	if _, err := h.carts.AddItem(ctx, auth.CartSession(ctx), productID, req.Quantity); err != nil {
		respondCartError(w, err)
		return
	}
	h.respondSummary(ctx, w, r, http.StatusCreated)
}

// PATCH /api/cart/items/{productId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondBadBody(w, err)
		return
	}

	if _, err := h.carts.UpdateQuantity(ctx, auth.CartSession(ctx), productID, req.Quantity); err != nil {
		respondCartError(w, err)
		return
	}
	h.respondSummary(ctx, w, r, http.StatusOK)
}

// DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.carts.RemoveItem(ctx, auth.CartSession(ctx), productID); err != nil {
		respondCartError(w, err)
		return
	}
	h.respondSummary(ctx, w, r, http.StatusOK)
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.Clear(ctx, auth.CartSession(ctx)); err != nil {
		respondCartError(w, err)
		return
	}
	h.respondSummary(ctx, w, r, http.StatusOK)
}

func (h *CartHandler) respondSummary(ctx context.Context, w http.ResponseWriter, r *http.Request, status int) {
	summary, err := h.carts.Summary(ctx, auth.CartSession(ctx), r.URL.Query().Get("shippingMethod"))
	if err != nil {
		respondCartError(w, err)
		return
	}
	respondJSON(w, status, summary)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func respondCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cartservice.ErrProductUnavailable):
		respondError(w, http.StatusBadRequest, "product_unavailable", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrQuantityLimit):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	default:
		respondInternal(w, err)
	}
}
