package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cicadacove/storefront/internal/auth"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Orders interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  Orders
	auth    *Auth
	timeout time.Duration
}

func NewOrdersHandler(orders Orders, a *Auth, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		auth:    a,
		timeout: timeout,
	}
}

// GET /api/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	o, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		respondOrderError(w, err)
		return
	}

	if !h.canView(ctx, w, o) {
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GET /api/orders?session_id=
//
// The checkout session id is only ever handed to the shopper who paid, so
// holding it is enough to read the order back on the confirmation page.
func (h *OrdersHandler) GetBySession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "validation failed", "session_id")
		return
	}

	o, err := h.orders.GetOrderByPaymentSession(ctx, sessionID)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// canView lets the buyer (by account or by cart session) and admins read an
// order, writing the rejection otherwise.
func (h *OrdersHandler) canView(ctx context.Context, w http.ResponseWriter, o *domain.Order) bool {
	userID := auth.UserID(ctx)
	if userID != "" && o.UserID == userID {
		return true
	}
	if session := auth.CartSession(ctx); session != "" && o.CartSession == session {
		return true
	}
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", errNoSession.Error())
		return false
	}

	profile, err := h.auth.profile(ctx)
	if err != nil {
		respondInternal(w, err)
		return false
	}
	if !profile.IsAdmin() {
		respondError(w, http.StatusForbidden, "forbidden", "order belongs to another customer")
		return false
	}
	return true
}

func respondOrderError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
		return
	}
	respondInternal(w, err)
}
