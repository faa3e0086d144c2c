package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cicadacove/storefront/internal/auth"
	"github.com/cicadacove/storefront/internal/checkout"
	"github.com/cicadacove/storefront/internal/payment"
	"github.com/cicadacove/storefront/internal/webhook"
	"github.com/sirupsen/logrus"
)

type Checkouts interface {
	Checkout(ctx context.Context, caller checkout.Caller, req *checkout.Request) (*checkout.Result, error)
}

type CheckoutHandler struct {
	checkouts Checkouts
	timeout   time.Duration
}

func NewCheckoutHandler(checkouts Checkouts, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		timeout:   timeout,
	}
}

// POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkout.Request
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondBadBody(w, err)
		return
	}

	res, err := h.checkouts.Checkout(ctx, checkout.Caller{
		UserID:      auth.UserID(ctx),
		CartSession: auth.CartSession(ctx),
	}, &req)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func respondCheckoutError(w http.ResponseWriter, err error) {
	var payErr *checkout.PaymentError
	switch {
	case respondValidation(w, err):
	case errors.Is(err, checkout.ErrProductsUnavailable):
		respondError(w, http.StatusBadRequest, "products_unavailable", err.Error())
	case errors.As(err, &payErr):
		respondError(w, http.StatusInternalServerError, "payment_error", payErr.Error())
	default:
		respondInternal(w, err)
	}
}

type SandboxPayments interface {
	Simulate(sessionID string) (*payment.SimulatedPayment, error)
}

type Webhooks interface {
	Handle(ctx context.Context, payload []byte, signature string) (*webhook.Result, error)
}

// SandboxHandler stands in for the hosted payment page when no real
// processor is configured.
type SandboxHandler struct {
	sandbox  SandboxPayments
	webhooks Webhooks
	log      *logrus.Entry
}

func NewSandboxHandler(sandbox SandboxPayments, webhooks Webhooks, log logrus.FieldLogger) *SandboxHandler {
	return &SandboxHandler{
		sandbox:  sandbox,
		webhooks: webhooks,
		log:      log.WithField("component", "sandbox"),
	}
}

// GET /checkout/sandbox?session_id=
func (h *SandboxHandler) Pay(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	sim, err := h.sandbox.Simulate(sessionID)
	if errors.Is(err, payment.ErrUnknownSession) {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if err != nil {
		respondInternal(w, err)
		return
	}

	res, err := h.webhooks.Handle(r.Context(), sim.Payload, sim.Signature)
	if err != nil {
		respondInternal(w, err)
		return
	}
	h.log.WithContext(r.Context()).WithFields(logrus.Fields{
		"session_id": sessionID,
		"order_id":   res.OrderID,
		"outcome":    res.Outcome,
	}).Info("sandbox payment delivered")

	http.Redirect(w, r, sim.RedirectURL, http.StatusSeeOther)
}
