package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/cicadacove/storefront/internal/webhook"
	"github.com/sirupsen/logrus"
)

const SignatureHeader = "Stripe-Signature"

type WebhookHandler struct {
	webhooks Webhooks
	log      *logrus.Entry
}

func NewWebhookHandler(webhooks Webhooks, log logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		log:      log.WithField("component", "webhook"),
	}
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

// POST /api/stripe/webhook
//
// Anything but a storage failure is acknowledged so the processor stops
// redelivering it.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		respondError(w, http.StatusBadRequest, "missing_signature", "missing "+SignatureHeader+" header")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		respondBadBody(w, err)
		return
	}

	log := h.log.WithContext(r.Context())
	res, err := h.webhooks.Handle(r.Context(), payload, signature)
	if errors.Is(err, webhook.ErrInvalidEvent) {
		log.WithError(err).Warn("rejected webhook delivery")
		respondError(w, http.StatusBadRequest, "invalid_signature", err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("webhook processing failed")
		respondInternal(w, err)
		return
	}

	log.WithFields(logrus.Fields{"outcome": res.Outcome, "order_id": res.OrderID}).Debug("webhook processed")
	respondJSON(w, http.StatusOK, WebhookResponse{Received: true})
}
