package api

import (
	"fmt"
	"io"
	"net/http"

	"ms-livestream/internal/apperror"
)

const maxWebhookBody = 65536

// StripeWebhook handles POST /api/stripe/webhook. The body is passed on
// unparsed because the signature covers the exact bytes. A non-2xx answer
// makes the provider redeliver, so only retryable failures return 5xx.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: unreadable webhook body: %v", apperror.ErrInvalidInput, err))
		return
	}

	if err := h.Webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Webhook received", map[string]bool{"received": true})
}
