package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/auth"
	"ms-livestream/internal/checkout"
	"ms-livestream/internal/models"

	"github.com/go-chi/chi/v5"
)

type createCheckoutBody struct {
	TicketID string `json:"ticketId"`
	// Email identifies anonymous buyers; signed-in buyers may omit it.
	Email string `json:"email"`
}

// CreateCheckout handles POST /api/checkout.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var body createCheckoutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, r, fmt.Errorf("%w: request body must be JSON", apperror.ErrInvalidInput))
		return
	}

	buyer := auth.Buyer(r.Context())
	if buyer.Email == "" {
		buyer.Email = body.Email
	}

	res, err := h.Checkout.CreateCheckout(r.Context(), checkout.Request{TicketID: body.TicketID, Buyer: buyer})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "Checkout session created", res)
}

// statusCaller is the signed-in buyer, or an anonymous buyer naming the email
// they checked out with in ?email.
func statusCaller(r *http.Request) models.BuyerIdentity {
	caller := auth.Buyer(r.Context())
	if caller.Email == "" {
		caller.Email = r.URL.Query().Get("email")
	}
	return caller
}

// GetCheckoutStatus handles GET /api/checkout/{sessionId}.
func (h *Handler) GetCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Checkout.GetCheckoutStatus(r.Context(), chi.URLParam(r, "sessionId"), statusCaller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Checkout status", st)
}

// StreamCheckoutStatus handles GET /api/checkout/{sessionId}/events. The
// subscription is taken before the current status is read, so a transition
// committed in between is either in that status or queued on the channel.
func (h *Handler) StreamCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := h.Stream.Subscribe(ctx, sessionID)

	st, err := h.Checkout.GetCheckoutStatus(ctx, sessionID, statusCaller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})
	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	writeEvent := func(name string, v interface{}) bool {
		data, err := json.Marshal(v)
		if err != nil {
			h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s event: %v", name, err))
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !writeEvent("status", st) {
		return
	}
	h.Logger.Debug("SSE", fmt.Sprintf("Client connected for checkout %s", sessionID))

	for {
		select {
		case update, ok := <-updates:
			if !ok || !writeEvent("purchase", update) {
				return
			}
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from checkout %s", sessionID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
