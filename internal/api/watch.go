package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/utils"
)

type watchBody struct {
	Token     string `json:"token" validate:"required"`
	EventSlug string `json:"eventSlug"`
}

func (h *Handler) decodeWatch(r *http.Request) (watchBody, error) {
	var body watchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, fmt.Errorf("%w: request body must be JSON", apperror.ErrInvalidInput)
	}
	if err := utils.ValidateStruct(r.Context(), h.validate, body); err != nil {
		return body, err
	}
	return body, nil
}

// StreamURL handles POST /api/watch/stream-url.
func (h *Handler) StreamURL(w http.ResponseWriter, r *http.Request) {
	body, err := h.decodeWatch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	grant, err := h.Gate.Authorize(r.Context(), body.Token, body.EventSlug)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if grant.NotStarted() {
		h.ok(w, http.StatusOK, "Stream has not started", grant)
		return
	}
	h.ok(w, http.StatusOK, "Stream access granted", grant)
}

// VerifyAccess handles POST /api/watch/verify.
func (h *Handler) VerifyAccess(w http.ResponseWriter, r *http.Request) {
	body, err := h.decodeWatch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	summary, err := h.Gate.Inspect(r.Context(), body.Token, body.EventSlug)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Access is valid", summary)
}

// WatchQR handles GET /api/watch/qr?token=...&slug=... and renders the watch
// link as a PNG. Only tokens that pass the gate are rendered.
func (h *Handler) WatchQR(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	slug := r.URL.Query().Get("slug")
	if token == "" || slug == "" {
		h.fail(w, r, fmt.Errorf("%w: token and slug are required", apperror.ErrInvalidInput))
		return
	}

	if _, err := h.Gate.Inspect(r.Context(), token, slug); err != nil {
		h.fail(w, r, err)
		return
	}

	png, err := h.QR.WatchLinkPNG(slug, token)
	if err != nil {
		h.fail(w, r, fmt.Errorf("render watch QR: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
