package api

import (
	"net/http"

	"ms-livestream/internal/auth"
	catalogdb "ms-livestream/internal/catalog/db"
	"ms-livestream/internal/models"

	"github.com/go-chi/chi/v5"
)

// ListEvents handles GET /api/events?status=live&artist=slug.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := catalogdb.EventFilter{
		Status:     models.EventStatus(r.URL.Query().Get("status")),
		ArtistSlug: r.URL.Query().Get("artist"),
	}
	events, err := h.Catalog.ListEvents(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Events retrieved", events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Catalog.GetEventBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Event retrieved", event)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Catalog.ListTickets(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Tickets retrieved", tickets)
}

func (h *Handler) ListArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := h.Catalog.ListArtists(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Artists retrieved", artists)
}

func (h *Handler) GetArtist(w http.ResponseWriter, r *http.Request) {
	artist, err := h.Catalog.GetArtistBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Artist retrieved", artist)
}

// MyPurchases handles GET /api/my/purchases for a signed-in buyer.
func (h *Handler) MyPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.Purchases.ListForBuyer(r.Context(), auth.Buyer(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Purchases retrieved", purchases)
}
