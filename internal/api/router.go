package api

import (
	"net/http"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/auth"
	"ms-livestream/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter registers every public route. verifier may be nil when buyer
// sign-in is disabled; checkout then runs anonymously and /api/my answers 401.
func NewRouter(h *Handler, verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.Logger.HTTPMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(verifier))
			r.Post("/", h.CreateCheckout)
			r.Get("/{sessionId}", h.GetCheckoutStatus)
			r.Get("/{sessionId}/events", h.StreamCheckoutStatus)
		})

		r.Post("/stripe/webhook", h.StripeWebhook)

		r.Route("/watch", func(r chi.Router) {
			r.Post("/stream-url", h.StreamURL)
			r.Post("/verify", h.VerifyAccess)
			r.Get("/qr", h.WatchQR)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Get("/{slug}", h.GetEvent)
			r.Get("/{slug}/tickets", h.ListTickets)
		})

		r.Route("/artists", func(r chi.Router) {
			r.Get("/", h.ListArtists)
			r.Get("/{slug}", h.GetArtist)
		})

		r.Route("/my", func(r chi.Router) {
			if verifier != nil {
				r.Use(auth.Middleware(verifier, h.Logger))
			} else {
				r.Use(func(http.Handler) http.Handler {
					return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
						utils.WriteError(w, apperror.ErrUnauthenticated)
					})
				})
			}
			r.Get("/purchases", h.MyPurchases)
		})
	})

	return r
}
