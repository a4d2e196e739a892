// Package api exposes the purchase pipeline over HTTP.
package api

import (
	"context"
	"net/http"

	"ms-livestream/internal/access"
	catalogdb "ms-livestream/internal/catalog/db"
	"ms-livestream/internal/checkout"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
	"ms-livestream/internal/sse"
	"ms-livestream/internal/utils"

	"github.com/go-playground/validator/v10"
)

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	GetCheckoutStatus(ctx context.Context, sessionRef string, caller models.BuyerIdentity) (*checkout.Status, error)
}

type WebhookReconciler interface {
	Handle(ctx context.Context, payload []byte, signatureHeader string) error
}

type PlaybackGate interface {
	Authorize(ctx context.Context, token, eventSlug string) (*models.StreamGrant, error)
	Inspect(ctx context.Context, token, eventSlug string) (*models.AccessSummary, error)
}

type Catalog interface {
	ListEvents(ctx context.Context, filter catalogdb.EventFilter) ([]models.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	ListTickets(ctx context.Context, slug string) ([]*models.Ticket, error)
	ListArtists(ctx context.Context) ([]models.Artist, error)
	GetArtistBySlug(ctx context.Context, slug string) (*models.Artist, error)
}

type PurchaseLister interface {
	ListForBuyer(ctx context.Context, buyer models.BuyerIdentity) ([]models.Purchase, error)
}

type StatusStream interface {
	Subscribe(ctx context.Context, sessionID string) <-chan sse.PurchaseUpdate
}

type Handler struct {
	Checkout  CheckoutService
	Webhooks  WebhookReconciler
	Gate      PlaybackGate
	Catalog   Catalog
	Purchases PurchaseLister
	Stream    StatusStream
	QR        *access.QRGenerator
	Logger    *logger.Logger

	validate *validator.Validate
}

func NewHandler(co CheckoutService, webhooks WebhookReconciler, gate PlaybackGate, cat Catalog, purchases PurchaseLister, stream StatusStream, qr *access.QRGenerator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		Checkout:  co,
		Webhooks:  webhooks,
		Gate:      gate,
		Catalog:   cat,
		Purchases: purchases,
		Stream:    stream,
		QR:        qr,
		Logger:    log,
		validate:  utils.NewValidator(),
	}
}

func (h *Handler) ok(w http.ResponseWriter, status int, message string, data interface{}) {
	utils.WriteJSON(w, status, utils.SuccessResponse(message, data))
}

// fail writes err and logs server-side failures with their internal detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", r.Method+" "+r.URL.Path+": "+err.Error())
		return
	}
	h.Logger.Debug("API", r.Method+" "+r.URL.Path+": "+err.Error())
}
