// Package payment wraps the hosted checkout provider (Stripe).
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/config"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrWebhookSecretMissing = errors.New("stripe webhook secret is not configured")

// SessionRequest describes one single-ticket hosted checkout.
type SessionRequest struct {
	PurchaseID         string
	TicketID           string
	EventID            string
	Buyer              models.BuyerIdentity
	Amount             int64
	Currency           string
	ProductName        string
	ProductDescription string
	SuccessURL         string
	CancelURL          string
}

func (r SessionRequest) metadata() map[string]string {
	md := map[string]string{
		"purchaseId": r.PurchaseID,
		"ticketId":   r.TicketID,
		"eventId":    r.EventID,
	}
	if r.Buyer.UserID != "" {
		md["userId"] = r.Buyer.UserID
	}
	if r.Buyer.Email != "" {
		md["email"] = r.Buyer.Email
	}
	return md
}

type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	PaymentRef    string
	CustomerEmail string
	Metadata      map[string]string
}

// Gateway is the checkout side of the provider.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ExpireSession(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}

// NotificationVerifier turns a raw webhook into a trusted Notification.
type NotificationVerifier interface {
	ConstructNotification(payload []byte, signatureHeader string) (Notification, error)
}

type StripeGateway struct {
	client        *client.API
	webhookSecret string
	logger        *logger.Logger
}

var (
	_ Gateway              = (*StripeGateway)(nil)
	_ NotificationVerifier = (*StripeGateway)(nil)
)

func NewStripeGateway(cfg config.StripeConfig, log *logger.Logger) (*StripeGateway, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	return NewStripeGatewayWithBackends(cfg, stripe.NewBackends(httpClient), log)
}

// NewStripeGatewayWithBackends lets tests point the client at a fake API.
func NewStripeGatewayWithBackends(cfg config.StripeConfig, backends *stripe.Backends, log *logger.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is not configured")
	}
	if log == nil {
		log = logger.Discard()
	}
	sc := client.New(cfg.SecretKey, backends)
	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeGateway{client: sc, webhookSecret: cfg.WebhookSecret, logger: log}, nil
}

func providerError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperror.ErrPaymentProvider, err)
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, providerError("create checkout session", err)
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.ProductDescription != "" {
		product.Description = stripe.String(req.ProductDescription)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					ProductData: product,
					UnitAmount:  stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.PurchaseID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.metadata(),
		},
	}
	for k, v := range req.metadata() {
		params.AddMetadata(k, v)
	}
	if req.Buyer.Email != "" {
		params.CustomerEmail = stripe.String(req.Buyer.Email)
	}
	// the purchase id is fresh per attempt, so a network retry cannot open a second session
	params.SetIdempotencyKey("checkout-" + req.PurchaseID)

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for purchase %s: %v", req.PurchaseID, err))
		return nil, providerError("create checkout session", err)
	}

	g.logger.Info("STRIPE", fmt.Sprintf("Created checkout session %s for purchase %s (%d %s)", sess.ID, req.PurchaseID, req.Amount, req.Currency))
	return toSession(sess), nil
}

func (g *StripeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return providerError("expire checkout session", err)
	}
	if _, err := g.client.CheckoutSessions.Expire(sessionID, &stripe.CheckoutSessionExpireParams{}); err != nil {
		return providerError("expire checkout session", err)
	}
	g.logger.Info("STRIPE", fmt.Sprintf("Expired checkout session %s", sessionID))
	return nil
}

func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, providerError("get checkout session", err)
	}
	sess, err := g.client.CheckoutSessions.Get(sessionID, &stripe.CheckoutSessionParams{})
	if err != nil {
		return nil, providerError("get checkout session", err)
	}
	return toSession(sess), nil
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
		CustomerEmail: s.CustomerEmail,
	}
	if s.PaymentIntent != nil {
		out.PaymentRef = s.PaymentIntent.ID
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	return out
}

// ConstructNotification verifies the signature header and decodes the event.
// Any verification failure is reported as apperror.ErrInvalidSignature.
func (g *StripeGateway) ConstructNotification(payload []byte, signatureHeader string) (Notification, error) {
	if g.webhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrInvalidSignature, err)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", apperror.ErrInvalidInput, err)
		}
		s := toSession(&sess)
		return CheckoutCompleted{
			EventID:       event.ID,
			Type:          string(event.Type),
			SessionID:     s.ID,
			PaymentRef:    s.PaymentRef,
			CustomerEmail: s.CustomerEmail,
			PaymentStatus: s.PaymentStatus,
			Metadata:      s.Metadata,
		}, nil

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("%w: decode charge: %v", apperror.ErrInvalidInput, err)
		}
		n := ChargeRefunded{
			EventID:       event.ID,
			ChargeID:      charge.ID,
			FullyRefunded: charge.Refunded,
		}
		if charge.PaymentIntent != nil {
			n.PaymentRef = charge.PaymentIntent.ID
		}
		return n, nil

	default:
		return Other{EventID: event.ID, Type: string(event.Type)}, nil
	}
}
