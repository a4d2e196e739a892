// Package checkout turns a ticket choice into a hosted payment page and a
// pending purchase bound to it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/config"
	"ms-livestream/internal/inventory"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
	"ms-livestream/internal/payment"
	"ms-livestream/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type EventLookup interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type PurchaseStore interface {
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchaseBySessionRef(ctx context.Context, sessionRef string) (*models.Purchase, error)
}

// Guard rejects a second concurrent checkout for the same buyer and ticket.
type Guard interface {
	Acquire(ctx context.Context, key, holder string) (bool, error)
	Release(ctx context.Context, key, holder string) error
}

type Request struct {
	TicketID string               `json:"ticketId" validate:"required"`
	Buyer    models.BuyerIdentity `json:"buyer"`
}

type Result struct {
	CheckoutURL string `json:"url"`
	SessionRef  string `json:"session_id"`
	PurchaseID  string `json:"purchase_id"`
}

// Status is what the success page polls after the redirect back from the provider.
// AccessToken and CustomerEmail are only present for the buyer who owns the
// purchase, and the token only once the purchase has completed.
type Status struct {
	SessionRef        string                `json:"sessionId"`
	PaymentStatus     string                `json:"paymentStatus,omitempty"`
	PurchaseID        string                `json:"purchaseId"`
	PurchaseStatus    models.PurchaseStatus `json:"purchaseStatus"`
	AccessToken       string                `json:"accessToken,omitempty"`
	AccessTokenExpiry *time.Time            `json:"accessTokenExpiry,omitempty"`
	CustomerEmail     string                `json:"customerEmail,omitempty"`
	Event             *EventSummary         `json:"event,omitempty"`
}

type EventSummary struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type Service struct {
	Ledger    *inventory.Ledger
	Events    EventLookup
	Purchases PurchaseStore
	Gateway   payment.Gateway
	Guard     Guard
	Config    config.StripeConfig
	Logger    *logger.Logger

	validate *validator.Validate
	newID    func() string
}

func NewService(ledger *inventory.Ledger, events EventLookup, purchases PurchaseStore, gateway payment.Gateway, guard Guard, cfg config.StripeConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		Ledger:    ledger,
		Events:    events,
		Purchases: purchases,
		Gateway:   gateway,
		Guard:     guard,
		Config:    cfg,
		Logger:    log,
		validate:  utils.NewValidator(),
		newID:     uuid.NewString,
	}
}

// WithIDGenerator replaces the purchase id source. Used by tests.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	cp := *s
	cp.newID = fn
	return &cp
}

// CreateCheckout opens a hosted checkout for one ticket and records the pending
// purchase. Inventory is checked but not held. If the purchase cannot be
// recorded the session is expired so no payable orphan is left behind.
func (s *Service) CreateCheckout(ctx context.Context, req Request) (*Result, error) {
	if err := utils.ValidateStruct(ctx, s.validate, req); err != nil {
		return nil, err
	}

	purchaseID := s.newID()
	guardKey := req.Buyer.Key() + ":" + req.TicketID
	if s.Guard != nil {
		ok, err := s.Guard.Acquire(ctx, guardKey, purchaseID)
		switch {
		case err != nil:
			s.Logger.Warn("CHECKOUT", fmt.Sprintf("Checkout guard unavailable, continuing without it: %v", err))
		case !ok:
			return nil, apperror.ErrCheckoutInFlight
		default:
			defer func() {
				if err := s.Guard.Release(context.WithoutCancel(ctx), guardKey, purchaseID); err != nil {
					s.Logger.Warn("CHECKOUT", fmt.Sprintf("Failed to release checkout guard: %v", err))
				}
			}()
		}
	}

	ticket, err := s.Ledger.Reserve(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}

	event, err := s.Events.GetEventByID(ctx, ticket.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event for ticket %s: %w", ticket.ID, err)
	}

	sessionReq := payment.SessionRequest{
		PurchaseID:         purchaseID,
		TicketID:           ticket.ID,
		EventID:            event.ID,
		Buyer:              req.Buyer,
		Amount:             ticket.Price,
		Currency:           s.Config.Currency,
		ProductName:        fmt.Sprintf("%s - %s", event.Title, ticket.Name),
		ProductDescription: ticket.Description,
		SuccessURL:         withSlug(s.Config.SuccessURL, event.Slug),
		CancelURL:          withSlug(s.Config.CancelURL, event.Slug),
	}

	sess, err := s.createSession(ctx, sessionReq)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &models.Purchase{
		ID:                 purchaseID,
		UserID:             req.Buyer.UserID,
		Email:              req.Buyer.Email,
		EventID:            event.ID,
		TicketID:           ticket.ID,
		CheckoutSessionRef: sess.ID,
		Amount:             ticket.Price,
		Currency:           s.Config.Currency,
		Status:             models.PurchasePending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Purchases.CreatePurchase(ctx, p); err != nil {
		s.Logger.Error("CHECKOUT", fmt.Sprintf("Failed to record purchase %s for session %s: %v", purchaseID, sess.ID, err))
		s.expireOrphan(ctx, sess.ID)
		return nil, fmt.Errorf("record pending purchase: %w", err)
	}

	s.Logger.LogPurchase("CHECKOUT", purchaseID, fmt.Sprintf("pending on session %s for ticket %s (%d %s)", sess.ID, ticket.ID, ticket.Price, s.Config.Currency))
	return &Result{CheckoutURL: sess.URL, SessionRef: sess.ID, PurchaseID: purchaseID}, nil
}

func (s *Service) createSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	if s.Config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.RequestTimeout)
		defer cancel()
	}
	return s.Gateway.CreateSession(ctx, req)
}

// expireOrphan is best effort; an unexpired session with no purchase simply
// completes into an unknown-session anomaly.
func (s *Service) expireOrphan(ctx context.Context, sessionID string) {
	ctx = context.WithoutCancel(ctx)
	if s.Config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.RequestTimeout)
		defer cancel()
	}
	if err := s.Gateway.ExpireSession(ctx, sessionID); err != nil {
		s.Logger.LogAnomaly("ORPHAN_SESSION", fmt.Sprintf("session %s has no purchase and could not be expired: %v", sessionID, err))
	}
}

func withSlug(tmpl, slug string) string {
	return strings.ReplaceAll(tmpl, "{slug}", slug)
}

// GetCheckoutStatus reports the purchase behind a checkout session. The provider's
// payment status is included when it can be fetched. The session id alone only
// reveals progress; caller must match the purchase's buyer to see the token.
func (s *Service) GetCheckoutStatus(ctx context.Context, sessionRef string, caller models.BuyerIdentity) (*Status, error) {
	if sessionRef == "" {
		return nil, fmt.Errorf("%w: session id is required", apperror.ErrInvalidInput)
	}

	p, err := s.Purchases.GetPurchaseBySessionRef(ctx, sessionRef)
	if err != nil {
		return nil, err
	}

	owner := p.OwnedBy(caller)
	st := &Status{
		SessionRef:     sessionRef,
		PurchaseID:     p.ID,
		PurchaseStatus: p.Status,
	}
	if owner {
		st.CustomerEmail = p.Email
		if p.Status == models.PurchaseCompleted {
			st.AccessToken = p.AccessToken
			st.AccessTokenExpiry = p.AccessTokenExpiry
		}
	} else if p.Status == models.PurchaseCompleted {
		s.Logger.Debug("CHECKOUT", fmt.Sprintf("Withholding access token for %s from a caller who is not the buyer", sessionRef))
	}

	event, err := s.Events.GetEventByID(ctx, p.EventID)
	switch {
	case err == nil:
		st.Event = &EventSummary{ID: event.ID, Slug: event.Slug, Title: event.Title}
	case !errors.Is(err, apperror.ErrEventNotFound):
		return nil, err
	}

	sess, err := s.lookupSession(ctx, sessionRef)
	if err != nil {
		s.Logger.Warn("CHECKOUT", fmt.Sprintf("Could not fetch provider status for %s: %v", sessionRef, err))
	} else {
		st.PaymentStatus = sess.PaymentStatus
		if owner && st.CustomerEmail == "" {
			st.CustomerEmail = sess.CustomerEmail
		}
	}
	return st, nil
}

func (s *Service) lookupSession(ctx context.Context, sessionRef string) (*payment.Session, error) {
	if s.Config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.RequestTimeout)
		defer cancel()
	}
	return s.Gateway.GetSession(ctx, sessionRef)
}
