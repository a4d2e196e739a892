// Package playback decides whether a presented access token may watch an event.
//
// The token only proves what was issued. The purchase row is authoritative: a
// refunded purchase, a stored expiry in the past or a superseded token all deny
// access even while the token itself still verifies.
package playback

import (
	"context"
	"fmt"
	"time"

	"ms-livestream/internal/access"
	"ms-livestream/internal/apperror"
	"ms-livestream/internal/config"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
)

type TokenVerifier interface {
	Verify(token string) (*access.Claims, error)
}

// PurchaseLookup loads a purchase with its event, artist and ticket.
type PurchaseLookup interface {
	GetPurchaseDetails(ctx context.Context, id string) (*models.Purchase, error)
}

type Gate struct {
	Tokens    TokenVerifier
	Purchases PurchaseLookup
	Signer    URLSigner
	GrantTTL  time.Duration
	Logger    *logger.Logger
	now       func() time.Time
}

func NewGate(tokens TokenVerifier, purchases PurchaseLookup, signer URLSigner, grantTTL time.Duration, log *logger.Logger) *Gate {
	if signer == nil {
		signer = NoopSigner{}
	}
	if grantTTL <= 0 {
		grantTTL = 24 * time.Hour
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Gate{Tokens: tokens, Purchases: purchases, Signer: signer, GrantTTL: grantTTL, Logger: log, now: time.Now}
}

// NewSigner picks the signer named by cfg.SignerMode.
func NewSigner(cfg config.StreamConfig) (URLSigner, error) {
	switch cfg.SignerMode {
	case "none":
		return NoopSigner{}, nil
	case "token", "":
		return NewTokenSigner(cfg.SignerSecret)
	default:
		return nil, fmt.Errorf("unknown stream signer %q", cfg.SignerMode)
	}
}

// WithClock replaces the time source. Used by tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	cp := *g
	cp.now = now
	return &cp
}

// check runs every access rule in order and returns the purchase with its event loaded.
func (g *Gate) check(ctx context.Context, token, eventSlug string) (*models.Purchase, error) {
	claims, err := g.Tokens.Verify(token)
	if err != nil {
		g.Logger.LogSecurity("ACCESS_TOKEN", fmt.Sprintf("rejected token for %q: %v", eventSlug, err))
		return nil, err
	}

	p, err := g.Purchases.GetPurchaseDetails(ctx, claims.PurchaseID)
	if err != nil {
		return nil, err
	}

	if p.AccessToken != token {
		g.Logger.LogSecurity("ACCESS_TOKEN", fmt.Sprintf("superseded token presented for purchase %s", p.ID))
		return nil, fmt.Errorf("%w: token is not current for purchase %s", apperror.ErrInvalidToken, p.ID)
	}
	if p.Status != models.PurchaseCompleted {
		return nil, fmt.Errorf("purchase %s is %s: %w", p.ID, p.Status, apperror.ErrRevoked)
	}
	if p.AccessTokenExpiry != nil && !p.AccessTokenExpiry.After(g.now()) {
		return nil, fmt.Errorf("purchase %s access ended %s: %w", p.ID, p.AccessTokenExpiry.Format(time.RFC3339), apperror.ErrExpired)
	}
	if p.Event == nil {
		return nil, fmt.Errorf("purchase %s event %s: %w", p.ID, p.EventID, apperror.ErrEventNotFound)
	}
	if eventSlug != "" && p.Event.Slug != eventSlug {
		return nil, fmt.Errorf("purchase %s is for %s: %w", p.ID, p.Event.Slug, apperror.ErrWrongEvent)
	}
	return p, nil
}

// Authorize returns a stream grant for the token, or a not-started grant carrying
// the start time while the event is upcoming. eventSlug may be empty.
func (g *Gate) Authorize(ctx context.Context, token, eventSlug string) (*models.StreamGrant, error) {
	p, err := g.check(ctx, token, eventSlug)
	if err != nil {
		return nil, err
	}
	event := p.Event

	grant := &models.StreamGrant{
		PurchaseID:   p.ID,
		EventID:      event.ID,
		EventSlug:    event.Slug,
		EventTitle:   event.Title,
		EventStatus:  event.Status,
		EventType:    event.EventType,
		ThumbnailURL: event.ThumbnailURL,
	}
	if event.Artist != nil {
		grant.ArtistName = event.Artist.Name
	}

	if event.Status == models.EventUpcoming {
		grant.Kind = models.GrantNotStarted
		grant.StartTime = event.StartTime
		return grant, nil
	}

	ref := event.StreamRef()
	if ref == "" {
		return nil, fmt.Errorf("event %s has no stream reference: %w", event.Slug, apperror.ErrStreamUnavailable)
	}
	signed, err := g.Signer.Sign(ref, g.GrantTTL)
	if err != nil {
		g.Logger.Error("PLAYBACK", fmt.Sprintf("Failed to sign stream for %s: %v", event.Slug, err))
		return nil, fmt.Errorf("event %s: %w", event.Slug, apperror.ErrStreamUnavailable)
	}

	grant.Kind = models.GrantStream
	grant.StreamURL = signed
	grant.ExpiresIn = int64(g.GrantTTL / time.Second)
	g.Logger.LogPurchase("PLAYBACK", p.ID, fmt.Sprintf("stream granted for %s", event.Slug))
	return grant, nil
}

// Inspect applies the same rules as Authorize without releasing a stream.
func (g *Gate) Inspect(ctx context.Context, token, eventSlug string) (*models.AccessSummary, error) {
	p, err := g.check(ctx, token, eventSlug)
	if err != nil {
		return nil, err
	}
	summary := &models.AccessSummary{
		PurchaseID:        p.ID,
		Status:            string(p.Status),
		PurchasedAt:       p.PurchasedAt,
		AccessTokenExpiry: p.AccessTokenExpiry,
		EventSlug:         p.Event.Slug,
		EventTitle:        p.Event.Title,
		EventStatus:       p.Event.Status,
		StartTime:         p.Event.StartTime,
		UserID:            p.UserID,
		Email:             p.Email,
	}
	if p.Ticket != nil {
		summary.TicketName = p.Ticket.Name
	}
	return summary, nil
}
