package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

type Purchase struct {
	bun.BaseModel `bun:"table:purchases"`

	ID string `bun:"id,pk" json:"id"`
	// UserID is empty for anonymous buyers, who are identified by Email.
	UserID             string         `bun:"user_id,nullzero" json:"userId,omitempty"`
	Email              string         `bun:"email,nullzero" json:"email,omitempty"`
	EventID            string         `bun:"event_id,notnull" json:"eventId"`
	TicketID           string         `bun:"ticket_id,notnull" json:"ticketId"`
	CheckoutSessionRef string         `bun:"checkout_session_id,unique,notnull" json:"checkoutSessionId"`
	PaymentRef         string         `bun:"payment_ref,nullzero" json:"-"`
	Amount             int64          `bun:"amount,notnull" json:"amount"`
	Currency           string         `bun:"currency,notnull" json:"currency"`
	Status             PurchaseStatus `bun:"status,notnull" json:"status"`
	AccessToken        string         `bun:"access_token,nullzero" json:"accessToken,omitempty"`
	AccessTokenExpiry  *time.Time     `bun:"access_token_expiry" json:"accessTokenExpiry,omitempty"`
	PurchasedAt        *time.Time     `bun:"purchased_at" json:"purchasedAt,omitempty"`
	RefundedAt         *time.Time     `bun:"refunded_at" json:"refundedAt,omitempty"`
	CreatedAt          time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt          time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Event  *Event  `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	Ticket *Ticket `bun:"rel:belongs-to,join:ticket_id=id" json:"ticket,omitempty"`
}

// BuyerIdentity is either a signed-in user, an anonymous email, or both.
type BuyerIdentity struct {
	UserID string `json:"userId,omitempty" validate:"required_without=Email"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

// Key is stable for one buyer and is used to de-duplicate concurrent submits.
func (b BuyerIdentity) Key() string {
	if b.UserID != "" {
		return "user:" + b.UserID
	}
	return "email:" + b.Email
}

// OwnedBy reports whether b is the buyer who made p. Emails compare case-insensitively.
func (p *Purchase) OwnedBy(b BuyerIdentity) bool {
	if b.UserID != "" && b.UserID == p.UserID {
		return true
	}
	return b.Email != "" && p.Email != "" && strings.EqualFold(b.Email, p.Email)
}

// PurchaseEvent is the notification published after a purchase transition commits.
type PurchaseEvent struct {
	PurchaseID         string         `json:"purchaseId"`
	Status             PurchaseStatus `json:"status"`
	UserID             string         `json:"userId,omitempty"`
	Email              string         `json:"email,omitempty"`
	EventID            string         `json:"eventId"`
	TicketID           string         `json:"ticketId"`
	CheckoutSessionRef string         `json:"checkoutSessionId"`
	Amount             int64          `json:"amount"`
	Currency           string         `json:"currency"`
	AccessTokenExpiry  *time.Time     `json:"accessTokenExpiry,omitempty"`
	OccurredAt         time.Time      `json:"occurredAt"`
}

func NewPurchaseEvent(p *Purchase, at time.Time) PurchaseEvent {
	return PurchaseEvent{
		PurchaseID:         p.ID,
		Status:             p.Status,
		UserID:             p.UserID,
		Email:              p.Email,
		EventID:            p.EventID,
		TicketID:           p.TicketID,
		CheckoutSessionRef: p.CheckoutSessionRef,
		Amount:             p.Amount,
		Currency:           p.Currency,
		AccessTokenExpiry:  p.AccessTokenExpiry,
		OccurredAt:         at,
	}
}
