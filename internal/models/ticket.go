package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is a purchasable admission class for one event. Stock nil means unlimited.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID          string    `bun:"id,pk" json:"id"`
	EventID     string    `bun:"event_id,notnull" json:"eventId"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	Price       int64     `bun:"price,notnull" json:"price"`
	Stock       *int      `bun:"stock" json:"stock"`
	SoldCount   int       `bun:"sold_count,notnull" json:"soldCount"`
	IsActive    bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

// Available reports whether one more unit may be sold.
func (t *Ticket) Available() bool {
	if t == nil || !t.IsActive {
		return false
	}
	return t.Stock == nil || t.SoldCount < *t.Stock
}

// Remaining is nil for unlimited stock.
func (t *Ticket) Remaining() *int {
	if t.Stock == nil {
		return nil
	}
	left := *t.Stock - t.SoldCount
	if left < 0 {
		left = 0
	}
	return &left
}
