// Package inventory owns every change to a ticket's sold count.
//
// Availability is checked at checkout but nothing is held: the count moves only
// when a purchase completes or is refunded. Two buyers racing for the last unit
// can therefore both pay, and the count may exceed stock by the number of
// concurrent checkouts. Callers must invoke Increment and Decrement at most once
// per purchase transition; the ledger itself does not deduplicate.
package inventory

import (
	"context"
	"fmt"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
)

// TicketStore is the persistence the ledger needs.
type TicketStore interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	IncrementSoldCount(ctx context.Context, id string) (int64, error)
	DecrementSoldCount(ctx context.Context, id string) (int64, error)
}

type Ledger struct {
	Store  TicketStore
	Logger *logger.Logger
}

func NewLedger(store TicketStore, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.Discard()
	}
	return &Ledger{Store: store, Logger: log}
}

// WithStore returns a ledger over a different store, typically one bound to a transaction.
func (l *Ledger) WithStore(store TicketStore) *Ledger {
	return &Ledger{Store: store, Logger: l.Logger}
}

func (l *Ledger) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("%w: ticketId is required", apperror.ErrInvalidInput)
	}
	return l.Store.GetTicketByID(ctx, ticketID)
}

// CheckAvailable is read only.
func (l *Ledger) CheckAvailable(ctx context.Context, ticketID string) (bool, error) {
	ticket, err := l.GetTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}
	return ticket.Available(), nil
}

// Reserve validates that the ticket can be sold right now and returns it.
// It does not change the sold count.
func (l *Ledger) Reserve(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := l.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsActive {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, apperror.ErrTicketInactive)
	}
	if !ticket.Available() {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, apperror.ErrSoldOut)
	}
	return ticket, nil
}

func (l *Ledger) Increment(ctx context.Context, ticketID string) error {
	n, err := l.Store.IncrementSoldCount(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("increment sold count for %s: %w", ticketID, err)
	}
	if n == 0 {
		return fmt.Errorf("increment sold count: ticket %s: %w", ticketID, apperror.ErrTicketNotFound)
	}
	l.Logger.LogDatabase("UPDATE", "tickets", fmt.Sprintf("sold_count +1 for %s", ticketID))
	return nil
}

func (l *Ledger) Decrement(ctx context.Context, ticketID string) error {
	n, err := l.Store.DecrementSoldCount(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("decrement sold count for %s: %w", ticketID, err)
	}
	if n == 0 {
		return fmt.Errorf("decrement sold count: ticket %s: %w", ticketID, apperror.ErrTicketNotFound)
	}
	l.Logger.LogDatabase("UPDATE", "tickets", fmt.Sprintf("sold_count -1 for %s", ticketID))
	return nil
}
