package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/models"

	"github.com/uptrace/bun"
)

// DB is the ticket store. Bun may be the pool or a transaction.
type DB struct {
	Bun bun.IDB
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, apperror.ErrTicketNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Order("price ASC").
		Scan(ctx)
	return tickets, err
}

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	return err
}

// IncrementSoldCount adds one sale in a single statement and reports rows touched.
func (d *DB) IncrementSoldCount(ctx context.Context, id string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("sold_count = sold_count + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DecrementSoldCount removes one sale, never going below zero.
func (d *DB) DecrementSoldCount(ctx context.Context, id string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("sold_count = CASE WHEN sold_count > 0 THEN sold_count - 1 ELSE 0 END").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
