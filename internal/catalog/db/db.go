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

type DB struct {
	Bun bun.IDB
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Status     models.EventStatus
	ArtistSlug string
}

// live first, then upcoming, then everything else
const statusRank = "CASE event.status WHEN 'live' THEN 0 WHEN 'upcoming' THEN 1 ELSE 2 END"

func (d *DB) CreateArtist(ctx context.Context, a *models.Artist) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := d.Bun.NewInsert().Model(a).Exec(ctx)
	return err
}

func (d *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	_, err := d.Bun.NewInsert().Model(e).Exec(ctx)
	return err
}

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	e := new(models.Event)
	err := d.Bun.NewSelect().Model(e).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, apperror.ErrEventNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetEventBySlug loads the event with its artist and active tickets, cheapest first.
func (d *DB) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	e := new(models.Event)
	err := d.Bun.NewSelect().
		Model(e).
		Relation("Artist").
		Relation("Tickets", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("is_active = ?", true).Order("price ASC")
		}).
		Where("event.slug = ?", slug).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", slug, apperror.ErrEventNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (d *DB) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	var events []models.Event
	q := d.Bun.NewSelect().Model(&events).Relation("Artist")
	if filter.Status != "" {
		q = q.Where("event.status = ?", filter.Status)
	}
	if filter.ArtistSlug != "" {
		q = q.Where("artist.slug = ?", filter.ArtistSlug)
	}
	err := q.OrderExpr(statusRank).OrderExpr("event.start_time ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) ListArtists(ctx context.Context) ([]models.Artist, error) {
	var artists []models.Artist
	if err := d.Bun.NewSelect().Model(&artists).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return artists, nil
}

// GetArtistBySlug loads the artist with every event, soonest first.
func (d *DB) GetArtistBySlug(ctx context.Context, slug string) (*models.Artist, error) {
	a := new(models.Artist)
	err := d.Bun.NewSelect().
		Model(a).
		Relation("Events", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("start_time ASC")
		}).
		Where("artist.slug = ?", slug).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artist %s: %w", slug, apperror.ErrArtistNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d *DB) UpdateEventStatus(ctx context.Context, slug string, status models.EventStatus, at time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", at).
		Where("slug = ?", slug).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
