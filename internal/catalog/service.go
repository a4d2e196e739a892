// Package catalog serves the public artist and event listings and applies
// externally driven event status changes.
package catalog

import (
	"context"
	"fmt"
	"time"

	"ms-livestream/internal/apperror"
	catalogdb "ms-livestream/internal/catalog/db"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
)

type Store interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	ListEvents(ctx context.Context, filter catalogdb.EventFilter) ([]models.Event, error)
	ListArtists(ctx context.Context) ([]models.Artist, error)
	GetArtistBySlug(ctx context.Context, slug string) (*models.Artist, error)
	UpdateEventStatus(ctx context.Context, slug string, status models.EventStatus, at time.Time) (int64, error)
}

type Cache interface {
	GetEvent(ctx context.Context, slug string) (*models.Event, bool, error)
	SetEvent(ctx context.Context, e *models.Event) error
	Invalidate(ctx context.Context, slug string) error
}

type Service struct {
	Store  Store
	Cache  Cache
	Logger *logger.Logger
}

// NewService accepts a nil cache.
func NewService(store Store, cache Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{Store: store, Cache: cache, Logger: log}
}

func (s *Service) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	return s.Store.GetEventByID(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context, filter catalogdb.EventFilter) ([]models.Event, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperror.ErrInvalidInput, filter.Status)
	}
	return s.Store.ListEvents(ctx, filter)
}

// GetEventBySlug reads through the cache. Cache failures fall back to the store.
func (s *Service) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	if s.Cache != nil {
		e, ok, err := s.Cache.GetEvent(ctx, slug)
		if err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Event cache read failed for %s: %v", slug, err))
		}
		if ok {
			return e, nil
		}
	}

	e, err := s.Store.GetEventBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.SetEvent(ctx, e); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Event cache write failed for %s: %v", slug, err))
		}
	}
	return e, nil
}

func (s *Service) ListTickets(ctx context.Context, slug string) ([]*models.Ticket, error) {
	e, err := s.GetEventBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if e.Tickets == nil {
		return []*models.Ticket{}, nil
	}
	return e.Tickets, nil
}

func (s *Service) ListArtists(ctx context.Context) ([]models.Artist, error) {
	return s.Store.ListArtists(ctx)
}

func (s *Service) GetArtistBySlug(ctx context.Context, slug string) (*models.Artist, error) {
	return s.Store.GetArtistBySlug(ctx, slug)
}

// UpdateEventStatus applies a status change published by the streaming side and
// drops the cached detail.
func (s *Service) UpdateEventStatus(ctx context.Context, update models.EventStatusUpdate) error {
	if update.Slug == "" || !update.Status.Valid() {
		return fmt.Errorf("%w: status update %q -> %q", apperror.ErrInvalidInput, update.Slug, update.Status)
	}
	at := update.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}

	n, err := s.Store.UpdateEventStatus(ctx, update.Slug, update.Status, at.UTC())
	if err != nil {
		return fmt.Errorf("update status of %s: %w", update.Slug, err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", update.Slug, apperror.ErrEventNotFound)
	}

	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, update.Slug); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Failed to invalidate event %s: %v", update.Slug, err))
		}
	}
	s.Logger.Info("CATALOG", fmt.Sprintf("Event %s is now %s", update.Slug, update.Status))
	return nil
}

// PurchaseCompleted and PurchaseRefunded drop the cached event detail so ticket
// availability follows the sold count. Service implements purchase.Notifier.
func (s *Service) PurchaseCompleted(ctx context.Context, p *models.Purchase) {
	s.invalidateEvent(ctx, p.EventID)
}

func (s *Service) PurchaseRefunded(ctx context.Context, p *models.Purchase) {
	s.invalidateEvent(ctx, p.EventID)
}

func (s *Service) invalidateEvent(ctx context.Context, eventID string) {
	if s.Cache == nil {
		return
	}
	e, err := s.Store.GetEventByID(ctx, eventID)
	if err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Could not resolve event %s for invalidation: %v", eventID, err))
		return
	}
	if err := s.Cache.Invalidate(ctx, e.Slug); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Failed to invalidate event %s: %v", e.Slug, err))
	}
}
