package catalog_test

import (
	"context"
	"testing"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/catalog"
	catalogdb "ms-livestream/internal/catalog/db"
	catalogredis "ms-livestream/internal/catalog/redis"
	"ms-livestream/internal/database/dbtest"
	"ms-livestream/internal/models"
	"ms-livestream/internal/purchase"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ purchase.Notifier = (*catalog.Service)(nil)

func newService(t *testing.T, status models.EventStatus) (*catalog.Service, *miniredis.Miniredis) {
	t.Helper()
	bunDB := dbtest.NewSQLite(t)
	dbtest.Seed(t, bunDB, status, dbtest.IntPtr(10))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	svc := catalog.NewService(&catalogdb.DB{Bun: bunDB}, catalogredis.NewEventCache(client, time.Minute), nil)
	return svc, mr
}

func TestGetEventBySlug_ReadsThroughCache(t *testing.T) {
	svc, mr := newService(t, models.EventUpcoming)
	ctx := context.Background()

	e, err := svc.GetEventBySlug(ctx, "luna-park-live")
	require.NoError(t, err)
	assert.Equal(t, "Luna Park Live", e.Title)
	assert.True(t, mr.Exists("event:luna-park-live"))

	cached, err := svc.GetEventBySlug(ctx, "luna-park-live")
	require.NoError(t, err)
	assert.Equal(t, e.ID, cached.ID)
	assert.Empty(t, cached.StreamURL, "stream reference must never be cached")
	require.Len(t, cached.Tickets, 1)

	tickets, err := svc.ListTickets(ctx, "luna-park-live")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(3000), tickets[0].Price)
}

func TestGetEventBySlug_CacheDownFallsBack(t *testing.T) {
	svc, mr := newService(t, models.EventUpcoming)
	mr.Close()

	e, err := svc.GetEventBySlug(context.Background(), "luna-park-live")
	require.NoError(t, err)
	assert.Equal(t, "event-1", e.ID)
}

func TestUpdateEventStatus_InvalidatesCache(t *testing.T) {
	svc, mr := newService(t, models.EventUpcoming)
	ctx := context.Background()

	_, err := svc.GetEventBySlug(ctx, "luna-park-live")
	require.NoError(t, err)
	require.True(t, mr.Exists("event:luna-park-live"))

	err = svc.UpdateEventStatus(ctx, models.EventStatusUpdate{Slug: "luna-park-live", Status: models.EventLive})
	require.NoError(t, err)
	assert.False(t, mr.Exists("event:luna-park-live"))

	e, err := svc.GetEventBySlug(ctx, "luna-park-live")
	require.NoError(t, err)
	assert.Equal(t, models.EventLive, e.Status)
}

func TestUpdateEventStatus_Rejects(t *testing.T) {
	svc, _ := newService(t, models.EventUpcoming)
	ctx := context.Background()

	err := svc.UpdateEventStatus(ctx, models.EventStatusUpdate{Slug: "luna-park-live", Status: "paused"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	err = svc.UpdateEventStatus(ctx, models.EventStatusUpdate{Slug: "missing", Status: models.EventLive})
	assert.ErrorIs(t, err, apperror.ErrEventNotFound)
}

func TestListEvents_RejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(t, models.EventLive)

	_, err := svc.ListEvents(context.Background(), catalogdb.EventFilter{Status: "bogus"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	events, err := svc.ListEvents(context.Background(), catalogdb.EventFilter{Status: models.EventLive})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPurchaseTransitions_RefreshTicketAvailability(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, dbtest.IntPtr(1))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	svc := catalog.NewService(&catalogdb.DB{Bun: bunDB}, catalogredis.NewEventCache(client, time.Minute), nil)
	ctx := context.Background()

	tickets, err := svc.ListTickets(ctx, f.Event.Slug)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.True(t, tickets[0].Available())

	_, err = bunDB.NewUpdate().Model((*models.Ticket)(nil)).Set("sold_count = sold_count + 1").Where("id = ?", f.Ticket.ID).Exec(ctx)
	require.NoError(t, err)
	svc.PurchaseCompleted(ctx, &models.Purchase{ID: "p1", EventID: f.Event.ID, Status: models.PurchaseCompleted})
	assert.False(t, mr.Exists("event:"+f.Event.Slug))

	tickets, err = svc.ListTickets(ctx, f.Event.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, tickets[0].SoldCount)
	assert.False(t, tickets[0].Available())

	_, err = bunDB.NewUpdate().Model((*models.Ticket)(nil)).Set("sold_count = sold_count - 1").Where("id = ?", f.Ticket.ID).Exec(ctx)
	require.NoError(t, err)
	svc.PurchaseRefunded(ctx, &models.Purchase{ID: "p1", EventID: f.Event.ID, Status: models.PurchaseRefunded})

	tickets, err = svc.ListTickets(ctx, f.Event.Slug)
	require.NoError(t, err)
	assert.Equal(t, 0, tickets[0].SoldCount)
	assert.True(t, tickets[0].Available())
}
