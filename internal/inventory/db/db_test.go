package db_test

import (
	"context"
	"testing"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/database/dbtest"
	"ms-livestream/internal/inventory/db"
	"ms-livestream/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTicketByID(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventUpcoming, dbtest.IntPtr(10))
	store := &db.DB{Bun: bunDB}

	ticket, err := store.GetTicketByID(context.Background(), f.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), ticket.Price)
	assert.Equal(t, 10, *ticket.Stock)
	assert.True(t, ticket.IsActive)

	_, err = store.GetTicketByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrTicketNotFound)
}

func TestIncrementAndDecrementSoldCount(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	n, err := store.IncrementSoldCount(ctx, f.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = store.IncrementSoldCount(ctx, f.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, dbtest.SoldCount(t, bunDB, f.Ticket.ID))

	_, err = store.DecrementSoldCount(ctx, f.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dbtest.SoldCount(t, bunDB, f.Ticket.ID))
}

func TestDecrementSoldCount_FloorsAtZero(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, nil)
	store := &db.DB{Bun: bunDB}

	n, err := store.DecrementSoldCount(context.Background(), f.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, dbtest.SoldCount(t, bunDB, f.Ticket.ID))
}

func TestSoldCountUpdates_UnknownTicketTouchesNothing(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	store := &db.DB{Bun: bunDB}

	n, err := store.IncrementSoldCount(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.DecrementSoldCount(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListTicketsByEvent(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventUpcoming, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	require.NoError(t, store.CreateTicket(ctx, &models.Ticket{
		ID: "ticket-vip", EventID: f.Event.ID, Name: "VIP", Price: 9000, Stock: dbtest.IntPtr(20), IsActive: true,
	}))
	require.NoError(t, store.CreateTicket(ctx, &models.Ticket{
		ID: "ticket-other", EventID: "event-other", Name: "Other", Price: 100, IsActive: true,
	}))

	tickets, err := store.ListTicketsByEvent(ctx, f.Event.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "ticket-1", tickets[0].ID)
	assert.Equal(t, "ticket-vip", tickets[1].ID)
}
