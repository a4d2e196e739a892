package db_test

import (
	"context"
	"testing"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/database/dbtest"
	"ms-livestream/internal/models"
	"ms-livestream/internal/purchase"
	"ms-livestream/internal/purchase/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(f dbtest.Fixture, id string) *models.Purchase {
	return &models.Purchase{
		ID:                 id,
		Email:              id + "@example.com",
		EventID:            f.Event.ID,
		TicketID:           f.Ticket.ID,
		CheckoutSessionRef: "cs_" + id,
		Amount:             f.Ticket.Price,
		Currency:           "jpy",
		Status:             models.PurchasePending,
	}
}

func TestCreateAndGetPurchase(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventUpcoming, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	require.NoError(t, store.CreatePurchase(ctx, newPending(f, "p1")))

	bySession, err := store.GetPurchaseBySessionRef(ctx, "cs_p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", bySession.ID)
	assert.Empty(t, bySession.PaymentRef)
	assert.Nil(t, bySession.PurchasedAt)
	assert.False(t, bySession.CreatedAt.IsZero())

	_, err = store.GetPurchaseByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrPurchaseNotFound)
	_, err = store.GetPurchaseBySessionRef(ctx, "cs_missing")
	assert.ErrorIs(t, err, apperror.ErrPurchaseNotFound)
	_, err = store.GetPurchaseByPaymentRef(ctx, "pi_missing")
	assert.ErrorIs(t, err, apperror.ErrPurchaseNotFound)
}

func TestCreatePurchase_SessionRefIsUnique(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventUpcoming, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	require.NoError(t, store.CreatePurchase(ctx, newPending(f, "p1")))

	dup := newPending(f, "p2")
	dup.CheckoutSessionRef = "cs_p1"
	assert.Error(t, store.CreatePurchase(ctx, dup))
}

func TestMarkCompleted_OnlyFromPending(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	p := newPending(f, "p1")
	require.NoError(t, store.CreatePurchase(ctx, p))

	now := time.Now().UTC()
	expiry := now.Add(time.Hour)
	p.Status = models.PurchaseCompleted
	p.PaymentRef = "pi_1"
	p.AccessToken = "token"
	p.AccessTokenExpiry = &expiry
	p.PurchasedAt = &now

	ok, err := store.MarkCompleted(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkCompleted(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok, "second conditional update must not match")

	byPayment, err := store.GetPurchaseByPaymentRef(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCompleted, byPayment.Status)
	assert.Equal(t, "token", byPayment.AccessToken)

	p.Status = models.PurchaseRefunded
	p.RefundedAt = &now
	ok, err = store.MarkRefunded(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkRefunded(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	require.NoError(t, store.CreatePurchase(ctx, newPending(f, "p1")))

	err := store.WithinTx(ctx, func(ctx context.Context, tx purchase.TxRepository) error {
		p, err := tx.GetPurchaseBySessionRef(ctx, "cs_p1")
		require.NoError(t, err)
		p.Status = models.PurchaseCompleted
		ok, err := tx.MarkCompleted(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tx.Tickets().IncrementSoldCount(ctx, f.Ticket.ID)
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	p, err := store.GetPurchaseByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PurchasePending, p.Status)
	assert.Equal(t, 0, dbtest.SoldCount(t, bunDB, f.Ticket.ID))
}

func TestGetPurchaseDetails(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	require.NoError(t, store.CreatePurchase(ctx, newPending(f, "p1")))

	p, err := store.GetPurchaseDetails(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p.Event)
	require.NotNil(t, p.Event.Artist)
	require.NotNil(t, p.Ticket)
	assert.Equal(t, "luna-park-live", p.Event.Slug)
	assert.Equal(t, "Luna Park", p.Event.Artist.Name)
	assert.Equal(t, "General Admission", p.Ticket.Name)

	_, err = store.GetPurchaseDetails(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrPurchaseNotFound)
}

func TestListPurchasesByBuyer_MatchesUserOrEmail(t *testing.T) {
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, nil)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	byUser := newPending(f, "p-user")
	byUser.UserID = "user-1"
	byUser.Email = ""
	byUser.Status = models.PurchaseCompleted
	byEmail := newPending(f, "p-email")
	byEmail.Email = "fan@example.com"
	byEmail.Status = models.PurchaseRefunded
	other := newPending(f, "p-other")
	other.Status = models.PurchaseCompleted

	for _, p := range []*models.Purchase{byUser, byEmail, other} {
		require.NoError(t, store.CreatePurchase(ctx, p))
	}

	list, err := store.ListPurchasesByBuyer(ctx, models.BuyerIdentity{UserID: "user-1", Email: "fan@example.com"})
	require.NoError(t, err)

	ids := []string{}
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"p-user", "p-email"}, ids)
}
