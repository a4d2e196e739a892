package purchase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ms-livestream/internal/access"
	"ms-livestream/internal/apperror"
	"ms-livestream/internal/config"
	"ms-livestream/internal/database/dbtest"
	"ms-livestream/internal/inventory"
	inventorydb "ms-livestream/internal/inventory/db"
	"ms-livestream/internal/models"
	"ms-livestream/internal/purchase"
	purchasedb "ms-livestream/internal/purchase/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PurchaseCompleted(ctx context.Context, p *models.Purchase) {
	m.Called(p.ID)
}

func (m *MockNotifier) PurchaseRefunded(ctx context.Context, p *models.Purchase) {
	m.Called(p.ID)
}

type failingIssuer struct{}

func (failingIssuer) Issue(string, string, string, time.Duration) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer offline")
}

type harness struct {
	db       *bun.DB
	fixture  dbtest.Fixture
	machine  *purchase.Machine
	tokens   *access.Service
	notifier *MockNotifier
	now      time.Time
}

func newHarness(t *testing.T, stock *int) *harness {
	t.Helper()
	bunDB := dbtest.NewSQLite(t)
	f := dbtest.Seed(t, bunDB, models.EventLive, stock)

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tokens, err := access.NewService(config.AccessConfig{JWTSecret: "machine-test", TokenTTL: 30 * 24 * time.Hour})
	require.NoError(t, err)
	tokens = tokens.WithClock(func() time.Time { return now })

	notifier := new(MockNotifier)
	notifier.On("PurchaseCompleted", mock.Anything).Maybe()
	notifier.On("PurchaseRefunded", mock.Anything).Maybe()

	ledger := inventory.NewLedger(&inventorydb.DB{Bun: bunDB}, nil)
	machine := purchase.NewMachine(&purchasedb.DB{Bun: bunDB}, ledger, tokens, notifier, nil, 30*24*time.Hour).
		WithClock(func() time.Time { return now })

	return &harness{db: bunDB, fixture: f, machine: machine, tokens: tokens, notifier: notifier, now: now}
}

func (h *harness) pending(t *testing.T, id string) *models.Purchase {
	t.Helper()
	p := &models.Purchase{
		ID:                 id,
		UserID:             "user-" + id,
		EventID:            h.fixture.Event.ID,
		TicketID:           h.fixture.Ticket.ID,
		CheckoutSessionRef: "cs_" + id,
		Amount:             h.fixture.Ticket.Price,
		Currency:           "jpy",
		Status:             models.PurchasePending,
	}
	require.NoError(t, (&purchasedb.DB{Bun: h.db}).CreatePurchase(context.Background(), p))
	return p
}

func (h *harness) load(t *testing.T, id string) *models.Purchase {
	t.Helper()
	p, err := (&purchasedb.DB{Bun: h.db}).GetPurchaseByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestComplete_AppliesAllEffects(t *testing.T) {
	h := newHarness(t, dbtest.IntPtr(10))
	h.pending(t, "p1")
	ctx := context.Background()

	out, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1", CustomerEmail: "fan@example.com"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Nil(t, out.Anomaly)

	p := h.load(t, "p1")
	assert.Equal(t, models.PurchaseCompleted, p.Status)
	assert.Equal(t, "pi_1", p.PaymentRef)
	assert.Equal(t, "fan@example.com", p.Email)
	require.NotNil(t, p.PurchasedAt)
	require.NotNil(t, p.AccessTokenExpiry)
	assert.True(t, p.AccessTokenExpiry.Equal(h.now.Add(30*24*time.Hour)))
	assert.Equal(t, 1, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))

	claims, err := h.tokens.Verify(p.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.PurchaseID)
	assert.Equal(t, "user-p1", claims.UserID)
	assert.Equal(t, h.fixture.Event.ID, claims.EventID)

	h.notifier.AssertCalled(t, "PurchaseCompleted", "p1")
}

func TestComplete_ReplayIncrementsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.pending(t, "p1")
	ctx := context.Background()

	first, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
	require.NoError(t, err)
	require.True(t, first.Applied)
	token := h.load(t, "p1").AccessToken

	for i := 0; i < 5; i++ {
		out, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Nil(t, out.Anomaly, "a replay is not an anomaly")
	}

	assert.Equal(t, 1, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
	assert.Equal(t, token, h.load(t, "p1").AccessToken, "replay must not re-issue the token")
	h.notifier.AssertNumberOfCalls(t, "PurchaseCompleted", 1)
}

func TestComplete_UnknownSessionIsNoop(t *testing.T) {
	h := newHarness(t, nil)

	out, err := h.machine.Complete(context.Background(), purchase.CompleteInput{SessionRef: "cs_unknown", PaymentRef: "pi_x"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.ErrorIs(t, out.Anomaly, apperror.ErrPurchaseNotFound)
	assert.Equal(t, 0, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
}

func TestComplete_RequiresSessionRef(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.machine.Complete(context.Background(), purchase.CompleteInput{})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestComplete_RollsBackWhenInventoryUpdateFails(t *testing.T) {
	h := newHarness(t, nil)
	p := h.pending(t, "p1")
	_, err := h.db.NewUpdate().Model(p).Set("ticket_id = ?", "ticket-deleted").WherePK().Exec(context.Background())
	require.NoError(t, err)

	_, err = h.machine.Complete(context.Background(), purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
	assert.ErrorIs(t, err, apperror.ErrTicketNotFound)

	after := h.load(t, "p1")
	assert.Equal(t, models.PurchasePending, after.Status)
	assert.Empty(t, after.AccessToken)
	assert.Nil(t, after.PurchasedAt)
	h.notifier.AssertNotCalled(t, "PurchaseCompleted", mock.Anything)
}

func TestComplete_RollsBackWhenTokenIssueFails(t *testing.T) {
	h := newHarness(t, nil)
	h.pending(t, "p1")
	h.machine.Tokens = failingIssuer{}

	_, err := h.machine.Complete(context.Background(), purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
	assert.Error(t, err)

	assert.Equal(t, models.PurchasePending, h.load(t, "p1").Status)
	assert.Equal(t, 0, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
}

func TestRefund_AfterCompletion(t *testing.T) {
	h := newHarness(t, dbtest.IntPtr(5))
	h.pending(t, "p1")
	ctx := context.Background()

	_, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
	require.NoError(t, err)
	token := h.load(t, "p1").AccessToken

	out, err := h.machine.Refund(ctx, "pi_1")
	require.NoError(t, err)
	assert.True(t, out.Applied)

	p := h.load(t, "p1")
	assert.Equal(t, models.PurchaseRefunded, p.Status)
	assert.NotNil(t, p.RefundedAt)
	assert.Equal(t, token, p.AccessToken, "token stays but loses authority")
	assert.Equal(t, 0, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
	h.notifier.AssertCalled(t, "PurchaseRefunded", "p1")

	again, err := h.machine.Refund(ctx, "pi_1")
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, 0, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
}

func TestRefund_NeverCompletedIsNoop(t *testing.T) {
	h := newHarness(t, dbtest.IntPtr(5))
	p := h.pending(t, "p1")
	// a pending purchase that somehow already carries the payment reference
	_, err := h.db.NewUpdate().Model(p).Set("payment_ref = ?", "pi_early").WherePK().Exec(context.Background())
	require.NoError(t, err)

	out, err := h.machine.Refund(context.Background(), "pi_early")
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.ErrorIs(t, out.Anomaly, apperror.ErrInvalidTransition)
	assert.Equal(t, models.PurchasePending, h.load(t, "p1").Status)
	assert.Equal(t, 0, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
}

func TestRefund_UnknownPaymentIsNoop(t *testing.T) {
	h := newHarness(t, nil)

	out, err := h.machine.Refund(context.Background(), "pi_nobody")
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.ErrorIs(t, out.Anomaly, apperror.ErrPurchaseNotFound)
}

func TestComplete_AfterRefundIsAnomaly(t *testing.T) {
	h := newHarness(t, nil)
	h.pending(t, "p1")
	ctx := context.Background()

	_, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
	require.NoError(t, err)
	_, err = h.machine.Refund(ctx, "pi_1")
	require.NoError(t, err)

	out, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.ErrorIs(t, out.Anomaly, apperror.ErrInvalidTransition)
	assert.Equal(t, models.PurchaseRefunded, h.load(t, "p1").Status)
	assert.Equal(t, 0, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
}

// Availability is not held at checkout, so two buyers who both saw the last
// unit and both paid are both completed. The count goes past stock.
func TestComplete_AcceptedOversellWindow(t *testing.T) {
	h := newHarness(t, dbtest.IntPtr(1))
	ctx := context.Background()
	ledger := inventory.NewLedger(&inventorydb.DB{Bun: h.db}, nil)

	for _, id := range []string{"a", "b"} {
		ok, err := ledger.CheckAvailable(ctx, h.fixture.Ticket.ID)
		require.NoError(t, err)
		require.True(t, ok)
		h.pending(t, id)
	}

	outA, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_a", PaymentRef: "pi_a"})
	require.NoError(t, err)
	assert.True(t, outA.Applied)
	assert.Equal(t, 1, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
	assert.NotEmpty(t, h.load(t, "a").AccessToken)

	outB, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_b", PaymentRef: "pi_b"})
	require.NoError(t, err)
	assert.True(t, outB.Applied)
	assert.Equal(t, 2, dbtest.SoldCount(t, h.db, h.fixture.Ticket.ID))
}

func TestCanTransition(t *testing.T) {
	all := []models.PurchaseStatus{models.PurchasePending, models.PurchaseCompleted, models.PurchaseRefunded}
	legal := map[string]bool{
		"pending->completed":  true,
		"completed->refunded": true,
	}
	for _, from := range all {
		for _, to := range all {
			key := fmt.Sprintf("%s->%s", from, to)
			assert.Equal(t, legal[key], purchase.CanTransition(from, to), key)
		}
	}
}

func TestListForBuyer(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.pending(t, "p1")
	h.pending(t, "p2")
	_, err := h.machine.Complete(ctx, purchase.CompleteInput{SessionRef: "cs_p1", PaymentRef: "pi_1"})
	require.NoError(t, err)

	list, err := h.machine.ListForBuyer(ctx, models.BuyerIdentity{UserID: "user-p1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)
	require.NotNil(t, list[0].Event)
	assert.Equal(t, h.fixture.Event.Slug, list[0].Event.Slug)

	list, err = h.machine.ListForBuyer(ctx, models.BuyerIdentity{UserID: "user-p2"})
	require.NoError(t, err)
	assert.Empty(t, list, "pending purchases are not listed")

	_, err = h.machine.ListForBuyer(ctx, models.BuyerIdentity{})
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}
