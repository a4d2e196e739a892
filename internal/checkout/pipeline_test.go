package checkout_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"ms-livestream/internal/access"
	"ms-livestream/internal/apperror"
	catalogdb "ms-livestream/internal/catalog/db"
	"ms-livestream/internal/checkout"
	"ms-livestream/internal/config"
	"ms-livestream/internal/database/dbtest"
	"ms-livestream/internal/inventory"
	inventorydb "ms-livestream/internal/inventory/db"
	"ms-livestream/internal/models"
	"ms-livestream/internal/payment"
	"ms-livestream/internal/purchase"
	purchasedb "ms-livestream/internal/purchase/db"

	"github.com/stretchr/testify/require"
)

// seqGateway hands out cs_1, cs_2, ... and never fails.
type seqGateway struct{ n int }

func (g *seqGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.n++
	id := fmt.Sprintf("cs_%d", g.n)
	return &payment.Session{ID: id, URL: "https://pay/" + id}, nil
}

func (g *seqGateway) ExpireSession(context.Context, string) error { return nil }

func (g *seqGateway) GetSession(_ context.Context, id string) (*payment.Session, error) {
	return &payment.Session{ID: id}, nil
}

// Random checkouts, completions (with replays) and refunds (some before the
// completion arrived) keep soldCount equal to the purchases that are
// completed and not refunded. Checkout refuses exactly when that count
// has reached the stock.
func TestPipeline_SoldCountUnderRandomSequences(t *testing.T) {
	for _, stock := range []*int{nil, dbtest.IntPtr(3)} {
		name := "unlimited"
		if stock != nil {
			name = fmt.Sprintf("stock %d", *stock)
		}
		t.Run(name, func(t *testing.T) {
			bunDB := dbtest.NewSQLite(t)
			f := dbtest.Seed(t, bunDB, models.EventLive, stock)
			ctx := context.Background()

			tokens, err := access.NewService(config.AccessConfig{JWTSecret: "pipeline-test", TokenTTL: time.Hour})
			require.NoError(t, err)
			purchases := &purchasedb.DB{Bun: bunDB}
			ledger := inventory.NewLedger(&inventorydb.DB{Bun: bunDB}, nil)

			ids := 0
			svc := checkout.NewService(ledger, &catalogdb.DB{Bun: bunDB}, purchases, &seqGateway{}, nil, stripeCfg, nil).
				WithIDGenerator(func() string {
					ids++
					return fmt.Sprintf("purchase-%d", ids)
				})
			machine := purchase.NewMachine(purchases, ledger, tokens, purchase.NopNotifier{}, nil, time.Hour)

			state := map[string]models.PurchaseStatus{}
			var sessions []string
			completed := func() int {
				n := 0
				for _, s := range state {
					if s == models.PurchaseCompleted {
						n++
					}
				}
				return n
			}

			rng := rand.New(rand.NewSource(7))
			for step := 0; step < 300; step++ {
				switch op := rng.Intn(4); {
				case op < 2 || len(sessions) == 0:
					res, err := svc.CreateCheckout(ctx, checkout.Request{
						TicketID: f.Ticket.ID,
						Buyer:    models.BuyerIdentity{UserID: fmt.Sprintf("user-%d", step)},
					})
					if stock != nil && completed() >= *stock {
						require.ErrorIs(t, err, apperror.ErrSoldOut, "step %d", step)
						continue
					}
					require.NoError(t, err, "step %d", step)
					sessions = append(sessions, res.SessionRef)
					state[res.SessionRef] = models.PurchasePending

				case op == 2:
					ref := sessions[rng.Intn(len(sessions))]
					out, err := machine.Complete(ctx, purchase.CompleteInput{SessionRef: ref, PaymentRef: "pi_" + ref})
					require.NoError(t, err, "step %d", step)
					require.Equal(t, state[ref] == models.PurchasePending, out.Applied, "step %d complete %s", step, ref)
					if out.Applied {
						state[ref] = models.PurchaseCompleted
					}

				default:
					ref := sessions[rng.Intn(len(sessions))]
					out, err := machine.Refund(ctx, "pi_"+ref)
					require.NoError(t, err, "step %d", step)
					require.Equal(t, state[ref] == models.PurchaseCompleted, out.Applied, "step %d refund %s", step, ref)
					if out.Applied {
						state[ref] = models.PurchaseRefunded
					}
				}

				require.Equal(t, completed(), dbtest.SoldCount(t, bunDB, f.Ticket.ID), "step %d", step)
			}
		})
	}
}
