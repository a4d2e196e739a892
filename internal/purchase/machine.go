// Package purchase owns the purchase lifecycle: pending -> completed -> refunded.
//
// Each transition is a conditional single-row update on the current status,
// applied in the same transaction as the matching sold-count change. A replayed
// or concurrent notification finds the row already moved and becomes a no-op,
// so no separate de-duplication store is needed.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/inventory"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
)

// Repository is the purchase persistence used outside a transaction.
type Repository interface {
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error)
	GetPurchaseDetails(ctx context.Context, id string) (*models.Purchase, error)
	GetPurchaseBySessionRef(ctx context.Context, sessionRef string) (*models.Purchase, error)
	ListPurchasesByBuyer(ctx context.Context, buyer models.BuyerIdentity) ([]models.Purchase, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository is the purchase persistence bound to one transaction.
type TxRepository interface {
	GetPurchaseBySessionRef(ctx context.Context, sessionRef string) (*models.Purchase, error)
	GetPurchaseByPaymentRef(ctx context.Context, paymentRef string) (*models.Purchase, error)
	// MarkCompleted persists the completion fields only if the row is still pending.
	MarkCompleted(ctx context.Context, p *models.Purchase) (bool, error)
	// MarkRefunded persists the refund only if the row is still completed.
	MarkRefunded(ctx context.Context, p *models.Purchase) (bool, error)
	// Tickets is the ticket store sharing this transaction.
	Tickets() inventory.TicketStore
}

type TokenIssuer interface {
	Issue(purchaseID, userID, eventID string, ttl time.Duration) (string, time.Time, error)
}

// Outcome describes what a transition request did.
// Anomaly is set when the request did not match a legal transition and was ignored.
type Outcome struct {
	Applied  bool
	Purchase *models.Purchase
	Anomaly  error
}

type CompleteInput struct {
	SessionRef    string
	PaymentRef    string
	CustomerEmail string
}

type Machine struct {
	Repo     Repository
	Ledger   *inventory.Ledger
	Tokens   TokenIssuer
	Notifier Notifier
	Logger   *logger.Logger
	TokenTTL time.Duration
	now      func() time.Time
}

func NewMachine(repo Repository, ledger *inventory.Ledger, tokens TokenIssuer, notifier Notifier, log *logger.Logger, tokenTTL time.Duration) *Machine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Machine{
		Repo:     repo,
		Ledger:   ledger,
		Tokens:   tokens,
		Notifier: notifier,
		Logger:   log,
		TokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	cp := *m
	cp.now = now
	return &cp
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to models.PurchaseStatus) bool {
	switch from {
	case models.PurchasePending:
		return to == models.PurchaseCompleted
	case models.PurchaseCompleted:
		return to == models.PurchaseRefunded
	}
	return false
}

func invalidTransition(p *models.Purchase, to models.PurchaseStatus) error {
	return fmt.Errorf("%w: purchase %s is %s, cannot become %s", apperror.ErrInvalidTransition, p.ID, p.Status, to)
}

// Complete moves the pending purchase for a checkout session to completed, issues
// its access token and counts the sale. Unknown sessions and purchases that have
// already left pending are acknowledged without any change.
func (m *Machine) Complete(ctx context.Context, in CompleteInput) (Outcome, error) {
	if in.SessionRef == "" {
		return Outcome{}, fmt.Errorf("%w: checkout session reference is required", apperror.ErrInvalidInput)
	}

	var out Outcome
	err := m.Repo.WithinTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out = Outcome{}

		p, err := tx.GetPurchaseBySessionRef(ctx, in.SessionRef)
		if errors.Is(err, apperror.ErrPurchaseNotFound) {
			out.Anomaly = fmt.Errorf("checkout session %s: %w", in.SessionRef, apperror.ErrPurchaseNotFound)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load purchase for session %s: %w", in.SessionRef, err)
		}
		out.Purchase = p

		if p.Status == models.PurchaseCompleted {
			return nil
		}
		if !CanTransition(p.Status, models.PurchaseCompleted) {
			out.Anomaly = invalidTransition(p, models.PurchaseCompleted)
			return nil
		}

		now := m.now().UTC()
		token, expiresAt, err := m.Tokens.Issue(p.ID, p.UserID, p.EventID, m.TokenTTL)
		if err != nil {
			return fmt.Errorf("issue access token for %s: %w", p.ID, err)
		}

		next := *p
		next.Status = models.PurchaseCompleted
		next.PaymentRef = in.PaymentRef
		next.AccessToken = token
		next.AccessTokenExpiry = &expiresAt
		next.PurchasedAt = &now
		next.UpdatedAt = now
		if next.Email == "" {
			next.Email = in.CustomerEmail
		}

		ok, err := tx.MarkCompleted(ctx, &next)
		if err != nil {
			return fmt.Errorf("mark purchase %s completed: %w", p.ID, err)
		}
		if !ok {
			// another delivery completed it first
			return nil
		}

		if err := m.Ledger.WithStore(tx.Tickets()).Increment(ctx, p.TicketID); err != nil {
			return err
		}

		out.Applied = true
		out.Purchase = &next
		return nil
	})
	if err != nil {
		m.Logger.Error("PURCHASE", fmt.Sprintf("Completion for session %s rolled back: %v", in.SessionRef, err))
		return Outcome{}, err
	}

	m.report("COMPLETE", in.SessionRef, out)
	if out.Applied {
		m.Notifier.PurchaseCompleted(ctx, out.Purchase)
	}
	return out, nil
}

// Refund moves the completed purchase with this payment reference to refunded and
// releases its sale. A refund for a purchase that never completed is ignored.
func (m *Machine) Refund(ctx context.Context, paymentRef string) (Outcome, error) {
	if paymentRef == "" {
		return Outcome{}, fmt.Errorf("%w: payment reference is required", apperror.ErrInvalidInput)
	}

	var out Outcome
	err := m.Repo.WithinTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out = Outcome{}

		p, err := tx.GetPurchaseByPaymentRef(ctx, paymentRef)
		if errors.Is(err, apperror.ErrPurchaseNotFound) {
			out.Anomaly = fmt.Errorf("payment %s: %w", paymentRef, apperror.ErrPurchaseNotFound)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load purchase for payment %s: %w", paymentRef, err)
		}
		out.Purchase = p

		if p.Status == models.PurchaseRefunded {
			return nil
		}
		if !CanTransition(p.Status, models.PurchaseRefunded) {
			out.Anomaly = invalidTransition(p, models.PurchaseRefunded)
			return nil
		}

		now := m.now().UTC()
		next := *p
		next.Status = models.PurchaseRefunded
		next.RefundedAt = &now
		next.UpdatedAt = now

		ok, err := tx.MarkRefunded(ctx, &next)
		if err != nil {
			return fmt.Errorf("mark purchase %s refunded: %w", p.ID, err)
		}
		if !ok {
			return nil
		}

		if err := m.Ledger.WithStore(tx.Tickets()).Decrement(ctx, p.TicketID); err != nil {
			return err
		}

		out.Applied = true
		out.Purchase = &next
		return nil
	})
	if err != nil {
		m.Logger.Error("PURCHASE", fmt.Sprintf("Refund for payment %s rolled back: %v", paymentRef, err))
		return Outcome{}, err
	}

	m.report("REFUND", paymentRef, out)
	if out.Applied {
		m.Notifier.PurchaseRefunded(ctx, out.Purchase)
	}
	return out, nil
}

func (m *Machine) report(action, ref string, out Outcome) {
	switch {
	case out.Applied:
		m.Logger.LogPurchase(action, out.Purchase.ID, fmt.Sprintf("now %s (ref %s)", out.Purchase.Status, ref))
	case out.Anomaly != nil:
		m.Logger.LogAnomaly(action, out.Anomaly.Error())
	case out.Purchase != nil:
		m.Logger.LogPurchase(action, out.Purchase.ID, fmt.Sprintf("already %s, replay ignored", out.Purchase.Status))
	}
}

// ListForBuyer returns the buyer's purchases that have left pending, newest first.
func (m *Machine) ListForBuyer(ctx context.Context, buyer models.BuyerIdentity) ([]models.Purchase, error) {
	if buyer.UserID == "" && buyer.Email == "" {
		return nil, apperror.ErrUnauthenticated
	}
	return m.Repo.ListPurchasesByBuyer(ctx, buyer)
}
