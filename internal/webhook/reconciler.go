// Package webhook applies verified payment notifications to purchases.
//
// The signature check is the only trust boundary: nothing downstream runs for a
// payload that fails it. Deliveries are at-least-once; replays are absorbed by the
// purchase state preconditions, not here.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/payment"
	"ms-livestream/internal/purchase"
)

type Transitions interface {
	Complete(ctx context.Context, in purchase.CompleteInput) (purchase.Outcome, error)
	Refund(ctx context.Context, paymentRef string) (purchase.Outcome, error)
}

type Reconciler struct {
	Verifier    payment.NotificationVerifier
	Transitions Transitions
	Logger      *logger.Logger
}

func NewReconciler(verifier payment.NotificationVerifier, transitions Transitions, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Discard()
	}
	return &Reconciler{Verifier: verifier, Transitions: transitions, Logger: log}
}

// Handle verifies and dispatches one delivery. A nil error means the delivery
// should be acknowledged. apperror.ErrInvalidSignature means it must be rejected
// without retry; any other error is retryable.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signatureHeader string) error {
	if signatureHeader == "" {
		r.Logger.LogSecurity("WEBHOOK_SIGNATURE", "delivery without signature header rejected")
		return fmt.Errorf("%w: missing signature header", apperror.ErrInvalidSignature)
	}

	n, err := r.Verifier.ConstructNotification(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidSignature) {
			r.Logger.LogSecurity("WEBHOOK_SIGNATURE", err.Error())
		} else {
			r.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to construct notification: %v", err))
		}
		return err
	}

	switch n := n.(type) {
	case payment.CheckoutCompleted:
		return r.completed(ctx, n)
	case payment.ChargeRefunded:
		return r.refunded(ctx, n)
	default:
		r.Logger.LogWebhook(n.EventType(), "ignored")
		return nil
	}
}

func (r *Reconciler) completed(ctx context.Context, n payment.CheckoutCompleted) error {
	if !n.Settled() {
		// delayed methods complete the session before funds arrive; wait for async_payment_succeeded
		r.Logger.LogWebhook(n.Type, fmt.Sprintf("session %s awaiting payment, deferred", n.SessionID))
		return nil
	}

	out, err := r.Transitions.Complete(ctx, purchase.CompleteInput{
		SessionRef:    n.SessionID,
		PaymentRef:    n.PaymentRef,
		CustomerEmail: n.CustomerEmail,
	})
	if err != nil {
		return r.retryable(n.Type, err)
	}
	r.Logger.LogWebhook(n.Type, fmt.Sprintf("session %s: applied=%t", n.SessionID, out.Applied))
	return nil
}

func (r *Reconciler) refunded(ctx context.Context, n payment.ChargeRefunded) error {
	if !n.FullyRefunded {
		r.Logger.LogAnomaly("PARTIAL_REFUND", fmt.Sprintf("charge %s partially refunded, purchase left unchanged", n.ChargeID))
		return nil
	}
	ref := n.Ref()
	if ref == "" {
		r.Logger.LogAnomaly("REFUND", fmt.Sprintf("event %s carries no payment reference", n.EventID))
		return nil
	}

	out, err := r.Transitions.Refund(ctx, ref)
	if err != nil {
		return r.retryable(n.EventType(), err)
	}
	r.Logger.LogWebhook(n.EventType(), fmt.Sprintf("payment %s: applied=%t", ref, out.Applied))
	return nil
}

// retryable keeps the cause but makes sure a storage failure is not mistaken for
// a client error by the HTTP layer.
func (r *Reconciler) retryable(eventType string, err error) error {
	r.Logger.Error("WEBHOOK", fmt.Sprintf("%s not applied, provider will retry: %v", eventType, err))
	if apperror.Retryable(err) {
		return err
	}
	return &apperror.Error{
		Kind:          apperror.KindInternal,
		StatusCode:    http.StatusInternalServerError,
		PublicError:   "webhook processing failed",
		InternalError: fmt.Sprintf("%s: %v", eventType, err),
		Err:           err,
	}
}
