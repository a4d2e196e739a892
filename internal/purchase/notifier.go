package purchase

import (
	"context"

	"ms-livestream/internal/models"
)

// Notifier is told about transitions after they commit. Implementations must not
// block for long and must handle their own failures; a notification never undoes
// a transition.
type Notifier interface {
	PurchaseCompleted(ctx context.Context, p *models.Purchase)
	PurchaseRefunded(ctx context.Context, p *models.Purchase)
}

type NopNotifier struct{}

func (NopNotifier) PurchaseCompleted(context.Context, *models.Purchase) {}
func (NopNotifier) PurchaseRefunded(context.Context, *models.Purchase)  {}

// MultiNotifier fans out to each notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) PurchaseCompleted(ctx context.Context, p *models.Purchase) {
	for _, n := range m {
		n.PurchaseCompleted(ctx, p)
	}
}

func (m MultiNotifier) PurchaseRefunded(ctx context.Context, p *models.Purchase) {
	for _, n := range m {
		n.PurchaseRefunded(ctx, p)
	}
}
