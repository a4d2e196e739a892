package sse

import (
	"context"
	"sync"

	"ms-livestream/internal/models"
)

// PurchaseUpdate is pushed to the success page watching one checkout session.
type PurchaseUpdate struct {
	SessionID  string                `json:"sessionId"`
	PurchaseID string                `json:"purchaseId"`
	Status     models.PurchaseStatus `json:"status"`
	EventID    string                `json:"eventId"`
}

// PurchaseEventEmitter fans purchase transitions out to SSE clients keyed by
// checkout session. It implements purchase.Notifier.
type PurchaseEventEmitter struct {
	clients map[string][]chan PurchaseUpdate
	closed  bool
	mu      sync.RWMutex
}

func NewPurchaseEventEmitter() *PurchaseEventEmitter {
	return &PurchaseEventEmitter{clients: make(map[string][]chan PurchaseUpdate)}
}

// Subscribe returns a channel that is closed when ctx is done.
func (e *PurchaseEventEmitter) Subscribe(ctx context.Context, sessionID string) <-chan PurchaseUpdate {
	ch := make(chan PurchaseUpdate, 4)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(ch)
		return ch
	}
	e.clients[sessionID] = append(e.clients[sessionID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(sessionID, ch)
	}()
	return ch
}

// Emit never blocks; a client with a full buffer misses the update.
func (e *PurchaseEventEmitter) Emit(update PurchaseUpdate) {
	// hold the read lock while sending so remove cannot close a channel mid-send
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.clients[update.SessionID] {
		select {
		case ch <- update:
		default:
		}
	}
}

func (e *PurchaseEventEmitter) PurchaseCompleted(_ context.Context, p *models.Purchase) {
	e.Emit(updateFor(p))
}

func (e *PurchaseEventEmitter) PurchaseRefunded(_ context.Context, p *models.Purchase) {
	e.Emit(updateFor(p))
}

func updateFor(p *models.Purchase) PurchaseUpdate {
	return PurchaseUpdate{
		SessionID:  p.CheckoutSessionRef,
		PurchaseID: p.ID,
		Status:     p.Status,
		EventID:    p.EventID,
	}
}

func (e *PurchaseEventEmitter) remove(sessionID string, ch chan PurchaseUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[sessionID]
	for i, c := range clients {
		if c == ch {
			e.clients[sessionID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[sessionID]) == 0 {
		delete(e.clients, sessionID)
	}
}

// Close ends every open stream. Used on server shutdown so SSE handlers return.
func (e *PurchaseEventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sessionID, clients := range e.clients {
		for _, ch := range clients {
			close(ch)
		}
		delete(e.clients, sessionID)
	}
	e.closed = true
}

func (e *PurchaseEventEmitter) ClientCount(sessionID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[sessionID])
}
