package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-livestream/internal/config"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// PurchasePublisher announces committed purchase transitions. Downstream
// consumers send the confirmation email and refresh listings.
type PurchasePublisher struct {
	Producer Publisher
	Topics   config.TopicConfig
	Logger   *logger.Logger
	Timeout  time.Duration
}

func NewPurchasePublisher(producer Publisher, topics config.TopicConfig, log *logger.Logger) *PurchasePublisher {
	if log == nil {
		log = logger.Discard()
	}
	return &PurchasePublisher{Producer: producer, Topics: topics, Logger: log, Timeout: 5 * time.Second}
}

func (p *PurchasePublisher) PurchaseCompleted(ctx context.Context, purchase *models.Purchase) {
	p.publish(ctx, p.Topics.PurchaseCompleted, purchase)
}

func (p *PurchasePublisher) PurchaseRefunded(ctx context.Context, purchase *models.Purchase) {
	p.publish(ctx, p.Topics.PurchaseRefunded, purchase)
}

// publish never fails the caller; the transition is already committed.
func (p *PurchasePublisher) publish(ctx context.Context, topic string, purchase *models.Purchase) {
	body, err := json.Marshal(models.NewPurchaseEvent(purchase, time.Now().UTC()))
	if err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Failed to encode purchase %s: %v", purchase.ID, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer cancel()
	if err := p.Producer.Publish(ctx, topic, purchase.ID, body); err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Purchase %s %s not announced: %v", purchase.ID, purchase.Status, err))
	}
}
