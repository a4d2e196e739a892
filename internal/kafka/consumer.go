package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type StatusHandler func(ctx context.Context, update models.EventStatusUpdate) error

// Consumer reads event status changes published by the streaming side.
type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log}
}

// Run blocks until ctx is cancelled. Every message is committed after one
// attempt; a bad or rejected update is logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle StatusHandler) error {
	c.Logger.Info("KAFKA", "Event status consumer started")
	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.Logger.Info("KAFKA", "Event status consumer stopped")
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return err
		}

		var update models.EventStatusUpdate
		if err := json.Unmarshal(msg.Value, &update); err != nil {
			c.Logger.LogKafka("DECODE_FAILED", msg.Topic, fmt.Sprintf("offset %d: %v", msg.Offset, err))
		} else if err := handle(ctx, update); err != nil {
			c.Logger.LogKafka("REJECTED", msg.Topic, fmt.Sprintf("%s -> %s: %v", update.Slug, update.Status, err))
		} else {
			c.Logger.LogKafka("CONSUMED", msg.Topic, fmt.Sprintf("%s -> %s", update.Slug, update.Status))
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Failed to commit offset %d: %v", msg.Offset, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}
