package kafka

import (
	"context"
	"fmt"

	"ms-livestream/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Logger *logger.Logger
}

// NewProducer writes to any topic; each message names its own. Messages with the
// same key land on the same partition.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Balancer: &kafka.Hash{},
	})
	return &Producer{Writer: writer, Logger: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.Logger.LogKafka("PUBLISH_FAILED", topic, fmt.Sprintf("key=%s: %v", key, err))
		return err
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s (%d bytes)", key, len(value)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
