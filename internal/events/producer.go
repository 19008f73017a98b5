package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes inventory events. Messages are keyed by the
// product or order they concern so one entity's events stay ordered.
type KafkaProducer struct {
	writer  messageWriter
	logger  *zap.Logger
	timeout time.Duration
}

func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaProducer{
		writer:  writer,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

func messageKey(event domain.InventoryEvent) string {
	switch {
	case event.OrderID != "":
		return string(event.OrderType) + ":" + event.OrderID
	case event.ProductID != 0:
		return "product:" + strconv.FormatInt(event.ProductID, 10)
	default:
		return event.EventID
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, event domain.InventoryEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(messageKey(event)),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.Debug("Event published successfully",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.Type)),
		zap.String("key", string(msg.Key)))

	return nil
}

func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
