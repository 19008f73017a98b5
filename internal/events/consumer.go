package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer feeds inventory events from the topic into a StockSync.
// Offsets are committed manually after each message is handled.
type KafkaConsumer struct {
	reader    messageReader
	stockSync *StockSync
	logger    *zap.Logger
	backoff   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaConsumer(brokers []string, topic, groupID string, stockSync *StockSync, logger *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		SessionTimeout: 6 * time.Second,
	})

	return &KafkaConsumer{
		reader:    reader,
		stockSync: stockSync,
		logger:    logger,
		backoff:   time.Second,
	}
}

func (kc *KafkaConsumer) Start(ctx context.Context) {
	ctx, kc.cancel = context.WithCancel(ctx)

	kc.wg.Add(1)
	go func() {
		defer kc.wg.Done()
		kc.consume(ctx)
	}()

	kc.logger.Info("Kafka consumer started")
}

func (kc *KafkaConsumer) consume(ctx context.Context) {
	for {
		msg, err := kc.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				kc.logger.Info("Kafka consumer stopped")
				return
			}
			kc.logger.Error("Error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(kc.backoff):
			}
			continue
		}

		if err := kc.stockSync.Handle(ctx, msg.Value); err != nil {
			// a failed message is committed anyway so one bad order cannot
			// stall the partition
			kc.logger.Error("Error processing message",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset))
		}

		if err := kc.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			kc.logger.Error("Error committing message", zap.Error(err))
		}
	}
}

// Stop cancels the fetch loop, waits for it and closes the reader.
func (kc *KafkaConsumer) Stop() error {
	kc.logger.Info("Stopping Kafka consumer")
	if kc.cancel != nil {
		kc.cancel()
	}
	kc.wg.Wait()
	return kc.reader.Close()
}
