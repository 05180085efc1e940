package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader: reader,
		logger: logger.With(zap.String("component", "kafka-consumer"), zap.String("topic", topic)),
	}
}

// Consume reads until ctx is done. Handler errors are logged and the
// message is committed anyway; a poison message must not stall the group.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("read message failed", zap.Error(err))
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				c.logger.Error("handle message failed",
					zap.Error(err),
					zap.String("key", string(msg.Key)),
					zap.String("message_id", MessageID(msg)),
					zap.Int64("offset", msg.Offset),
				)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageID returns the message-id header, or "" when absent
func MessageID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == HeaderMessageID {
			return string(h.Value)
		}
	}
	return ""
}
