package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/config"
)

// MessageHandler processes one consumed Kafka message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ConsumerGroup drives a sarama consumer group and dispatches every message
// to the supplied handler. Handler errors are logged and the message is
// still marked, relying on handler idempotence rather than redelivery loops.
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
	logger  *zap.Logger
}

// NewConsumerGroup joins the configured group for the role event topic.
func NewConsumerGroup(cfg config.KafkaSettings, handler MessageHandler, logger *zap.Logger) (*ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	topic := strings.TrimSuffix(cfg.TopicPrefix, ".") + ".roles"

	return &ConsumerGroup{
		group:   group,
		topics:  []string{topic},
		handler: handler,
		logger:  logger,
	}, nil
}

// Run consumes until the context is cancelled.
func (c *ConsumerGroup) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, c.topics, &groupHandler{consumer: c}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the group and releases resources.
func (c *ConsumerGroup) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	consumer *ConsumerGroup
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.consumer.handler.HandleMessage(session.Context(), msg); err != nil {
			h.consumer.logger.Error("failed to handle kafka message",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
