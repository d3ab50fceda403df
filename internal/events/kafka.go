package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Producer publishes market events. It satisfies feed.Sink so the poller
// can hand it every applied result.
type Producer struct {
	producer *kafka.Producer
	topic    string
}

func NewProducer(brokers, topic string) (*Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	go func() {
		for e := range p.Events() {
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				logger.Log.Error("Kafka delivery failed",
					zap.String("key", string(m.Key)),
					zap.Error(m.TopicPartition.Error),
				)
			}
		}
	}()

	return &Producer{producer: p, topic: topic}, nil
}

func (p *Producer) Publish(ev MarketEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode market event: %w", err)
	}
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Kind),
		Value:          value,
	}, nil)
}

func (p *Producer) CoinsApplied(ctx context.Context, seq uint64, coins []models.CoinSnapshot, at time.Time) {
	p.publish(CoinsEvent(seq, coins, at))
}

func (p *Producer) GlobalApplied(ctx context.Context, seq uint64, stats models.GlobalStats, at time.Time) {
	p.publish(GlobalEvent(seq, stats, at))
}

func (p *Producer) publish(ev MarketEvent) {
	if err := p.Publish(ev); err != nil {
		logger.Log.Error("Error producing Kafka message",
			zap.String("kind", string(ev.Kind)),
			zap.Uint64("seq", ev.Seq),
			zap.Error(err),
		)
		return
	}
	logger.Log.Info("Sent market event to Kafka",
		zap.String("kind", string(ev.Kind)),
		zap.Uint64("seq", ev.Seq),
		zap.Int("coins", len(ev.Coins)),
	)
}

// Close waits up to timeout for queued messages before closing.
func (p *Producer) Close(timeout time.Duration) {
	if left := p.producer.Flush(int(timeout.Milliseconds())); left > 0 {
		logger.Log.Warn("Kafka producer closed with undelivered messages", zap.Int("pending", left))
	}
	p.producer.Close()
}

type Consumer struct {
	consumer *kafka.Consumer
}

func NewConsumer(brokers, groupID, topic string) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"group.id":          groupID,
		"auto.offset.reset": "latest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to Kafka topic %s: %w", topic, err)
	}
	return &Consumer{consumer: c}, nil
}

// Run delivers decoded events to handle until ctx is done. Malformed
// messages and handler errors are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, MarketEvent) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			logger.Log.Error("Kafka consumer error", zap.Error(err))
			continue
		}

		ev, err := Decode(msg.Value)
		if err != nil {
			logger.Log.Error("Error parsing market event", zap.Error(err))
			continue
		}
		if err := handle(ctx, ev); err != nil {
			logger.Log.Error("Failed to handle market event",
				zap.String("kind", string(ev.Kind)),
				zap.Uint64("seq", ev.Seq),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
