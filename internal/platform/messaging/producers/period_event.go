package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/config"
	"github.com/segmentio/kafka-go"
)

type PeriodEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates the period event producer used by the calendar endpoint and
// ensures the topic exists
func NewPeriodEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*PeriodEventProducer, error) {
	if cfg.PeriodTopic == "" {
		return nil, fmt.Errorf("kafka period topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for period event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.PeriodTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure period topic %s exists for period event producer: %w", cfg.PeriodTopic, err)
	}

	// Period changes are rare and must not be lost, so writes are
	// synchronous and wait for all replicas.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.PeriodTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write period event messages", "topic", cfg.PeriodTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote period event messages", "topic", cfg.PeriodTopic, "count", len(messages))
			}
		},
	}

	return &PeriodEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.PeriodTopic,
	}, nil
}

func (p *PeriodEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for period event producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via period event producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via period event producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via period event producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *PeriodEventProducer) Close() error {
	p.logger.Info("Closing period event Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close period event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
