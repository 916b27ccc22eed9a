package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New("kafka: producer is closed")

// Producer writes JSON messages to the configured topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
	closed atomic.Bool

	published atomic.Int64
	failed    atomic.Int64
}

// Metrics holds producer statistics.
type Metrics struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// NewProducer creates a new Kafka producer.
func NewProducer(cfg *Config, logger *slog.Logger) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport, err := cfg.Transport()
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Compression:  cfg.Compression(),
		Transport:    transport,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	logger.Info("kafka producer initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"compression", cfg.CompressionType,
	)

	return &Producer{
		writer: writer,
		topic:  cfg.Topic,
		logger: logger,
	}, nil
}

// PublishJSON marshals value and writes it under key.
func (p *Producer) PublishJSON(ctx context.Context, key string, value any) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("kafka: publish to %s: %w", p.topic, err)
	}
	p.published.Add(1)
	return nil
}

// Metrics returns producer statistics.
func (p *Producer) Metrics() Metrics {
	return Metrics{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close flushes buffered messages and closes the writer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: failed to close producer: %w", err)
	}
	return nil
}
