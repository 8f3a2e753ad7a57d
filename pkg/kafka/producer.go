package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type ProducerConfig struct {
	Brokers     string
	Acks        string
	LingerMs    int
	Compression string
}

type Producer struct {
	p      *kafka.Producer
	logger *slog.Logger
}

func NewProducer(cfg *ProducerConfig, log *slog.Logger) (*Producer, error) {
	config := &kafka.ConfigMap{
		"bootstrap.servers":            cfg.Brokers,
		"acks":                         cfg.Acks,
		"enable.idempotence":           true,
		"linger.ms":                    cfg.LingerMs,
		"compression.type":             cfg.Compression,
		"message.send.max.retries":     3,
		"delivery.timeout.ms":          30000,
		"queue.buffering.max.messages": 100000,
	}
	p, err := kafka.NewProducer(config)
	if err != nil {
		return nil, fmt.Errorf("kafka.NewProducer: %w", err)
	}
	prod := &Producer{
		p:      p,
		logger: log,
	}

	return prod, nil
}

// Publish produces one message and waits for its delivery report.
func (p *Producer) Publish(ctx context.Context, topic string, key, val []byte, headers map[string]string) error {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:     key,
		Value:   val,
		Headers: toHeaders(headers),
	}

	ch := make(chan kafka.Event, 1)

	if err := p.p.Produce(msg, ch); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	select {
	case ev := <-ch:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected event type: %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toHeaders(m map[string]string) []kafka.Header {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(m))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(m[k])})
	}
	return headers
}

// Close waits up to 10s for queued deliveries before closing the producer.
func (p *Producer) Close() {
	remaining := p.p.Flush(10_000)
	if remaining > 0 {
		p.logger.Warn("unflushed messages on close",
			slog.Int("remaining", remaining))
	}
	p.p.Close()
}
