package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrNacked = errors.New("message nacked by broker")

// Publisher sends outbox messages to a topic exchange. The outbox topic
// becomes the routing key.
type Publisher struct {
	pool     *ChannelPool
	exchange string
	timeout  time.Duration
}

func NewPublisher(pool *ChannelPool, exchange string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		pool:     pool,
		exchange: exchange,
		timeout:  timeout,
	}
}

func (p *Publisher) Publish(ctx context.Context, topic string, key, val []byte, headers map[string]string) error {
	ch, err := p.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("get channel: %w", err)
	}
	defer p.pool.Put(ch)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, topic, false, false, publishing(key, val, headers))
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

func publishing(key, val []byte, headers map[string]string) amqp.Publishing {
	table := make(amqp.Table, len(headers))
	for k, v := range headers {
		table[k] = v
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    string(key),
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         val,
	}
}
