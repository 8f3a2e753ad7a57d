package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrPoolClosed = errors.New("channel pool closed")

// ChannelPool hands out confirm-mode channels over a single connection.
type ChannelPool struct {
	conn     *amqp.Connection
	channels chan *amqp.Channel
	exchange string
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewChannelPool(url, exchange string, size int, log *slog.Logger) (*ChannelPool, error) {
	if size <= 0 {
		size = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp.Dial: %w", err)
	}

	pool := &ChannelPool{
		conn:     conn,
		channels: make(chan *amqp.Channel, size),
		exchange: exchange,
		logger:   log,
	}

	for i := 0; i < size; i++ {
		ch, err := pool.createChannel()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("create channel %d: %w", i, err)
		}
		pool.channels <- ch
	}

	log.Info("rabbitmq channel pool ready",
		slog.Int("size", size),
		slog.String("exchange", exchange))
	return pool, nil
}

func (p *ChannelPool) createChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}

	if err = ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	return ch, nil
}

// Get blocks until a channel is free or ctx is done. A channel that was
// closed by the broker is replaced transparently.
func (p *ChannelPool) Get(ctx context.Context) (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, ErrPoolClosed
		}
		if ch.IsClosed() {
			p.logger.Warn("replacing closed amqp channel")
			return p.createChannel()
		}
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *ChannelPool) Put(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		_ = ch.Close()
	}
}

func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		_ = ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("close amqp connection", slog.Any("error", err))
		}
	}
	p.logger.Info("rabbitmq channel pool closed")
}
