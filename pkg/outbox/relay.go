package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

const EventTypeHeader = "event-type"

type RelayRepo interface {
	ClaimBatch(ctx context.Context, batchSize, maxRetries int, lease time.Duration) ([]*model.OutboxMessage, error)
	UpdateRetryCount(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error
	MarkPublished(ctx context.Context, id int64) error
}

// Publisher delivers one message to a broker and returns once the broker
// has acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, val []byte, headers map[string]string) error
}

type RelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	// RetryBackoff is the delay after the first failed attempt; it doubles
	// with every further failure up to MaxBackoff.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	// Lease is how long a claimed batch stays invisible to other relays.
	Lease time.Duration
}

type Relay struct {
	repo      RelayRepo
	publisher Publisher
	logger    *slog.Logger
	cfg       RelayConfig
	now       func() time.Time
}

func NewRelay(r RelayRepo, p Publisher, l *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 12
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &Relay{
		repo:      r,
		publisher: p,
		logger:    l,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started",
		slog.Int("batch_size", r.cfg.BatchSize),
		slog.Int("max_retries", r.cfg.MaxRetries),
		slog.Duration("retry_backoff", r.cfg.RetryBackoff),
		slog.Duration("poll_interval", r.cfg.PollInterval))

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain keeps claiming batches until a short one signals the backlog is
// empty.
func (r *Relay) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := r.processBatch(ctx)
		if err != nil {
			r.logger.Error("outbox batch failed", slog.Any("error", err))
			return
		}
		if processed < r.cfg.BatchSize {
			return
		}
	}
}

// processBatch claims due messages in one short statement, publishes them
// with no transaction open and settles each one afterwards. A relay that
// dies mid-batch leaves its rows to be reclaimed when the lease expires.
func (r *Relay) processBatch(ctx context.Context) (int, error) {
	msgs, err := r.repo.ClaimBatch(ctx, r.cfg.BatchSize, r.cfg.MaxRetries, r.cfg.Lease)
	if err != nil {
		return 0, err
	}

	for _, msg := range msgs {
		pubErr := r.publisher.Publish(ctx, msg.Topic, []byte(msg.Key), msg.Payload, headers(msg))
		if pubErr == nil {
			if err = r.repo.MarkPublished(ctx, msg.ID); err != nil {
				return len(msgs), err
			}
			continue
		}

		attempt := msg.RetryCount + 1
		delay := r.backoff(attempt)
		r.logger.Error("publish failed",
			slog.Int64("id", msg.ID),
			slog.String("event_type", msg.EventType),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.Any("error", pubErr))
		if err = r.repo.UpdateRetryCount(ctx, msg.ID, pubErr.Error(), r.now().Add(delay)); err != nil {
			return len(msgs), err
		}
		if attempt >= r.cfg.MaxRetries {
			r.logger.Warn("outbox message abandoned",
				slog.Int64("id", msg.ID),
				slog.Int("attempts", attempt))
		}
	}

	return len(msgs), nil
}

// backoff returns the wait before the attempt after the given failed one.
func (r *Relay) backoff(failures int) time.Duration {
	d := r.cfg.RetryBackoff
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
	}
	return min(d, r.cfg.MaxBackoff)
}

func headers(msg *model.OutboxMessage) map[string]string {
	h := make(map[string]string, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		h[k] = v
	}
	h[EventTypeHeader] = msg.EventType
	return h
}
