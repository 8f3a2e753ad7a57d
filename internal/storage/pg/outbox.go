package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

func (s *Storage) InsertOutboxMsg(ctx context.Context, msg *model.OutboxMessage) error {
	headers, err := json.Marshal(msg.Headers)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	query := `INSERT INTO outbox (topic, key, event_type, payload, headers)
              VALUES ($1, $2, $3, $4, $5)`

	if _, err = s.conn(ctx).Exec(ctx, query, msg.Topic, msg.Key, msg.EventType, msg.Payload, headers); err != nil {
		return fmt.Errorf("insert outbox msg: %w", err)
	}
	return nil
}

// ClaimBatch leases up to batchSize due messages to the caller by pushing
// their next_attempt_at forward by lease. Rows claimed by another relay are
// skipped, and the lease expires if the caller dies before settling them.
func (s *Storage) ClaimBatch(ctx context.Context, batchSize, maxRetries int, lease time.Duration) ([]*model.OutboxMessage, error) {
	query := `UPDATE outbox
              SET next_attempt_at = now() + $3::float8 * interval '1 second'
              WHERE id IN (
                  SELECT id
                  FROM outbox
                  WHERE published_at IS NULL
                    AND retry_count < $2
                    AND next_attempt_at <= now()
                  ORDER BY id
                  LIMIT $1
                  FOR UPDATE SKIP LOCKED
              )
              RETURNING id, topic, key, event_type, payload, headers, retry_count`

	rows, err := s.conn(ctx).Query(ctx, query, batchSize, maxRetries, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var msgs []*model.OutboxMessage
	for rows.Next() {
		msg := &model.OutboxMessage{}
		var headersJSON []byte
		if err = rows.Scan(&msg.ID, &msg.Topic, &msg.Key, &msg.EventType, &msg.Payload, &headersJSON, &msg.RetryCount); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		if err = json.Unmarshal(headersJSON, &msg.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

// UpdateRetryCount records a failed attempt and schedules the next one.
func (s *Storage) UpdateRetryCount(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error {
	query := `UPDATE outbox
              SET
                  retry_count = retry_count + 1,
                  last_error = $2,
                  next_attempt_at = $3
              WHERE id = $1`

	if _, err := s.conn(ctx).Exec(ctx, query, id, errMsg, nextAttempt); err != nil {
		return fmt.Errorf("update retry count: %w", err)
	}
	return nil
}

func (s *Storage) MarkPublished(ctx context.Context, id int64) error {
	query := `UPDATE outbox
              SET published_at = now()
              WHERE id = $1`

	if _, err := s.conn(ctx).Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
