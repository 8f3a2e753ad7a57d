package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

func (s *Storage) InsertOutboxMsg(ctx context.Context, msg *model.OutboxMessage) error {
	headers, err := json.Marshal(msg.Headers)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	if _, err = s.conn(ctx).ExecContext(ctx,
		`INSERT INTO outbox (topic, key, event_type, payload, headers, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.Topic, msg.Key, msg.EventType, msg.Payload, string(headers), toUnix(time.Now())); err != nil {
		return fmt.Errorf("insert outbox msg: %w", err)
	}
	return nil
}

// ClaimBatch leases up to batchSize due messages by moving their
// next_attempt_at lease into the future.
func (s *Storage) ClaimBatch(ctx context.Context, batchSize, maxRetries int, lease time.Duration) ([]*model.OutboxMessage, error) {
	var msgs []*model.OutboxMessage

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		rows, err := s.conn(ctx).QueryContext(ctx,
			`SELECT id, topic, key, event_type, payload, headers, retry_count
             FROM outbox
             WHERE published_at IS NULL AND retry_count < ? AND next_attempt_at <= ?
             ORDER BY id
             LIMIT ?`, maxRetries, toUnix(now), batchSize)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}

		for rows.Next() {
			msg := &model.OutboxMessage{}
			var headersJSON string
			if err = rows.Scan(&msg.ID, &msg.Topic, &msg.Key, &msg.EventType, &msg.Payload, &headersJSON, &msg.RetryCount); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox message: %w", err)
			}
			if err = json.Unmarshal([]byte(headersJSON), &msg.Headers); err != nil {
				rows.Close()
				return fmt.Errorf("unmarshal headers: %w", err)
			}
			msgs = append(msgs, msg)
		}
		rows.Close()
		if err = rows.Err(); err != nil {
			return fmt.Errorf("iterate outbox rows: %w", err)
		}

		until := toUnix(now.Add(lease))
		for _, msg := range msgs {
			if _, err = s.conn(ctx).ExecContext(ctx,
				`UPDATE outbox SET next_attempt_at = ? WHERE id = ?`, until, msg.ID); err != nil {
				return fmt.Errorf("lease outbox message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateRetryCount records a failed attempt and schedules the next one.
func (s *Storage) UpdateRetryCount(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error {
	if _, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		errMsg, toUnix(nextAttempt), id); err != nil {
		return fmt.Errorf("update retry count: %w", err)
	}
	return nil
}

func (s *Storage) MarkPublished(ctx context.Context, id int64) error {
	if _, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE outbox SET published_at = ? WHERE id = ?`, toUnix(time.Now()), id); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
