package model

type OutboxMessage struct {
	ID         int64             `db:"id"`
	Topic      string            `db:"topic"`
	Key        string            `db:"key"`
	EventType  string            `db:"event_type"`
	Payload    []byte            `db:"payload"`
	Headers    map[string]string `db:"headers"`
	RetryCount int               `db:"retry_count"`
}
