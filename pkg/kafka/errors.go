package kafka

import (
	"context"
	"errors"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

const ErrorHeader = "x-error"

// DeadLetterTo forwards failed messages to topic with the original key,
// headers and an error header.
func DeadLetterTo(p *Producer, topic string) DeadLetterFunc {
	return func(ctx context.Context, msg *kafka.Message, cause error) error {
		headers := make(map[string]string, len(msg.Headers)+1)
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		headers[ErrorHeader] = cause.Error()
		return p.Publish(ctx, topic, msg.Key, msg.Value, headers)
	}
}
