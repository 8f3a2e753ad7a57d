package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

// publish stores an event in the outbox within the caller's transaction.
func (s *Service) publish(ctx context.Context, eventType, orderCode string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	return s.repo.InsertOutboxMsg(ctx, &model.OutboxMessage{
		Topic:     s.eventTopic,
		Key:       orderCode,
		EventType: eventType,
		Payload:   payload,
		Headers:   map[string]string{"order-code": orderCode},
	})
}
