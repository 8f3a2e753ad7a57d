package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/service/order"
	pkgkafka "github.com/sanchey92/checkout-service/pkg/kafka"
)

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderCode, status string) (*order.Summary, error)
}

// StatusCommands handles UpdateOrderStatus commands from the fulfilment
// topic. Malformed payloads are permanent failures; business rejections are
// logged and acknowledged.
func StatusCommands(svc StatusUpdater, log *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		var cmd model.UpdateOrderStatusCommand
		if err := json.Unmarshal(msg.Value, &cmd); err != nil {
			return pkgkafka.Permanent(fmt.Errorf("decode command: %w", err))
		}
		if cmd.OrderCode == "" {
			return pkgkafka.Permanent(errors.New("command without order_code"))
		}

		summary, err := svc.UpdateStatus(ctx, cmd.OrderCode, cmd.Status)
		if kind, ok := model.KindOf(err); ok {
			log.Warn("status command rejected",
				slog.String("order", cmd.OrderCode),
				slog.String("status", cmd.Status),
				slog.String("kind", string(kind)),
				slog.String("reason", err.Error()))
			return nil
		}
		if err != nil {
			return err
		}

		log.Info("status command applied",
			slog.String("order", cmd.OrderCode),
			slog.String("status", string(summary.Status)))
		return nil
	}
}
