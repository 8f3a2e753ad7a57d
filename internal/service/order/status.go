package order

import (
	"context"
	"log/slog"
	"time"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

// UpdateStatus is the administrative status change used by back office
// and fulfilment. Moving an order to Cancelled restores its stock exactly
// like Cancel does, without the ownership check.
func (s *Service) UpdateStatus(ctx context.Context, orderCode, status string) (*Summary, error) {
	next, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		order *model.Order
		from  model.OrderStatus
	)

	err = s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.lockOrder(ctx, orderCode)
		if err != nil {
			return err
		}

		from = order.Status
		cancelled, err := order.UpdateStatus(next)
		if err != nil {
			return err
		}
		if cancelled {
			return s.applyCancellation(ctx, order)
		}
		if from == next {
			return nil
		}

		if err = s.repo.UpdateOrderStatus(ctx, order); err != nil {
			return err
		}
		return s.publish(ctx, model.EventOrderStatusChanged, order.Code, model.OrderStatusChangedEvent{
			OrderCode:  order.Code,
			From:       from,
			To:         next,
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		if _, ok := model.KindOf(err); ok {
			s.reject("update order status", err, slog.String("code", orderCode), slog.String("status", status))
		}
		return nil, wrap("service.UpdateStatus", err)
	}

	s.logger.Info("order status updated",
		slog.String("code", order.Code),
		slog.String("from", string(from)),
		slog.String("to", string(order.Status)))
	return NewSummary(order), nil
}
