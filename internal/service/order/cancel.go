package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sanchey92/checkout-service/internal/domain/model"
	"github.com/sanchey92/checkout-service/internal/storage"
)

// Cancel cancels the user's order and puts every item back in stock. The
// order row is locked first, so a second concurrent cancel sees Cancelled
// and is rejected instead of restoring twice.
func (s *Service) Cancel(ctx context.Context, userCode, orderCode, reason string) (bool, error) {
	var order *model.Order

	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.lockOrder(ctx, orderCode)
		if err != nil {
			return err
		}
		if order.UserCode != userCode {
			return model.Forbidden("order %s belongs to another user", orderCode)
		}
		if err = order.Cancel(reason); err != nil {
			return err
		}
		return s.applyCancellation(ctx, order)
	})
	if err != nil {
		if _, ok := model.KindOf(err); ok {
			s.reject("cancel order", err, slog.String("user", userCode), slog.String("code", orderCode))
		}
		return false, wrap("service.Cancel", err)
	}

	s.logger.Info("order cancelled",
		slog.String("code", order.Code),
		slog.String("user", userCode),
		slog.String("reason", order.CancelReason))
	return true, nil
}

func (s *Service) lockOrder(ctx context.Context, code string) (*model.Order, error) {
	o, err := s.repo.LockOrder(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, model.NotFound("order %s not found", code)
	}
	return o, err
}

// applyCancellation persists an order that was just moved to Cancelled:
// stock for every item, the status row and the OrderCancelled event.
func (s *Service) applyCancellation(ctx context.Context, o *model.Order) error {
	codes := productCodes(len(o.Items), func(i int) string { return o.Items[i].ProductCode })

	products, err := s.repo.LockProducts(ctx, codes)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		p, ok := products[it.ProductCode]
		if !ok {
			return model.NotFound("product %s not found", it.ProductCode)
		}
		if err = p.RestoreStock(it.Quantity); err != nil {
			return err
		}
	}
	if err = s.saveStock(ctx, codes, products); err != nil {
		return err
	}

	if err = s.repo.UpdateOrderStatus(ctx, o); err != nil {
		return err
	}

	return s.publish(ctx, model.EventOrderCancelled, o.Code, model.OrderCancelledEvent{
		OrderCode:  o.Code,
		UserCode:   o.UserCode,
		Reason:     o.CancelReason,
		Items:      o.Items,
		OccurredAt: time.Now().UTC(),
	})
}
